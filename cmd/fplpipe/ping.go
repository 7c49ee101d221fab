package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/spf13/cobra"
)

type upstream struct {
	label string
	url   string
	// paced upstreams are probed at the configured call rate.
	paced bool
}

func (a *app) pingCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Measure round-trip latency to the FPL, FBRef and archive hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := []upstream{
				{label: "FPL API", url: strings.TrimRight(a.cfg.FPLBaseURL, "/") + "/bootstrap-static/"},
				{label: "Archive", url: strings.TrimRight(a.cfg.ArchiveBaseURL, "/") + "/" + a.season + "/teams.csv"},
				{label: "FBRef", url: strings.TrimRight(a.cfg.FBRefBaseURL, "/") + "/en/", paced: true},
			}
			out := cmd.OutOrStdout()
			client := &http.Client{Timeout: a.cfg.HTTPTimeout}
			for _, t := range targets {
				pacer := httpfetch.NewPacerEvery(0)
				if t.paced {
					p, err := httpfetch.NewPacer(a.cfg.CallRate)
					if err != nil {
						return err
					}
					pacer = p
				}
				if err := a.ping(cmd.Context(), out, client, pacer, t, n); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "Requests per host after the cold start")
	return cmd
}

// ping sends the cold-start request and n warm ones, each through pacer.
func (a *app) ping(ctx context.Context, out io.Writer, client *http.Client, pacer *httpfetch.Pacer, t upstream, n int) error {
	fmt.Fprintf(out, "\n%s\n  %s  %s\n%s\n", strings.Repeat("=", 55), t.label, t.url, strings.Repeat("=", 55))

	fmt.Fprintln(out, "\n  Cold-start request (DNS + TLS + HTTP):")
	if err := pacer.Wait(ctx); err != nil {
		return err
	}
	ms, code, err := measureHTTP(ctx, t.url, a.cfg.UserAgent, nil)
	pacer.Done()
	if err != nil {
		fmt.Fprintf(out, "    FAILED: %v\n", err)
		return nil
	}
	fmt.Fprintf(out, "    %.1f ms  (HTTP %d)\n", ms, code)

	fmt.Fprintf(out, "\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		ms, code, err := measureHTTP(ctx, t.url, a.cfg.UserAgent, client)
		pacer.Done()
		if err != nil {
			fmt.Fprintf(out, "  [%*d/%d]  FAILED: %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Fprintf(out, "  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(out, summarize(latencies), t.label)
	return nil
}

func measureHTTP(ctx context.Context, url, userAgent string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	if userAgent == "" {
		userAgent = httpfetch.DefaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpfetch.DefaultTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

type latencyStats struct {
	N                      int
	Min, Max, Mean, Median float64
	Stdev, P95, P99        float64
}

// summarize needs at least two samples; fewer yields N only.
func summarize(latencies []float64) latencyStats {
	s := latencyStats{N: len(latencies)}
	if len(latencies) < 2 {
		return s
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	for _, v := range latencies {
		s.Mean += v
	}
	s.Mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	variance /= float64(len(latencies) - 1)
	s.Stdev = math.Sqrt(variance)

	idx := func(q float64) int {
		i := int(float64(len(sorted)) * q)
		if i >= len(sorted) {
			i = len(sorted) - 1
		}
		return i
	}
	s.Min, s.Max = sorted[0], sorted[len(sorted)-1]
	s.Median = sorted[len(sorted)/2]
	s.P95, s.P99 = sorted[idx(0.95)], sorted[idx(0.99)]
	return s
}

func printStats(out io.Writer, s latencyStats, label string) {
	if s.N < 2 {
		fmt.Fprintf(out, "\n  Not enough %s samples for statistics.\n", label)
		return
	}
	fmt.Fprintf(out, "\n  --- %s Stats (%d requests) ---\n", label, s.N)
	fmt.Fprintf(out, "  Min:    %7.1f ms\n", s.Min)
	fmt.Fprintf(out, "  Max:    %7.1f ms\n", s.Max)
	fmt.Fprintf(out, "  Mean:   %7.1f ms\n", s.Mean)
	fmt.Fprintf(out, "  Median: %7.1f ms\n", s.Median)
	fmt.Fprintf(out, "  Stdev:  %7.1f ms\n", s.Stdev)
	fmt.Fprintf(out, "  p95:    %7.1f ms\n", s.P95)
	fmt.Fprintf(out, "  p99:    %7.1f ms\n", s.P99)
}
