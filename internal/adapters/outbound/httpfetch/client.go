// Package httpfetch is the single GET path used for every upstream source.
// It applies the shared retry policy, honours Retry-After on 429 and keeps
// request failures apart from payload parse failures.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charleschow/fpl-pipeline/internal/core/retry"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	DefaultTimeout   = 30 * time.Second
)

type Config struct {
	UserAgent string
	Timeout   time.Duration
	Policy    retry.Policy
	// MaxWait caps a server supplied Retry-After. Zero means no cap.
	MaxWait time.Duration
}

type Fetcher struct {
	source     string
	httpClient *http.Client
	userAgent  string
	policy     retry.Policy
	maxWait    time.Duration
	now        func() time.Time
}

// New builds a fetcher. source names the upstream in log lines.
func New(source string, cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	f := &Fetcher{
		source:     source,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		userAgent:  cfg.UserAgent,
		policy:     cfg.Policy,
		maxWait:    cfg.MaxWait,
		now:        time.Now,
	}
	notify := cfg.Policy.OnRetry
	f.policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		telemetry.Metrics.RequestRetries.Inc()
		telemetry.Warnf("%s: attempt %d failed: %v; retrying in %s", source, attempt, err, wait)
		if notify != nil {
			notify(attempt, err, wait)
		}
	}
	return f
}

// Get fetches url and returns the raw body of a successful response.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var (
		body       []byte
		lastStatus int
	)
	attempts, err := f.policy.Do(ctx, func(ctx context.Context, _ int) error {
		b, status, err := f.do(ctx, url)
		lastStatus = status
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err == nil {
		return body, nil
	}

	telemetry.Metrics.RequestFailures.Inc()
	var re *RequestError
	if errors.As(err, &re) {
		re.Attempts = attempts
		return nil, re
	}
	return nil, &RequestError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
}

// GetJSON fetches url and decodes the body into v. Numbers are kept as
// json.Number when v holds interface values.
func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		telemetry.Metrics.ParseFailures.Inc()
		return &ParseError{URL: url, Format: "json", Err: err}
	}
	return nil
}

// GetDocument fetches url and parses it as HTML.
func (f *Fetcher) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		telemetry.Metrics.ParseFailures.Inc()
		return nil, &ParseError{URL: url, Format: "html", Err: err}
	}
	return doc, nil
}

// do performs one attempt. Errors it returns are already classified for the
// retry policy: permanent ones are wrapped with retry.Permanent.
func (f *Fetcher) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, retry.Permanent(&RequestError{URL: url, Err: fmt.Errorf("new request: %w", err)})
	}
	req.Header.Set("User-Agent", f.userAgent)

	telemetry.Metrics.RequestsSent.Inc()
	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, retry.Permanent(&RequestError{URL: url, Err: ctx.Err()})
		}
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	telemetry.Metrics.FetchLatency.Record(elapsed)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("%s: GET %s -> %d (%s)", f.source, url, resp.StatusCode, elapsed)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		telemetry.Metrics.RateLimited.Inc()
		return nil, resp.StatusCode, &rateLimitedError{wait: f.retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 400:
		return nil, resp.StatusCode, retry.Permanent(&RequestError{URL: url, StatusCode: resp.StatusCode})
	}
	return respBody, resp.StatusCode, nil
}

// retryAfter reads delta-seconds or an HTTP-date. Zero means "use the
// policy delay".
func (f *Fetcher) retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	var wait time.Duration
	if secs, err := strconv.Atoi(header); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		wait = at.Sub(f.now())
	}
	if wait < 0 {
		wait = 0
	}
	if f.maxWait > 0 && wait > f.maxWait {
		wait = f.maxWait
	}
	return wait
}
