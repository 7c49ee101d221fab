// Package discord posts pipeline run summaries to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
	ColorYellow = 0xF1C40F
)

// maxFieldLen is Discord's limit on an embed field value.
const maxFieldLen = 1024

type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled is false when no webhook is configured; every send is then a no-op.
func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		telemetry.Warnf("discord: rate limited")
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}
	return nil
}

// SeasonReport is what a finished season run posts.
type SeasonReport struct {
	Season   string
	Stage    string
	Matched  int
	Missing  []string
	Skipped  int64
	Err      error
	Duration time.Duration
}

func (n *Notifier) SeasonDone(ctx context.Context, r SeasonReport) error {
	color := ColorGreen
	switch {
	case r.Err != nil:
		color = ColorRed
	case len(r.Missing) > 0 || r.Skipped > 0:
		color = ColorYellow
	}
	fields := []Field{
		{Name: "Matched", Value: fmt.Sprintf("%d", r.Matched), Inline: true},
		{Name: "Missing", Value: fmt.Sprintf("%d", len(r.Missing)), Inline: true},
		{Name: "Skipped", Value: fmt.Sprintf("%d", r.Skipped), Inline: true},
		{Name: "Took", Value: r.Duration.Round(time.Second).String(), Inline: true},
	}
	if len(r.Missing) > 0 {
		fields = append(fields, Field{Name: "Unmatched players", Value: truncate(strings.Join(r.Missing, ", "), maxFieldLen)})
	}
	if r.Err != nil {
		fields = append(fields, Field{Name: "Error", Value: truncate(r.Err.Error(), maxFieldLen)})
	}
	return n.SendEmbed(ctx, Embed{
		Title:  fmt.Sprintf("%s %s", r.Season, r.Stage),
		Color:  color,
		Fields: fields,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n-3 {
			break
		}
		cut = i
	}
	return s[:cut] + "..."
}
