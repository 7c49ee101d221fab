// Package fpl_http reads the public Fantasy Premier League API.
package fpl_http

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const DefaultBaseURL = "https://fantasy.premierleague.com/api"

// Record is one JSON object as returned by the API. Numbers are json.Number.
type Record = map[string]any

type Event struct {
	ID         int  `json:"id"`
	IsCurrent  bool `json:"is_current"`
	IsNext     bool `json:"is_next"`
	IsPrevious bool `json:"is_previous"`
	Finished   bool `json:"finished"`
}

// Bootstrap is the bootstrap-static payload: players, teams and gameweeks.
type Bootstrap struct {
	Elements []Record `json:"elements"`
	Teams    []Record `json:"teams"`
	Events   []Event  `json:"events"`
}

// CurrentGameweek returns the id of the event flagged current, or 0 before
// the season starts.
func (b *Bootstrap) CurrentGameweek() int {
	for _, e := range b.Events {
		if e.IsCurrent {
			return e.ID
		}
	}
	return 0
}

// ElementSummary is one player's per-gameweek and per-season history.
type ElementSummary struct {
	History     []Record `json:"history"`
	HistoryPast []Record `json:"history_past"`
}

type Client struct {
	baseURL string
	fetch   *httpfetch.Fetcher
}

func NewClient(baseURL string, fetch *httpfetch.Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetch: fetch}
}

func (c *Client) Bootstrap(ctx context.Context) (*Bootstrap, error) {
	url := c.baseURL + "/bootstrap-static/"
	var b Bootstrap
	if err := c.fetch.GetJSON(ctx, url, &b); err != nil {
		return nil, fmt.Errorf("fpl bootstrap: %w", err)
	}
	if len(b.Elements) == 0 || len(b.Teams) == 0 {
		telemetry.Metrics.ParseFailures.Inc()
		return nil, &httpfetch.ParseError{URL: url, Format: "json", Err: errors.New("bootstrap has no elements or teams")}
	}
	telemetry.Infof("fpl: bootstrap has %d players, %d teams, %d events", len(b.Elements), len(b.Teams), len(b.Events))
	return &b, nil
}

func (c *Client) Fixtures(ctx context.Context) ([]Record, error) {
	url := c.baseURL + "/fixtures/"
	var out []Record
	if err := c.fetch.GetJSON(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("fpl fixtures: %w", err)
	}
	if len(out) == 0 {
		telemetry.Metrics.ParseFailures.Inc()
		return nil, &httpfetch.ParseError{URL: url, Format: "json", Err: errors.New("empty fixture list")}
	}
	return out, nil
}

// ElementSummary fetches one player's history. ids start at 1.
func (c *Client) ElementSummary(ctx context.Context, id int) (*ElementSummary, error) {
	if id < 1 {
		return nil, &httpfetch.ConfigError{Field: "player id", Value: id, Rule: "must be a positive integer"}
	}
	url := fmt.Sprintf("%s/element-summary/%d/", c.baseURL, id)
	var s ElementSummary
	if err := c.fetch.GetJSON(ctx, url, &s); err != nil {
		return nil, fmt.Errorf("fpl element %d: %w", id, err)
	}
	return &s, nil
}
