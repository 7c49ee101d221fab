// Package archive pulls finished seasons from the public
// Fantasy-Premier-League data archive, which mirrors the files the live
// scraper writes.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const DefaultBaseURL = "https://raw.githubusercontent.com/vaastav/Fantasy-Premier-League/master/data"

// File maps a path under the archive's season directory to the local name.
type File struct {
	Remote string
	Local  string
}

var SeasonFiles = []File{
	{Remote: "fixtures.csv", Local: "fixtures.csv"},
	{Remote: "player_idlist.csv", Local: "player_idlist.csv"},
	{Remote: "teams.csv", Local: "teams.csv"},
	{Remote: "gws/merged_gw.csv", Local: "merged_gw.csv"},
	{Remote: "players_raw.csv", Local: "players_raw.csv"},
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

func (c *Client) URL(seasonLabel, remote string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, seasonLabel, remote)
}

// DownloadSeason writes every archive file for seasonLabel into dir. Each
// body must parse as CSV with a header before it is written.
func (c *Client) DownloadSeason(ctx context.Context, seasonLabel, dir string) error {
	if err := season.Validate(seasonLabel); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, f := range SeasonFiles {
		url := c.URL(seasonLabel, f.Remote)
		body, err := c.fetch.Get(ctx, url)
		if err != nil {
			return fmt.Errorf("archive %s %s: %w", seasonLabel, f.Remote, err)
		}
		t, err := frame.ParseCSV(bytes.NewReader(body))
		if err != nil || len(t.Header) == 0 {
			if err == nil {
				err = errors.New("no header")
			}
			telemetry.Metrics.ParseFailures.Inc()
			return &httpfetch.ParseError{URL: url, Format: "csv", Err: err}
		}
		if err := t.WriteCSV(filepath.Join(dir, f.Local)); err != nil {
			return err
		}
		telemetry.Infof("archive: %s %s has %d rows", seasonLabel, f.Local, t.Len())
	}
	return nil
}
