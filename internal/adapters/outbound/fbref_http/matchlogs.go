package fbref_http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/core/identity"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
	"golang.org/x/net/html"
)

const matchLogsTableID = "matchlogs_all"

// MatchLogURL builds the player's all-competitions match log page for an
// FBRef season label ("2024-2025").
func (c *Client) MatchLogURL(id, name, fbrefSeason string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
	return fmt.Sprintf("%s/en/players/%s/matchlogs/%s/%s-Match-Logs", c.baseURL, id, fbrefSeason, slug)
}

// PlayerMatchLogs fetches one player's match logs, keeps only rows from the
// configured competition and tags them with the player's name.
func (c *Client) PlayerMatchLogs(ctx context.Context, id, name, fbrefSeason string) (*frame.Table, error) {
	url := c.MatchLogURL(id, name, fbrefSeason)
	doc, err := c.fetch.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	t, err := ParseMatchLogs(doc, c.competition)
	if err != nil {
		telemetry.Metrics.ParseFailures.Inc()
		return nil, &httpfetch.ParseError{URL: url, Format: "html", Err: err}
	}
	t.AddColumn("name", name)
	return t, nil
}

// ParseMatchLogs reads table#matchlogs_all, which FBRef sometimes ships
// inside an HTML comment, and filters on the Comp column.
func ParseMatchLogs(doc *goquery.Document, competition string) (*frame.Table, error) {
	table := findTable(doc.Selection, matchLogsTableID)
	if table == nil {
		return nil, fmt.Errorf("table %q not found", matchLogsTableID)
	}
	t := readTable(table)
	if err := t.Require("Comp"); err != nil {
		return nil, err
	}
	t.Filter(func(i int) bool { return t.Get(i, "Comp") == competition })
	return t, nil
}

func findTable(root *goquery.Selection, id string) *goquery.Selection {
	if s := root.Find("table#" + id); s.Length() > 0 {
		return s.First()
	}
	var found *goquery.Selection
	root.Find("*").Contents().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if n.Type != html.CommentNode || !strings.Contains(n.Data, `id="`+id+`"`) {
			return true
		}
		inner, err := goquery.NewDocumentFromReader(strings.NewReader(n.Data))
		if err != nil {
			return true
		}
		if t := inner.Find("table#" + id); t.Length() > 0 {
			found = t.First()
			return false
		}
		return true
	})
	return found
}

// readTable flattens a two-level header into "Group Sub" names; columns
// without a group keep the sub-header alone. Repeated header rows inside the
// body are skipped.
func readTable(table *goquery.Selection) *frame.Table {
	headRows := table.Find("thead tr")
	var groups []string
	var header []string
	headRows.Each(func(i int, tr *goquery.Selection) {
		if i == headRows.Length()-1 {
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				header = append(header, strings.TrimSpace(cell.Text()))
			})
			return
		}
		if i == 0 {
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				span := 1
				if v, ok := cell.Attr("colspan"); ok {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						span = n
					}
				}
				label := strings.TrimSpace(cell.Text())
				for k := 0; k < span; k++ {
					groups = append(groups, label)
				}
			})
		}
	})
	for i := range header {
		if i < len(groups) && groups[i] != "" {
			header[i] = groups[i] + " " + header[i]
		}
	}

	t := frame.New(header...)
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("thead") || tr.HasClass("spacer") || tr.HasClass("over_header") {
			return
		}
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(cell.Text()))
		})
		if len(row) > 0 {
			t.AppendRow(row)
		}
	})
	return t
}

// CollectPlayersData gathers match logs for every resolved match, paced at
// callRate calls per minute. Unresolved players and per-player failures are
// logged and skipped; the result is an outer concatenation.
func (c *Client) CollectPlayersData(ctx context.Context, matches []identity.Match, fbrefSeason string, callRate int) (*frame.Table, error) {
	pacer, err := c.newPacer(callRate)
	if err != nil {
		return nil, err
	}

	var parts []*frame.Table
	failed := 0
	for i, m := range matches {
		if !m.Resolved() || m.NameFBRef == "" {
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		t, err := c.PlayerMatchLogs(ctx, m.IDFBRef, m.NameFBRef, fbrefSeason)
		pacer.Done()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			telemetry.Metrics.EntitiesSkipped.Inc()
			var re *httpfetch.RequestError
			if errors.As(err, &re) {
				telemetry.Errorf("fbref: failed to collect data for %s (%s) after %d attempts: %v", m.NameFBRef, m.IDFBRef, re.Attempts, err)
			} else {
				telemetry.Errorf("fbref: error processing %s (%s): %v", m.NameFBRef, m.IDFBRef, err)
			}
			continue
		}
		parts = append(parts, t)
		telemetry.Debugf("fbref: (%d/%d) %s has %d %s rows", i+1, len(matches), m.NameFBRef, t.Len(), c.competition)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no match logs for %s (%d failures)", ErrNoPlayers, fbrefSeason, failed)
	}
	telemetry.Infof("fbref: collected match logs for %d players, %d failed", len(parts), failed)
	return frame.Concat(parts...), nil
}
