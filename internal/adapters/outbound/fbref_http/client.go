// Package fbref_http scrapes FBRef team pages for player ids and player
// pages for match logs.
package fbref_http

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charleschow/fpl-pipeline/internal/adapters/outbound/httpfetch"
	"github.com/charleschow/fpl-pipeline/internal/core/identity"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	DefaultBaseURL     = "https://fbref.com"
	DefaultCompetition = "Premier League"
	DefaultCallRate    = 5
)

var ErrNoPlayers = errors.New("no fbref players collected")

type Client struct {
	baseURL     string
	competition string
	fetch       *httpfetch.Fetcher
	newPacer    func(callRate int) (*httpfetch.Pacer, error)
}

func NewClient(baseURL, competition string, fetch *httpfetch.Fetcher) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if competition == "" {
		competition = DefaultCompetition
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		competition: competition,
		fetch:       fetch,
		newPacer:    httpfetch.NewPacer,
	}
}

// PaceEvery replaces the spacing derived from the call rate with a fixed
// interval. The call rate is still validated.
func (c *Client) PaceEvery(d time.Duration) {
	c.newPacer = func(callRate int) (*httpfetch.Pacer, error) {
		if _, err := httpfetch.NewPacer(callRate); err != nil {
			return nil, err
		}
		return httpfetch.NewPacerEvery(d), nil
	}
}

// TeamPlayerLinks returns every href on a team page that points at a player.
func (c *Client) TeamPlayerLinks(ctx context.Context, teamURL string) ([]string, error) {
	doc, err := c.fetch.GetDocument(ctx, teamURL)
	if err != nil {
		return nil, err
	}
	var links []string
	doc.Find(`a[href*="/en/players/"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links, nil
}

// ParsePlayerIDs keeps links shaped /en/players/{id}/{Slug} and turns them
// into roster rows, dropping exact repeats while preserving order.
func ParsePlayerIDs(links []string) []identity.FBRefPlayer {
	var out []identity.FBRefPlayer
	for _, l := range links {
		segs := strings.Split(l, "/")
		if len(segs) != 5 || segs[3] == "" || segs[4] == "" {
			continue
		}
		out = append(out, identity.FBRefPlayer{
			Name: strings.ReplaceAll(segs[4], "-", " "),
			ID:   segs[3],
		})
	}
	return identity.DedupeFBRef(out)
}

// CollectTeamPlayers walks the season's teams in order, paced at callRate
// calls per minute. A team without a club link or whose page fails is logged
// and skipped. callRate is validated before any request is made.
func (c *Client) CollectTeamPlayers(ctx context.Context, teams []string, clubLinks map[string]string, callRate int) ([]identity.FBRefPlayer, error) {
	pacer, err := c.newPacer(callRate)
	if err != nil {
		return nil, err
	}

	var links []string
	for i, team := range teams {
		link, ok := clubLinks[team]
		if !ok {
			telemetry.Warnf("fbref: no club link for team %q, skipped", team)
			telemetry.Metrics.EntitiesSkipped.Inc()
			continue
		}
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		teamLinks, err := c.TeamPlayerLinks(ctx, link)
		pacer.Done()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			telemetry.Errorf("fbref: team %s failed: %v", team, err)
			telemetry.Metrics.EntitiesSkipped.Inc()
			continue
		}
		links = append(links, teamLinks...)
		telemetry.Debugf("fbref: (%d/%d) %s has %d player links", i+1, len(teams), team, len(teamLinks))
	}

	players := ParsePlayerIDs(links)
	if len(players) == 0 {
		return nil, fmt.Errorf("%w from %d teams", ErrNoPlayers, len(teams))
	}
	telemetry.Infof("fbref: collected %d player ids from %d teams", len(players), len(teams))
	return players, nil
}
