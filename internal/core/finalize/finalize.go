// Package finalize applies the last per-season CSV edits before files are
// shipped to object storage and the warehouse.
package finalize

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/core/fplcsv"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/core/gameweek"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	FBRefDataFile        = "fbref_merged_gw_data.csv"
	RecentGameweekFile   = "most_recent_gw.csv"
	FBRefRecentRoundFile = "fbref_most_recent_gw.csv"

	didNotPlay = "On matchday squad, but did not play"
)

var ErrNoRounds = errors.New("no numeric rounds")

// Season edits every season artifact in dir in place. clubLinks maps FPL
// team names to FBRef squad URLs.
func Season(dir, seasonLabel string, clubLinks map[string]string) error {
	if err := season.Validate(seasonLabel); err != nil {
		return err
	}
	if err := teams(dir, seasonLabel, clubLinks); err != nil {
		return err
	}
	for _, name := range []string{fplcsv.FixturesFile, fplcsv.PlayersCleanFile} {
		if err := edit(filepath.Join(dir, name), func(t *frame.Table) error {
			t.AddColumn("season", seasonLabel)
			return nil
		}); err != nil {
			return err
		}
	}
	if err := edit(filepath.Join(dir, gameweek.MergedFile), func(t *frame.Table) error {
		t.AddColumn("season", seasonLabel)
		t.DropColumns("modified")
		return nil
	}); err != nil {
		return err
	}
	return edit(filepath.Join(dir, FBRefDataFile), func(t *frame.Table) error {
		return FBRefData(t, seasonLabel)
	})
}

func edit(path string, fn func(*frame.Table) error) error {
	t, err := frame.ReadCSV(path)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return t.WriteCSV(path)
}

func teams(dir, seasonLabel string, clubLinks map[string]string) error {
	return edit(filepath.Join(dir, fplcsv.TeamsFile), func(t *frame.Table) error {
		if err := t.Require("name"); err != nil {
			return err
		}
		t.AddColumn("season", seasonLabel)
		t.AddColumn("fbref_id", "")
		for i := range t.Rows {
			name := t.Get(i, "name")
			id, ok := SquadID(clubLinks[name])
			if !ok {
				telemetry.Warnf("finalize: %s has no fbref squad link for team %q", seasonLabel, name)
				continue
			}
			t.Set(i, "fbref_id", id)
		}
		return nil
	})
}

// SquadID pulls the squad id out of /en/squads/{id}/... links.
func SquadID(link string) (string, bool) {
	if link == "" {
		return "", false
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	segs := strings.Split(u.Path, "/")
	if len(segs) < 4 || segs[3] == "" {
		return "", false
	}
	return segs[3], true
}

// FBRefData normalises the raw match log table: non-league rounds are
// dropped, Round becomes the matchweek number, Start becomes 1/0 and a
// Captain flag is derived from "Y*". A table that already carries Captain
// only has its Season refreshed.
func FBRefData(t *frame.Table, seasonLabel string) error {
	if t.Has("Captain") {
		t.AddColumn("Season", seasonLabel)
		return nil
	}
	if err := t.Require("Round", "Start"); err != nil {
		return err
	}

	keep := make([]bool, t.Len())
	for i := range t.Rows {
		round := t.Get(i, "Round")
		if strings.Contains(round, "League") {
			continue
		}
		fields := strings.Fields(round)
		var n int
		var err error
		if len(fields) == 0 {
			err = errors.New("empty round")
		} else {
			n, err = strconv.Atoi(fields[len(fields)-1])
		}
		if err != nil {
			telemetry.Warnf("finalize: %s dropped match log row with round %q", seasonLabel, round)
			telemetry.Metrics.EntitiesSkipped.Inc()
			continue
		}
		t.Set(i, "Round", strconv.Itoa(n))
		keep[i] = true
	}
	t.Filter(func(i int) bool { return keep[i] })

	for _, row := range t.Rows {
		for j, v := range row {
			if v == didNotPlay {
				row[j] = ""
			}
		}
	}

	t.AddColumn("Season", seasonLabel)
	t.AddColumn("Captain", "0")
	for i := range t.Rows {
		start := t.Get(i, "Start")
		if start == "Y*" {
			t.Set(i, "Captain", "1")
			start = "Y"
		}
		switch start {
		case "Y":
			t.Set(i, "Start", "1")
		case "N":
			t.Set(i, "Start", "0")
		default:
			t.Set(i, "Start", "")
		}
	}
	return nil
}

// RecentGameweeks writes the rows of the latest gameweek from merged_gw.csv
// and the latest round from the FBRef data next to them.
func RecentGameweeks(dir string) error {
	if err := latest(filepath.Join(dir, gameweek.MergedFile), "GW", filepath.Join(dir, RecentGameweekFile)); err != nil {
		return err
	}
	return latest(filepath.Join(dir, FBRefDataFile), "Round", filepath.Join(dir, FBRefRecentRoundFile))
}

func latest(in, col, out string) error {
	t, err := frame.ReadCSV(in)
	if err != nil {
		return err
	}
	if err := t.Require(col); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	max, found := 0, false
	for i := range t.Rows {
		n, err := strconv.Atoi(t.Get(i, col))
		if err != nil {
			continue
		}
		if !found || n > max {
			max, found = n, true
		}
	}
	if !found {
		return fmt.Errorf("%s: %w in %s", in, ErrNoRounds, col)
	}
	want := strconv.Itoa(max)
	t.Filter(func(i int) bool { return t.Get(i, col) == want })
	telemetry.Infof("finalize: %s %s %d has %d rows", filepath.Base(out), col, max, t.Len())
	return t.WriteCSV(out)
}
