// Package gameweek builds per-gameweek performance tables from the player
// history files and folds them into the season-long merged table.
package gameweek

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/core/fplcsv"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

var leadColumns = []string{"name", "position", "team", "xP"}

// Lookups holds the season reference data every gameweek needs.
type Lookups struct {
	teams    map[int]string
	homeTeam map[int]int
	awayTeam map[int]int
	names    map[int]string
	position map[int]string
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// LoadLookups reads teams.csv, fixtures.csv and players_raw.csv from baseDir.
func LoadLookups(baseDir string) (*Lookups, error) {
	l := &Lookups{
		teams:    make(map[int]string),
		homeTeam: make(map[int]int),
		awayTeam: make(map[int]int),
		names:    make(map[int]string),
		position: make(map[int]string),
	}

	teams, err := frame.ReadCSV(filepath.Join(baseDir, fplcsv.TeamsFile))
	if err != nil {
		return nil, err
	}
	if err := teams.Require("id", "name"); err != nil {
		return nil, fmt.Errorf("%s: %w", fplcsv.TeamsFile, err)
	}
	for i := range teams.Rows {
		id, err := atoi(teams.Get(i, "id"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", fplcsv.TeamsFile, i+2, err)
		}
		l.teams[id] = teams.Get(i, "name")
	}

	fixtures, err := frame.ReadCSV(filepath.Join(baseDir, fplcsv.FixturesFile))
	if err != nil {
		return nil, err
	}
	if err := fixtures.Require("id", "team_h", "team_a"); err != nil {
		return nil, fmt.Errorf("%s: %w", fplcsv.FixturesFile, err)
	}
	for i := range fixtures.Rows {
		id, err1 := atoi(fixtures.Get(i, "id"))
		h, err2 := atoi(fixtures.Get(i, "team_h"))
		a, err3 := atoi(fixtures.Get(i, "team_a"))
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s row %d: non-numeric id", fplcsv.FixturesFile, i+2)
		}
		l.homeTeam[id], l.awayTeam[id] = h, a
	}

	players, err := frame.ReadCSV(filepath.Join(baseDir, fplcsv.PlayersRawFile))
	if err != nil {
		return nil, err
	}
	if err := players.Require("id", "first_name", "second_name", "element_type"); err != nil {
		return nil, fmt.Errorf("%s: %w", fplcsv.PlayersRawFile, err)
	}
	for i := range players.Rows {
		id, err := atoi(players.Get(i, "id"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", fplcsv.PlayersRawFile, i+2, err)
		}
		pos, err := fplcsv.PositionName(players.Get(i, "element_type"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", fplcsv.PlayersRawFile, i+2, err)
		}
		l.names[id] = players.Get(i, "first_name") + " " + players.Get(i, "second_name")
		l.position[id] = pos
	}
	return l, nil
}

// playerIDFromDir reads the trailing "_{id}" of a player directory name.
func playerIDFromDir(name string) (int, bool) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return 0, false
	}
	id, err := strconv.Atoi(name[i+1:])
	return id, err == nil
}

// CollectGameweek writes outDir/gw_{gw}.csv from every player's gw.csv rows
// whose round is gw.
func CollectGameweek(baseDir, outDir string, gw int) error {
	l, err := LoadLookups(baseDir)
	if err != nil {
		return err
	}
	return l.collect(baseDir, outDir, gw)
}

// CollectAll writes gameweeks 1 through current inclusive.
func CollectAll(baseDir, outDir string, current int) error {
	if current < 1 {
		telemetry.Infof("gameweek: season has not started, nothing to collect")
		return nil
	}
	l, err := LoadLookups(baseDir)
	if err != nil {
		return err
	}
	for gw := 1; gw <= current; gw++ {
		if err := l.collect(baseDir, outDir, gw); err != nil {
			return fmt.Errorf("collect gameweek %d: %w", gw, err)
		}
	}
	return nil
}

func (l *Lookups) collect(baseDir, outDir string, gw int) error {
	playersDir := filepath.Join(baseDir, fplcsv.PlayersDir)
	entries, err := os.ReadDir(playersDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", playersDir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var parts []*frame.Table
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := playerIDFromDir(e.Name())
		if !ok {
			telemetry.Warnf("gameweek: directory %s has no player id, skipped", e.Name())
			continue
		}
		path := filepath.Join(playersDir, e.Name(), "gw.csv")
		hist, err := frame.ReadCSV(path)
		if err != nil {
			if !os.IsNotExist(err) {
				telemetry.Warnf("gameweek: %v, skipped", err)
			}
			continue
		}
		if err := hist.Require("round", "fixture", "was_home"); err != nil {
			telemetry.Warnf("gameweek: %s: %v, skipped", path, err)
			continue
		}
		rows := frame.New(hist.Header...)
		for i := range hist.Rows {
			if round, err := atoi(hist.Get(i, "round")); err != nil || round != gw {
				continue
			}
			rec, ok := l.enrich(id, hist, i)
			if !ok {
				continue
			}
			rows.Append(rec)
		}
		if rows.Len() > 0 {
			parts = append(parts, rows)
		}
	}

	out := frame.Concat(append([]*frame.Table{frame.New(leadColumns...)}, parts...)...)
	path := filepath.Join(outDir, fmt.Sprintf("gw_%d.csv", gw))
	if err := out.WriteCSV(path); err != nil {
		return err
	}
	telemetry.Debugf("gameweek: wrote %s (%d rows)", path, out.Len())
	return nil
}

func (l *Lookups) enrich(id int, hist *frame.Table, i int) (map[string]string, bool) {
	name, ok := l.names[id]
	if !ok {
		telemetry.Warnf("gameweek: player %d missing from %s, row skipped", id, fplcsv.PlayersRawFile)
		return nil, false
	}
	fixture, err := atoi(hist.Get(i, "fixture"))
	if err != nil {
		telemetry.Warnf("gameweek: player %d has fixture %q, row skipped", id, hist.Get(i, "fixture"))
		return nil, false
	}
	teamID, ok := l.awayTeam[fixture]
	if strings.EqualFold(hist.Get(i, "was_home"), "true") {
		teamID, ok = l.homeTeam[fixture]
	}
	if !ok {
		telemetry.Warnf("gameweek: fixture %d unknown for player %d, row skipped", fixture, id)
		return nil, false
	}
	rec := hist.Record(i)
	rec["name"] = name
	rec["position"] = l.position[id]
	rec["team"] = l.teams[teamID]
	return rec, true
}
