package fplcsv

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	PlayersRawFile   = "players_raw.csv"
	PlayersCleanFile = "players_clean.csv"
	PlayerIDListFile = "player_idlist.csv"
	FixturesFile     = "fixtures.csv"
	TeamsFile        = "teams.csv"
	PlayersDir       = "players"
	GameweeksDir     = "gws"
)

var ErrInvalidPosition = errors.New("invalid position code")

var positions = map[string]string{
	"1": "GK",
	"2": "DEF",
	"3": "MID",
	"4": "FWD",
}

// PositionName maps an element_type code to GK/DEF/MID/FWD.
func PositionName(code string) (string, error) {
	if p, ok := positions[strings.TrimSpace(code)]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPosition, code)
}

var cleanColumns = []string{
	"first_name", "second_name", "goals_scored", "assists", "total_points",
	"minutes", "goals_conceded", "creativity", "influence", "threat",
	"bonus", "bps", "ict_index", "clean_sheets", "red_cards",
	"yellow_cards", "selected_by_percent", "now_cost", "element_type", "team",
}

func writeRecords(path string, records []map[string]any) error {
	if len(records) == 0 {
		return fmt.Errorf("no records for %s", filepath.Base(path))
	}
	return RecordsTable(records).WriteCSV(path)
}

func WritePlayersRaw(dir string, elements []map[string]any) error {
	return writeRecords(filepath.Join(dir, PlayersRawFile), elements)
}

func WriteFixtures(dir string, fixtures []map[string]any) error {
	return writeRecords(filepath.Join(dir, FixturesFile), fixtures)
}

func WriteTeams(dir string, teams []map[string]any) error {
	return writeRecords(filepath.Join(dir, TeamsFile), teams)
}

// CleanPlayers writes players_clean.csv: the summary columns with
// element_type spelled out. An unknown position code aborts the file.
func CleanPlayers(dir string) error {
	raw, err := frame.ReadCSV(filepath.Join(dir, PlayersRawFile))
	if err != nil {
		return err
	}
	if err := raw.Require("first_name", "second_name", "element_type"); err != nil {
		return fmt.Errorf("%s: %w", PlayersRawFile, err)
	}

	out := frame.New(cleanColumns...)
	for i := range raw.Rows {
		row := make([]string, len(cleanColumns))
		for j, c := range cleanColumns {
			row[j] = raw.Get(i, c)
		}
		pos, err := PositionName(raw.Get(i, "element_type"))
		if err != nil {
			return fmt.Errorf("%s row %d: %w", PlayersRawFile, i+2, err)
		}
		row[out.Index("element_type")] = pos
		out.Rows = append(out.Rows, row)
	}
	return out.WriteCSV(filepath.Join(dir, PlayersCleanFile))
}

// IDPlayers writes player_idlist.csv (first_name, second_name, id).
func IDPlayers(dir string) error {
	raw, err := frame.ReadCSV(filepath.Join(dir, PlayersRawFile))
	if err != nil {
		return err
	}
	ids, err := raw.Select("first_name", "second_name", "id")
	if err != nil {
		return fmt.Errorf("%s: %w", PlayersRawFile, err)
	}
	return ids.WriteCSV(filepath.Join(dir, PlayerIDListFile))
}

// PlayerRef names one player's history directory.
type PlayerRef struct {
	ID   int
	Name string
}

// Dir is "{First}_{Second_With_Underscores}_{id}".
func (p PlayerRef) Dir() string { return fmt.Sprintf("%s_%d", p.Name, p.ID) }

// PlayerRefs reads player_idlist.csv in file order.
func PlayerRefs(dir string) ([]PlayerRef, error) {
	t, err := frame.ReadCSV(filepath.Join(dir, PlayerIDListFile))
	if err != nil {
		return nil, err
	}
	if err := t.Require("first_name", "second_name", "id"); err != nil {
		return nil, fmt.Errorf("%s: %w", PlayerIDListFile, err)
	}
	out := make([]PlayerRef, 0, t.Len())
	for i := range t.Rows {
		id, err := strconv.Atoi(strings.TrimSpace(t.Get(i, "id")))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid id %q", PlayerIDListFile, i+2, t.Get(i, "id"))
		}
		name := t.Get(i, "first_name") + "_" + strings.ReplaceAll(t.Get(i, "second_name"), " ", "_")
		out = append(out, PlayerRef{ID: id, Name: name})
	}
	return out, nil
}

// WritePlayerHistory writes history.csv and gw.csv under the player's
// directory. Empty histories are logged and skipped.
func WritePlayerHistory(playersDir string, p PlayerRef, history, historyPast []map[string]any) error {
	dir := filepath.Join(playersDir, p.Dir())
	if len(historyPast) == 0 {
		telemetry.Debugf("fplcsv: no season history for %s (id=%d)", p.Name, p.ID)
	} else if err := RecordsTable(historyPast).WriteCSV(filepath.Join(dir, "history.csv")); err != nil {
		return err
	}
	if len(history) == 0 {
		telemetry.Warnf("fplcsv: no gameweek history for %s (id=%d)", p.Name, p.ID)
		return nil
	}
	return RecordsTable(history).WriteCSV(filepath.Join(dir, "gw.csv"))
}
