package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const (
	FPLRosterFile   = "player_idlist.csv"
	FBRefRosterFile = "fbref_ids.csv"
	MatchesFile     = "player_compiled_ids.csv"
	MissingFile     = "missing_fbref_ids.json"
)

var matchColumns = []string{"first_name_fpl", "second_name_fpl", "id_fpl", "name_fbref", "id_fbref", "match_stage"}

func ReadFPLRoster(path string) ([]FPLPlayer, error) {
	t, err := frame.ReadCSV(path)
	if err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	if err := t.Require("first_name", "second_name", "id"); err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	out := make([]FPLPlayer, 0, t.Len())
	for i := range t.Rows {
		id, err := parseID(t.Get(i, "id"))
		if err != nil {
			return nil, &DataError{Source: path, Err: fmt.Errorf("row %d: %w", i+2, err)}
		}
		out = append(out, FPLPlayer{ID: id, FirstName: t.Get(i, "first_name"), SecondName: t.Get(i, "second_name")})
	}
	return out, nil
}

func ReadFBRefRoster(path string) ([]FBRefPlayer, error) {
	t, err := frame.ReadCSV(path)
	if err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	if err := t.Require("name", "id"); err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	out := make([]FBRefPlayer, 0, t.Len())
	for i := range t.Rows {
		name, id := strings.TrimSpace(t.Get(i, "name")), strings.TrimSpace(t.Get(i, "id"))
		if name == "" || id == "" {
			telemetry.Warnf("identity: %s row %d has empty name or id, skipped", path, i+2)
			continue
		}
		out = append(out, FBRefPlayer{Name: name, ID: id})
	}
	return out, nil
}

// WriteFBRefRoster persists a scraped roster as fbref_ids.csv.
func WriteFBRefRoster(path string, players []FBRefPlayer) error {
	t := frame.New("name", "id")
	for _, p := range players {
		t.AppendRow([]string{p.Name, p.ID})
	}
	return t.WriteCSV(path)
}

// ReadMatches loads a persisted player_compiled_ids.csv. Only the columns the
// carry-forward join needs are required.
func ReadMatches(path string) ([]Match, error) {
	t, err := frame.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require("first_name_fpl", "second_name_fpl", "id_fbref"); err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	out := make([]Match, 0, t.Len())
	for i := range t.Rows {
		m := Match{
			FirstNameFPL:  t.Get(i, "first_name_fpl"),
			SecondNameFPL: t.Get(i, "second_name_fpl"),
			NameFBRef:     t.Get(i, "name_fbref"),
			IDFBRef:       strings.TrimSpace(t.Get(i, "id_fbref")),
			Stage:         Stage(t.Get(i, "match_stage")),
		}
		if raw := t.Get(i, "id_fpl"); raw != "" {
			if id, err := parseID(raw); err == nil {
				m.IDFPL = id
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// parseID accepts "12" and the float form "12.0" older exports wrote.
func parseID(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid player id %q", s)
	}
	return int(f), nil
}

// MatchesTable renders matches in persisted column order.
func MatchesTable(matches []Match) *frame.Table {
	t := frame.New(matchColumns...)
	for _, m := range matches {
		t.AppendRow([]string{
			m.FirstNameFPL, m.SecondNameFPL, strconv.Itoa(m.IDFPL),
			m.NameFBRef, m.IDFBRef, string(m.Stage),
		})
	}
	return t
}

// WriteResult persists the season mapping and the missing-player list.
func WriteResult(dir string, res Result) error {
	if err := MatchesTable(res.Matches).WriteCSV(filepath.Join(dir, MatchesFile)); err != nil {
		return err
	}
	missing := res.Missing
	if missing == nil {
		missing = []string{}
	}
	data, err := json.Marshal(missing)
	if err != nil {
		return fmt.Errorf("marshal missing players: %w", err)
	}
	path := filepath.Join(dir, MissingFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadMissing loads missing_fbref_ids.json.
func ReadMissing(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &DataError{Source: path, Err: err}
	}
	return out, nil
}

// ReconcileSeason reads the season's rosters from dataDir/season, seeds from
// the previous season's mapping when present and writes the result. Nothing
// is written when the inputs are malformed.
func ReconcileSeason(dataDir, seasonLabel string, r *Reconciler) (Result, error) {
	prevLabel, err := season.Previous(seasonLabel)
	if err != nil {
		return Result{}, err
	}
	dir := filepath.Join(dataDir, seasonLabel)

	telemetry.Infof("identity: loading player data for %s", seasonLabel)
	fpl, err := ReadFPLRoster(filepath.Join(dir, FPLRosterFile))
	if err != nil {
		return Result{}, err
	}
	fbref, err := ReadFBRefRoster(filepath.Join(dir, FBRefRosterFile))
	if err != nil {
		return Result{}, err
	}

	prior, err := ReadMatches(filepath.Join(dataDir, prevLabel, MatchesFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		telemetry.Warnf("identity: no previous season data found for %s, proceeding without carry-forward", prevLabel)
		prior = nil
	case err != nil:
		telemetry.Warnf("identity: previous season mapping for %s unreadable, proceeding without carry-forward: %v", prevLabel, err)
		prior = nil
	}

	res, err := r.Reconcile(fpl, fbref, prior)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile %s: %w", seasonLabel, err)
	}
	if err := WriteResult(dir, res); err != nil {
		return Result{}, err
	}
	telemetry.Infof("identity: %s saved %d players, %d still missing", seasonLabel, len(res.Matches), len(res.Missing))
	return res, nil
}
