package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

type LoadResult struct {
	RunID string
	Table string
	Rows  int64
}

// LoadSeason replaces the season's slice of every staging table from the
// files in {dataDir}/{season}. Files that do not exist are skipped.
func (w *Warehouse) LoadSeason(ctx context.Context, dataDir, seasonLabel string) ([]LoadResult, error) {
	if err := season.Validate(seasonLabel); err != nil {
		return nil, err
	}
	runID := w.newRunID()
	var out []LoadResult
	for _, st := range StagingTables {
		path := filepath.Join(dataDir, seasonLabel, st.File)
		t, err := frame.ReadCSV(path)
		if errors.Is(err, os.ErrNotExist) {
			telemetry.Warnf("warehouse: %s not found, %s not loaded", path, st.Name)
			continue
		}
		if err != nil {
			return out, err
		}
		n, err := w.LoadTable(ctx, runID, st, seasonLabel, t)
		if err != nil {
			return out, fmt.Errorf("load %s: %w", st.Name, err)
		}
		telemetry.Infof("warehouse: loaded %d rows into %s for %s", n, st.Name, seasonLabel)
		out = append(out, LoadResult{RunID: runID, Table: st.Name, Rows: n})
	}
	return out, nil
}

// LoadTable swaps the season's rows in one staging table and records the
// load. Columns are matched by normalised header; absent ones load as NULL
// and the season column always carries seasonLabel.
func (w *Warehouse) LoadTable(ctx context.Context, runID string, st Staging, seasonLabel string, t *frame.Table) (int64, error) {
	src := make([]int, len(st.Columns))
	byName := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		name := ColumnName(h)
		if _, dup := byName[name]; !dup {
			byName[name] = i
		}
	}
	matched := 0
	for j, c := range st.Columns {
		i, ok := byName[c]
		if !ok {
			i = -1
		} else {
			matched++
		}
		src[j] = i
	}
	if ignored := len(byName) - matched; ignored > 0 {
		telemetry.Debugf("warehouse: %s ignores %d unknown columns", st.Name, ignored)
	}

	rows := make([][]any, 0, t.Len())
	for _, r := range t.Rows {
		row := make([]any, len(st.Columns))
		for j, c := range st.Columns {
			switch {
			case c == "season":
				row[j] = seasonLabel
			case src[j] >= 0 && src[j] < len(r) && r[src[j]] != "":
				row[j] = r[src[j]]
			}
		}
		rows = append(rows, row)
	}

	d := w.b.dialect()
	var n int64
	err := w.b.inTx(ctx, func(tx execer) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE season = %s", quoteIdent(st.Name), d.placeholder(1))
		if err := tx.exec(ctx, del, seasonLabel); err != nil {
			return err
		}
		var err error
		if n, err = tx.copyRows(ctx, st.Name, st.Columns, rows); err != nil {
			return err
		}
		return w.recordRun(ctx, tx, runID, seasonLabel, st.Name, n)
	})
	return n, err
}

func (w *Warehouse) recordRun(ctx context.Context, tx execer, runID, seasonLabel, table string, n int64) error {
	d := w.b.dialect()
	q := fmt.Sprintf("INSERT INTO load_runs (run_id, season, table_name, row_count, loaded_at) VALUES (%s, %s, %s, %s, %s)",
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4), d.placeholder(5))
	return tx.exec(ctx, q, runID, seasonLabel, table, n, w.now().UTC().Format(time.RFC3339))
}
