package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/season"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

type Prediction struct {
	GW        int
	IDFPL     int
	Player    string
	Predicted float64
}

var predictionColumns = []string{"season", "gw", "id_fpl", "player", "predicted"}

// ReadPredictions parses a model output file with gw, id_fpl, player and
// predicted columns.
func ReadPredictions(path string) ([]Prediction, error) {
	t, err := frame.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require("gw", "id_fpl", "predicted"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out := make([]Prediction, 0, t.Len())
	for i := range t.Rows {
		gw, err1 := strconv.Atoi(t.Get(i, "gw"))
		id, err2 := strconv.Atoi(t.Get(i, "id_fpl"))
		v, err3 := strconv.ParseFloat(t.Get(i, "predicted"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s row %d: malformed prediction %v", path, i+1, t.Rows[i])
		}
		out = append(out, Prediction{GW: gw, IDFPL: id, Player: t.Get(i, "player"), Predicted: v})
	}
	return out, nil
}

// WritePredictions replaces every (season, gw) slice present in preds.
// kind is GoalPredictions or AssistPredictions.
func (w *Warehouse) WritePredictions(ctx context.Context, kind, seasonLabel string, preds []Prediction) (int64, error) {
	if kind != GoalPredictions && kind != AssistPredictions {
		return 0, fmt.Errorf("unknown predictions table %q", kind)
	}
	if err := season.Validate(seasonLabel); err != nil {
		return 0, err
	}
	gws := map[int]bool{}
	rows := make([][]any, len(preds))
	for i, p := range preds {
		gws[p.GW] = true
		var player any
		if p.Player != "" {
			player = p.Player
		}
		rows[i] = []any{seasonLabel, p.GW, p.IDFPL, player, p.Predicted}
	}
	order := make([]int, 0, len(gws))
	for gw := range gws {
		order = append(order, gw)
	}
	sort.Ints(order)

	d := w.b.dialect()
	var n int64
	err := w.b.inTx(ctx, func(tx execer) error {
		del := fmt.Sprintf("DELETE FROM %s WHERE season = %s AND gw = %s", quoteIdent(kind), d.placeholder(1), d.placeholder(2))
		for _, gw := range order {
			if err := tx.exec(ctx, del, seasonLabel, gw); err != nil {
				return err
			}
		}
		var err error
		if n, err = tx.copyRows(ctx, kind, predictionColumns, rows); err != nil {
			return err
		}
		return w.recordRun(ctx, tx, w.newRunID(), seasonLabel, kind, n)
	})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", kind, err)
	}
	telemetry.Infof("warehouse: wrote %d %s rows for %s gameweeks %v", n, kind, seasonLabel, order)
	return n, nil
}
