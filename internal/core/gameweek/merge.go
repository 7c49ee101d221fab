package gameweek

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charleschow/fpl-pipeline/internal/core/fplcsv"
	"github.com/charleschow/fpl-pipeline/internal/core/frame"
	"github.com/charleschow/fpl-pipeline/internal/telemetry"
)

const MergedFile = "merged_gw.csv"

var ErrNoGameweeks = errors.New("no gameweek files to merge")

// MergeReport lists which gameweeks made it into the merged table.
type MergeReport struct {
	Merged  []int
	Missing []int
	Rows    int
}

// Merge folds dir/gws/gw_{start..end}.csv into dir/output with a GW column.
// A missing or unreadable gameweek is logged and reported, never fatal. The
// output is rewritten whole.
func Merge(dir string, start, end int, output string) (MergeReport, error) {
	if output == "" {
		output = MergedFile
	}
	var (
		report MergeReport
		parts  []*frame.Table
	)
	for gw := start; gw <= end; gw++ {
		path := filepath.Join(dir, fplcsv.GameweeksDir, fmt.Sprintf("gw_%d.csv", gw))
		t, err := frame.ReadCSV(path)
		if err == nil && len(t.Header) == 0 {
			err = fmt.Errorf("%s has no header", path)
		}
		if err != nil {
			telemetry.Warnf("gameweek: GW%d skipped in merge: %v", gw, err)
			report.Missing = append(report.Missing, gw)
			continue
		}
		t.AddColumn("GW", strconv.Itoa(gw))
		parts = append(parts, t)
		report.Merged = append(report.Merged, gw)
	}
	if len(parts) == 0 {
		return report, fmt.Errorf("%w in %s for GW%d-%d", ErrNoGameweeks, dir, start, end)
	}

	merged := frame.Concat(parts...)
	report.Rows = merged.Len()
	if err := merged.WriteCSV(filepath.Join(dir, output)); err != nil {
		return report, err
	}
	if len(report.Missing) > 0 {
		telemetry.Warnf("gameweek: merged %d gameweeks into %s, missing %v", len(report.Merged), output, report.Missing)
	} else {
		telemetry.Infof("gameweek: merged %d gameweeks into %s (%d rows)", len(report.Merged), output, report.Rows)
	}
	return report, nil
}
