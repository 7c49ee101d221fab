// Package fplcsv turns FPL API payloads into the per-season CSV artifacts
// and derives the cleaned and id-only views from players_raw.csv.
package fplcsv

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/charleschow/fpl-pipeline/internal/core/frame"
)

// RecordsTable flattens JSON objects into a table whose columns are the
// sorted union of all keys.
func RecordsTable(records []map[string]any) *frame.Table {
	keys := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			keys[k] = true
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	t := frame.New(header...)
	for _, r := range records {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = formatCell(r[k])
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// formatCell renders a decoded JSON value the way the downstream loaders
// expect: booleans as True/False, null as empty, nested values as JSON.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
