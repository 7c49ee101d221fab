// Package frame is the small column-addressed table every season artifact is
// read into and written from. Cells are kept as strings exactly as they
// appear on disk; callers convert at the edge.
package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrMissingColumn = errors.New("missing column")

type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

func New(header ...string) *Table {
	t := &Table{Header: append([]string(nil), header...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// ReadCSV loads a whole CSV file. A missing file is returned as an
// os.ErrNotExist-wrapping error so callers can treat it as optional.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := New(header...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.AppendRow(rec)
	}
	return t, nil
}

// WriteCSV writes the table to path, creating parent directories.
func (t *Table) WriteCSV(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if t.index == nil {
		t.reindex()
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Require fails with ErrMissingColumn naming every absent column.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the cell or "" when the column is unknown.
func (t *Table) Get(row int, col string) string {
	i := t.Index(col)
	if i < 0 || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

func (t *Table) Set(row int, col, val string) {
	i := t.Index(col)
	if i < 0 {
		t.AddColumn(col, "")
		i = t.Index(col)
	}
	t.Rows[row][i] = val
}

// AppendRow adds a positional row, padded or truncated to the header width.
func (t *Table) AppendRow(row []string) {
	out := make([]string, len(t.Header))
	copy(out, row)
	t.Rows = append(t.Rows, out)
}

// Append adds a row by column name. Unknown keys extend the header.
func (t *Table) Append(rec map[string]string) {
	for k := range rec {
		if !t.Has(k) {
			t.AddColumn(k, "")
		}
	}
	row := make([]string, len(t.Header))
	for k, v := range rec {
		row[t.Index(k)] = v
	}
	t.Rows = append(t.Rows, row)
}

// Record returns row i keyed by column name.
func (t *Table) Record(i int) map[string]string {
	rec := make(map[string]string, len(t.Header))
	for j, h := range t.Header {
		if j < len(t.Rows[i]) {
			rec[h] = t.Rows[i][j]
		}
	}
	return rec
}

// AddColumn appends a column holding value in every row. An existing
// column is overwritten in place.
func (t *Table) AddColumn(name, value string) {
	if i := t.Index(name); i >= 0 {
		for _, r := range t.Rows {
			r[i] = value
		}
		return
	}
	t.Header = append(t.Header, name)
	t.index[name] = len(t.Header) - 1
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], value)
	}
}

// InsertColumn puts a column at position pos (clamped).
func (t *Table) InsertColumn(pos int, name, value string) {
	if t.Has(name) {
		t.AddColumn(name, value)
		return
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(t.Header) {
		pos = len(t.Header)
	}
	t.Header = insertAt(t.Header, pos, name)
	for i, r := range t.Rows {
		t.Rows[i] = insertAt(r, pos, value)
	}
	t.reindex()
}

func insertAt(s []string, pos int, v string) []string {
	s = append(s, "")
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// DropColumns removes the named columns; unknown names are ignored.
func (t *Table) DropColumns(cols ...string) {
	drop := make(map[int]bool)
	for _, c := range cols {
		if i := t.Index(c); i >= 0 {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	keep := func(row []string) []string {
		out := make([]string, 0, len(row)-len(drop))
		for i, v := range row {
			if !drop[i] {
				out = append(out, v)
			}
		}
		return out
	}
	t.Header = keep(t.Header)
	for i, r := range t.Rows {
		t.Rows[i] = keep(r)
	}
	t.reindex()
}

// Rename maps old column names to new ones.
func (t *Table) Rename(names map[string]string) {
	for i, h := range t.Header {
		if n, ok := names[h]; ok {
			t.Header[i] = n
		}
	}
	t.reindex()
}

// Filter keeps rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) {
	out := t.Rows[:0]
	for i, r := range t.Rows {
		if keep(i) {
			out = append(out, r)
		}
	}
	t.Rows = out
}

// Select returns a new table with only cols, in that order.
func (t *Table) Select(cols ...string) (*Table, error) {
	if err := t.Require(cols...); err != nil {
		return nil, err
	}
	out := New(cols...)
	for i := range t.Rows {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = t.Get(i, c)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Concat stacks tables with an outer union of their headers. Columns keep
// first-seen order; cells absent from a source table are empty.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, h := range t.Header {
			if !out.Has(h) {
				out.AddColumn(h, "")
			}
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		pos := make([]int, len(t.Header))
		for j, h := range t.Header {
			pos[j] = out.Index(h)
		}
		for _, r := range t.Rows {
			row := make([]string, len(out.Header))
			for j, v := range r {
				if j < len(pos) {
					row[pos[j]] = v
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
