// Package warehouse bulk-loads finished season files into SQL staging
// tables and stores model predictions. Postgres is the production target;
// a local SQLite file serves development and tests.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedDSN = errors.New("warehouse dsn must start with postgres:// or sqlite://")

type dialect struct {
	name        string
	floatType   string
	placeholder func(i int) string
}

// execer is one open transaction.
type execer interface {
	exec(ctx context.Context, query string, args ...any) error
	copyRows(ctx context.Context, table string, cols []string, rows [][]any) (int64, error)
}

type backend interface {
	dialect() dialect
	inTx(ctx context.Context, fn func(execer) error) error
	queryInt(ctx context.Context, query string, args ...any) (int64, error)
	close()
}

type Warehouse struct {
	b        backend
	newRunID func() string
	now      func() time.Time
}

// Open connects to dsn and creates any missing tables.
func Open(ctx context.Context, dsn string) (*Warehouse, error) {
	var (
		b   backend
		err error
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		b, err = openPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		b, err = openSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return nil, ErrUnsupportedDSN
	}
	if err != nil {
		return nil, err
	}

	w := &Warehouse{b: b, newRunID: uuid.NewString, now: time.Now}
	err = b.inTx(ctx, func(tx execer) error {
		for _, stmt := range schema(b.dialect()) {
			if err := tx.exec(ctx, stmt); err != nil {
				return fmt.Errorf("init schema: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		b.close()
		return nil, err
	}
	return w, nil
}

func (w *Warehouse) Close() { w.b.close() }

// Count returns the rows held for season in table.
func (w *Warehouse) Count(ctx context.Context, table, season string) (int64, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE season = %s", quoteIdent(table), w.b.dialect().placeholder(1))
	return w.b.queryInt(ctx, q, season)
}

func knownTable(name string) bool {
	if _, ok := StagingByName(name); ok {
		return true
	}
	return name == loadRunsTable || name == GoalPredictions || name == AssistPredictions
}
