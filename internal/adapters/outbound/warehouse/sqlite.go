package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name:        "sqlite",
	floatType:   "REAL",
	placeholder: func(int) string { return "?" },
}

type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(path string) (*sqliteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite dsn has no path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create warehouse dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) dialect() dialect { return sqliteDialect }

func (s *sqliteBackend) inTx(ctx context.Context, fn func(execer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(sqlTx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteBackend) queryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (s *sqliteBackend) close() { s.db.Close() }

type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// copyRows has no COPY equivalent in SQLite; a prepared insert inside the
// open transaction is the fast path.
func (t sqlTx) copyRows(ctx context.Context, table string, cols []string, rows [][]any) (int64, error) {
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := t.tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	var n int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
