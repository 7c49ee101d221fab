package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresDialect = dialect{
	name:        "postgres",
	floatType:   "DOUBLE PRECISION",
	placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
}

type pgBackend struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, dsn string) (*pgBackend, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &pgBackend{pool: pool}, nil
}

func (p *pgBackend) dialect() dialect { return postgresDialect }

func (p *pgBackend) inTx(ctx context.Context, fn func(execer) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(pgTx{tx: tx})
	})
}

func (p *pgBackend) queryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func (p *pgBackend) close() { p.pool.Close() }

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.Exec(ctx, query, args...)
	return err
}

func (t pgTx) copyRows(ctx context.Context, table string, cols []string, rows [][]any) (int64, error) {
	return t.tx.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows))
}
