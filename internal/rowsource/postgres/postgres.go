// Package postgres serves trace rows from a shared PostgreSQL database.
//
// Queries run through a pgxpool connection pool and are retried on
// serialization failures and deadlocks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/rowsource"
)

const (
	maxRetries = 3
	baseDelay  = 10 * time.Millisecond
)

// Source reads trace rows from PostgreSQL.
type Source struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ rowsource.Source = (*Source)(nil)

// New creates a Source with a connection pool and checks connectivity.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Source, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse pool DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping pool: %w", err)
	}

	return &Source{pool: pool, logger: logger}, nil
}

// Pool returns the underlying connection pool.
func (s *Source) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// Entries implements rowsource.Source.
func (s *Source) Entries(ctx context.Context, traceType string) ([]rowsource.Entry, error) {
	var out []rowsource.Entry
	err := WithRetry(ctx, maxRetries, baseDelay, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT id, trace_type, ts, arg_set_id FROM trace_entries
			 WHERE trace_type = $1 ORDER BY ts, id`, traceType)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rowsource.Entry, error) {
			var e rowsource.Entry
			err := row.Scan(&e.ID, &e.TraceType, &e.TsNs, &e.ArgSetID)
			return e, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: query entries: %w", err)
	}
	return out, nil
}

// Nodes implements rowsource.Source.
func (s *Source) Nodes(ctx context.Context, entryID int64) ([]rowsource.Node, error) {
	var out []rowsource.Node
	err := WithRetry(ctx, maxRetries, baseDelay, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT id, entry_id, arg_set_id FROM trace_nodes WHERE entry_id = $1 ORDER BY id`, entryID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (rowsource.Node, error) {
			var n rowsource.Node
			err := row.Scan(&n.ID, &n.EntryID, &n.ArgSetID)
			return n, err
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: query nodes: %w", err)
	}
	return out, nil
}

// Args implements rowsource.Source.
func (s *Source) Args(ctx context.Context, argSetID int64) ([]fakeproto.Row, error) {
	var out []fakeproto.Row
	err := WithRetry(ctx, maxRetries, baseDelay, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT key, value_type, int_value, real_value, string_value FROM args
			 WHERE arg_set_id = $1 ORDER BY ctid`, argSetID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (fakeproto.Row, error) {
			var (
				r         fakeproto.Row
				valueType string
				intValue  *int64
				realValue *float64
				strValue  *string
			)
			if err := row.Scan(&r.Key, &valueType, &intValue, &realValue, &strValue); err != nil {
				return r, err
			}
			r.ValueType = fakeproto.ValueType(valueType)
			if intValue != nil {
				r.IntValue = *intValue
			}
			if realValue != nil {
				r.RealValue = *realValue
			}
			if strValue != nil {
				r.StringValue = *strValue
			}
			return r, nil
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: query args: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("postgres: arg set %d: %w", argSetID, rowsource.ErrNotFound)
	}
	return out, nil
}

// RealtimeOffset implements rowsource.Source.
func (s *Source) RealtimeOffset(ctx context.Context) (int64, error) {
	var offset int64
	err := WithRetry(ctx, maxRetries, baseDelay, func() error {
		return s.pool.QueryRow(ctx,
			`SELECT offset_ns FROM clock_offsets WHERE name = $1`, rowsource.RealtimeClock,
		).Scan(&offset)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, rowsource.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: query realtime offset: %w", err)
	}
	return offset, nil
}

// Load inserts the rows of f in one transaction. Args are written with COPY.
func (s *Source) Load(ctx context.Context, f rowsource.Fixture) error {
	return WithRetry(ctx, maxRetries, baseDelay, func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			for _, e := range f.Entries {
				if _, err := tx.Exec(ctx,
					`INSERT INTO trace_entries (id, trace_type, ts, arg_set_id) VALUES ($1, $2, $3, $4)`,
					e.ID, e.TraceType, e.TsNs, e.ArgSetID,
				); err != nil {
					return fmt.Errorf("postgres: insert entry %d: %w", e.ID, err)
				}
			}
			for _, n := range f.Nodes {
				if _, err := tx.Exec(ctx,
					`INSERT INTO trace_nodes (id, entry_id, arg_set_id) VALUES ($1, $2, $3)`,
					n.ID, n.EntryID, n.ArgSetID,
				); err != nil {
					return fmt.Errorf("postgres: insert node %d: %w", n.ID, err)
				}
			}

			var argRows [][]any
			for argSetID, rows := range f.Args {
				for _, r := range rows {
					argRows = append(argRows, []any{argSetID, r.Key, string(r.ValueType), r.IntValue, r.RealValue, r.StringValue})
				}
			}
			if _, err := tx.CopyFrom(ctx,
				pgx.Identifier{"args"},
				[]string{"arg_set_id", "key", "value_type", "int_value", "real_value", "string_value"},
				pgx.CopyFromRows(argRows),
			); err != nil {
				return fmt.Errorf("postgres: copy args: %w", err)
			}

			for name, offset := range f.Offsets {
				if _, err := tx.Exec(ctx,
					`INSERT INTO clock_offsets (name, offset_ns) VALUES ($1, $2)
					 ON CONFLICT (name) DO UPDATE SET offset_ns = excluded.offset_ns`,
					name, offset,
				); err != nil {
					return fmt.Errorf("postgres: insert clock offset %s: %w", name, err)
				}
			}
			return nil
		})
	})
}
