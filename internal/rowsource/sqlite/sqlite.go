// Package sqlite serves trace rows from a SQLite trace file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/rowsource"
	"github.com/ashita-ai/tracelens/migrations"
)

// Source reads trace rows from a SQLite database.
type Source struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ rowsource.Source = (*Source)(nil)

// Open opens the SQLite database at path and checks the connection.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Source, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return &Source{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Source) Close() error {
	return s.db.Close()
}

// RunMigrations executes unapplied SQL migration files from migrationsFS in
// order, recording each in schema_migrations so it runs at most once.
func (s *Source) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	applied, err := s.loadAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: load applied migrations: %w", err)
	}

	names, err := migrations.Ordered(migrationsFS)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	for _, name := range names {
		if applied[name] {
			s.logger.Debug("migration already applied, skipping", "file", name)
			continue
		}
		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("sqlite: read migration %s: %w", name, err)
		}
		s.logger.Info("running migration", "file", name)
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("sqlite: execute migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES (?) ON CONFLICT DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("sqlite: record migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Source) loadAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Load inserts the rows of f in one transaction.
func (s *Source) Load(ctx context.Context, f rowsource.Fixture) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin load: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range f.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trace_entries (id, trace_type, ts, arg_set_id) VALUES (?, ?, ?, ?)`,
			e.ID, e.TraceType, e.TsNs, e.ArgSetID,
		); err != nil {
			return fmt.Errorf("sqlite: insert entry %d: %w", e.ID, err)
		}
	}
	for _, n := range f.Nodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trace_nodes (id, entry_id, arg_set_id) VALUES (?, ?, ?)`,
			n.ID, n.EntryID, n.ArgSetID,
		); err != nil {
			return fmt.Errorf("sqlite: insert node %d: %w", n.ID, err)
		}
	}
	for argSetID, rows := range f.Args {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO args (arg_set_id, key, value_type, int_value, real_value, string_value)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				argSetID, r.Key, string(r.ValueType), r.IntValue, r.RealValue, r.StringValue,
			); err != nil {
				return fmt.Errorf("sqlite: insert arg %s: %w", r.Key, err)
			}
		}
	}
	for name, offset := range f.Offsets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clock_offsets (name, offset_ns) VALUES (?, ?)
			 ON CONFLICT (name) DO UPDATE SET offset_ns = excluded.offset_ns`,
			name, offset,
		); err != nil {
			return fmt.Errorf("sqlite: insert clock offset %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit load: %w", err)
	}
	return nil
}

// Entries implements rowsource.Source.
func (s *Source) Entries(ctx context.Context, traceType string) ([]rowsource.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_type, ts, arg_set_id FROM trace_entries
		 WHERE trace_type = ? ORDER BY ts, id`, traceType)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rowsource.Entry
	for rows.Next() {
		var e rowsource.Entry
		if err := rows.Scan(&e.ID, &e.TraceType, &e.TsNs, &e.ArgSetID); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Nodes implements rowsource.Source.
func (s *Source) Nodes(ctx context.Context, entryID int64) ([]rowsource.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, arg_set_id FROM trace_nodes WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []rowsource.Node
	for rows.Next() {
		var n rowsource.Node
		if err := rows.Scan(&n.ID, &n.EntryID, &n.ArgSetID); err != nil {
			return nil, fmt.Errorf("sqlite: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Args implements rowsource.Source.
func (s *Source) Args(ctx context.Context, argSetID int64) ([]fakeproto.Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value_type, int_value, real_value, string_value FROM args
		 WHERE arg_set_id = ? ORDER BY rowid`, argSetID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query args: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []fakeproto.Row
	for rows.Next() {
		var (
			r         fakeproto.Row
			valueType string
			intValue  sql.NullInt64
			realValue sql.NullFloat64
			strValue  sql.NullString
		)
		if err := rows.Scan(&r.Key, &valueType, &intValue, &realValue, &strValue); err != nil {
			return nil, fmt.Errorf("sqlite: scan arg: %w", err)
		}
		r.ValueType = fakeproto.ValueType(valueType)
		r.IntValue, r.RealValue, r.StringValue = intValue.Int64, realValue.Float64, strValue.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read args: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sqlite: arg set %d: %w", argSetID, rowsource.ErrNotFound)
	}
	return out, nil
}

// RealtimeOffset implements rowsource.Source.
func (s *Source) RealtimeOffset(ctx context.Context) (int64, error) {
	var offset int64
	err := s.db.QueryRowContext(ctx,
		`SELECT offset_ns FROM clock_offsets WHERE name = ?`, rowsource.RealtimeClock,
	).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rowsource.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: query realtime offset: %w", err)
	}
	return offset, nil
}
