package postgres

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/tracelens/migrations"
)

// migrationLockID keys the advisory lock that serializes concurrent migrators
// sharing one database.
const migrationLockID = 0x7472616365 // "trace"

// RunMigrations applies the .sql files of migrationsFS that schema_migrations
// does not list yet. Each file runs in its own transaction together with its
// schema_migrations row.
func (s *Source) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	names, err := migrations.Ordered(migrationsFS)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	for _, name := range names {
		body, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}
		var ran bool
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
				return fmt.Errorf("lock: %w", err)
			}
			var done bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name,
			).Scan(&done); err != nil {
				return fmt.Errorf("check: %w", err)
			}
			if done {
				return nil
			}
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("execute: %w", err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
				return fmt.Errorf("record: %w", err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("postgres: migration %s: %w", name, err)
		}
		if ran {
			s.logger.Info("applied migration", "file", name)
		} else {
			s.logger.Debug("migration already applied", "file", name)
		}
	}
	return nil
}

// AppliedMigrations lists the recorded migration files in apply order.
func (s *Source) AppliedMigrations(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations ORDER BY applied_at, version`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list migrations: %w", err)
	}
	return versions, nil
}
