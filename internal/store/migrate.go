package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/db"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockKey serializes concurrent migrators across processes.
const migrationLockKey = 7310024

// Migrate applies pending SQL migrations in filename order under a
// Postgres advisory lock and records each in transition.schema_migrations.
func Migrate(ctx context.Context, pool db.Pool) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "store: acquire migration lock")
	}
	defer func() {
		if _, err := pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockKey); err != nil {
			log.Warn("store: release migration lock", zap.Error(err))
		}
	}()

	if _, err := pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS transition;
		CREATE TABLE IF NOT EXISTS transition.schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`); err != nil {
		return eris.Wrap(err, "store: ensure migration table")
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "store: read migration %s", name)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "store: apply migration %s", name)
		}
		if _, err := pool.Exec(ctx,
			"INSERT INTO transition.schema_migrations (filename) VALUES ($1)", name); err != nil {
			return eris.Wrapf(err, "store: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "store: read migration dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM transition.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "store: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "store: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "store: iterate migrations")
}
