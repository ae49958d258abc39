package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies embedded migrations that are not yet recorded in
// schema_migrations. Each file runs in its own transaction.
//
// Returns:
//   - []string: names of the migrations applied by this call.
//   - error: the first failure; earlier migrations stay applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	const op = "postgres.Store.Migrate"

	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		 )`,
	); err != nil {
		return nil, wrapDBErr(op, err)
	}

	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return applied, fmt.Errorf("%s: %w", op, err)
		}

		ran := false
		err = s.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
			tag, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations(filename) VALUES ($1)
				 ON CONFLICT (filename) DO NOTHING`,
				name,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}

			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("%s: %s: %w", op, name, translateDBErr(err))
		}

		if ran {
			applied = append(applied, name)
		}
	}

	return applied, nil
}
