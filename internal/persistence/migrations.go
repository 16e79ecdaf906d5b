package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	createMigrationsTable = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version    TEXT PRIMARY KEY,
            checksum   TEXT NOT NULL,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`
	selectAppliedMigrations = `SELECT version, checksum FROM schema_migrations`
	insertAppliedMigration  = `INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)`
)

// MigrationDB is the subset of a pgx pool the migrator needs.
type MigrationDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunMigrations applies the *.sql files in fsys in lexical order. Each file
// runs in its own transaction together with its schema_migrations row, so a
// file is applied at most once. Editing an applied file is an error.
func RunMigrations(ctx context.Context, db MigrationDB, fsys fs.FS, logger *zap.Logger) error {
	if _, err := db.Exec(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	filenames, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Strings(filenames)

	count := 0
	for _, name := range filenames {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		sum := migrationChecksum(content)
		if prev, ok := applied[name]; ok {
			if prev != sum {
				return fmt.Errorf("migration %s changed after it was applied", name)
			}
			continue
		}

		logger.Info("applying migration", zap.String("file", name))
		if err := applyMigration(ctx, db, name, string(content), sum); err != nil {
			return err
		}
		count++
	}

	logger.Info("migrations applied", zap.Int("applied", count), zap.Int("skipped", len(filenames)-count))
	return nil
}

func appliedMigrations(ctx context.Context, db MigrationDB) (map[string]string, error) {
	rows, err := db.Query(ctx, selectAppliedMigrations)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]string{}
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db MigrationDB, name, content, sum string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, content); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, insertAppliedMigration, name, sum); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

func migrationChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
