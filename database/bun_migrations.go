package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// bunSchemaMigration tracks applied migrations
type bunSchemaMigration struct {
	bun.BaseModel `bun:"table:bun_schema_migrations"`

	ID        int       `bun:"id,pk,autoincrement"`
	Version   string    `bun:"version,notnull,unique"`
	AppliedAt time.Time `bun:"applied_at,notnull,default:current_timestamp"`
}

type migration struct {
	version string
	name    string
	up      func(context.Context, *bun.DB) error
}

var migrations = []migration{
	{"001", "create_documents_table", init001CreateDocumentsTable},
	{"002", "create_pages_table", init002CreatePagesTable},
	{"003", "create_jobs_table", init003CreateJobsTable},
}

// runMigrations runs all Bun migrations
func runMigrations(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*bunSchemaMigration)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check which migrations have been applied
	var applied []bunSchemaMigration
	err = db.NewSelect().
		Model(&applied).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = db.NewInsert().
			Model(&bunSchemaMigration{Version: m.version, AppliedAt: time.Now()}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

func createIndexes(ctx context.Context, db *bun.DB, indexes []string) error {
	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Migration 001: documents catalog
func init001CreateDocumentsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunDocument)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	return createIndexes(ctx, db, []string{
		"CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash)",
		"CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC)",
	})
}

// Migration 002: per page dimensions
func init002CreatePagesTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunPage)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create pages table: %w", err)
	}

	return createIndexes(ctx, db, []string{
		"CREATE INDEX IF NOT EXISTS idx_pages_document_ulid ON pages(document_ulid)",
	})
}

// Migration 003: background jobs
func init003CreateJobsTable(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*BunJob)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC)",
	}
	if db.Dialect().Name() == dialect.PG {
		indexes = append(indexes, "CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs(completed_at) WHERE completed_at IS NOT NULL")
	}
	return createIndexes(ctx, db, indexes)
}
