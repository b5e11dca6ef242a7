package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/stapelberg/postgrestest"
)

// ephemeralPostgres is a throwaway PostgreSQL server for development
type ephemeralPostgres struct {
	server *postgrestest.Server
	sqlDB  *sql.DB
}

// startEphemeralPostgres starts a temporary PostgreSQL instance and opens a
// fresh database on it through lib/pq
func startEphemeralPostgres(ctx context.Context) (*ephemeralPostgres, error) {
	Logger.Info("Starting ephemeral PostgreSQL server...")

	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}
	Logger.Info("Ephemeral PostgreSQL server started", "dsn", pgt.DefaultDatabase())

	dsn, err := pgt.CreateDatabase(ctx)
	if err != nil {
		pgt.Cleanup()
		return nil, fmt.Errorf("failed to create catalog database: %w", err)
	}
	Logger.Info("Created ephemeral database", "dsn", dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		pgt.Cleanup()
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		pgt.Cleanup()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	Logger.Info("Connected to ephemeral PostgreSQL database successfully")
	return &ephemeralPostgres{server: pgt, sqlDB: db}, nil
}

// Cleanup stops the server; the *sql.DB is closed by its bun wrapper
func (e *ephemeralPostgres) Cleanup() {
	if e.server != nil {
		Logger.Info("Cleaning up ephemeral PostgreSQL server...")
		e.server.Cleanup()
		e.server = nil
		Logger.Info("Ephemeral PostgreSQL server cleaned up")
	}
}
