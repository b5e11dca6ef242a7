package database

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/drummonds/godjvu/config"
)

func TestEphemeralPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ephemeral PostgreSQL test in short mode")
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pg, err := startEphemeralPostgres(ctx)
	if err != nil {
		t.Skipf("PostgreSQL binaries not available: %v", err)
	}
	defer pg.Cleanup()
	defer pg.sqlDB.Close()

	var one int
	if err := pg.sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Fatalf("Failed to query ephemeral database: %v", err)
	}

	t.Log("Ephemeral PostgreSQL test completed successfully!")
}

func TestEphemeralRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping ephemeral PostgreSQL test in short mode")
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	db, err := NewRepository(config.ServerConfig{DatabaseType: "ephemeral"})
	if err != nil {
		t.Skipf("PostgreSQL binaries not available: %v", err)
	}
	defer db.Close()

	path := filepath.Join(t.TempDir(), "book.djvu")
	if err := os.WriteFile(path, []byte("AT&TFORM"), 0644); err != nil {
		t.Fatalf("Failed to write document: %v", err)
	}
	doc, err := NewDocumentRecord(path, "djvu", 1)
	if err != nil {
		t.Fatalf("Failed to build document record: %v", err)
	}

	if err := db.SaveDocument(doc); err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}
	if err := db.SavePages(doc.ULID.String(), []Page{{Index: 0, Width: 2550, Height: 3300}}); err != nil {
		t.Fatalf("Failed to save pages: %v", err)
	}

	pages, err := db.GetPages(doc.ULID.String())
	if err != nil {
		t.Fatalf("Failed to retrieve pages: %v", err)
	}
	if len(pages) != 1 || pages[0].Width != 2550 {
		t.Fatalf("Unexpected pages %+v", pages)
	}

	t.Log("Successfully saved and retrieved document from ephemeral database!")
}
