package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/godjvu/renderer"
)

func TestCheckDirectory_ValidPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	err := CheckDirectory(t.TempDir(), false, logger)
	if err != nil {
		t.Errorf("Expected no error with valid path, got: %v", err)
	}
}

func TestCheckDirectory_InvalidPath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	invalidPath := "/nonexistent/path/to/documents"
	err := CheckDirectory(invalidPath, false, logger)
	if err == nil {
		t.Error("Expected error with invalid path, got nil")
	}
	t.Logf("Correctly returned error for invalid path: %v", err)
}

func TestCheckDirectory_Create(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	dir := filepath.Join(t.TempDir(), "exports", "nested")
	if err := CheckDirectory(dir, true, logger); err != nil {
		t.Fatalf("Expected directory to be created, got: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Directory was not created: %v", err)
	}
}

func TestCheckDirectory_File(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if err := CheckDirectory(file, true, logger); err == nil {
		t.Error("Expected error for a regular file, got nil")
	}
}

func TestSetupServer_Defaults(t *testing.T) {
	// no .env or config.env in the working directory
	t.Chdir(t.TempDir())
	for _, key := range []string{"LOG_OUTPUT", "LOG_LEVEL", "SERVER_PORT", "SERVER_ADDR", "DATABASE_TYPE",
		"DOCUMENT_PATH", "EXPORT_PATH", "SESSION_IDLE_MINUTES", "MAX_UPLOAD_MB", "PDF_ENGINE", "RENDER_DPI", "PDF_STRICT"} {
		t.Setenv(key, "")
	}
	previous := Logger
	t.Cleanup(func() { Logger = previous })

	serverConfig, logger := SetupServer()
	if logger == nil {
		t.Fatal("Expected a logger")
	}
	if serverConfig.LogOutput != "stdout" {
		t.Errorf("Expected logging to stdout by default, got %q", serverConfig.LogOutput)
	}
	if _, err := os.Stat("godjvu.log"); !os.IsNotExist(err) {
		t.Errorf("Expected no log file to be created, stat returned %v", err)
	}
	if serverConfig.ListenAddrPort != "8000" || serverConfig.DatabaseType != "sqlite" {
		t.Errorf("Unexpected server defaults %s/%s", serverConfig.ListenAddrPort, serverConfig.DatabaseType)
	}
	if serverConfig.SessionIdleMinutes != 15 || serverConfig.MaxUploadMB != 100 {
		t.Errorf("Unexpected session or upload defaults %d/%d", serverConfig.SessionIdleMinutes, serverConfig.MaxUploadMB)
	}
	if !filepath.IsAbs(serverConfig.DocumentPath) || filepath.Base(serverConfig.DocumentPath) != "documents" {
		t.Errorf("Expected an absolute documents path, got %q", serverConfig.DocumentPath)
	}
	if serverConfig.PDFEngine != "pdfium" || serverConfig.RenderDPI != renderer.DefaultDPI {
		t.Errorf("Unexpected render defaults %+v", serverConfig.RenderConfig)
	}
}

func TestSetupRenderer_Defaults(t *testing.T) {
	t.Setenv("PDF_ENGINE", "")
	t.Setenv("RENDER_DPI", "")
	t.Setenv("PDF_STRICT", "")

	rc := SetupRenderer()
	if rc.PDFEngine != "pdfium" {
		t.Errorf("Expected pdfium engine, got %q", rc.PDFEngine)
	}
	if rc.RenderDPI != renderer.DefaultDPI {
		t.Errorf("Expected %d DPI, got %d", renderer.DefaultDPI, rc.RenderDPI)
	}
	if rc.StrictPDF {
		t.Error("Expected strict PDF to be off by default")
	}
}

func TestSetupRenderer_Overrides(t *testing.T) {
	t.Setenv("PDF_ENGINE", "fitz")
	t.Setenv("RENDER_DPI", "300")
	t.Setenv("PDF_STRICT", "true")

	rc := SetupRenderer()
	if rc.PDFEngine != "fitz" || rc.RenderDPI != 300 || !rc.StrictPDF {
		t.Errorf("Unexpected render config: %+v", rc)
	}

	cfg := rc.ContextConfig()
	if cfg.Engine != "fitz" || cfg.DPI != 300 || !cfg.StrictPDF {
		t.Errorf("Unexpected context config: %+v", cfg)
	}
}

func TestSetupRenderer_InvalidValues(t *testing.T) {
	t.Setenv("PDF_ENGINE", "poppler")
	t.Setenv("RENDER_DPI", "-5")

	rc := SetupRenderer()
	if rc.PDFEngine != "pdfium" {
		t.Errorf("Expected fallback to pdfium, got %q", rc.PDFEngine)
	}
	if rc.RenderDPI != renderer.DefaultDPI {
		t.Errorf("Expected fallback DPI, got %d", rc.RenderDPI)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelDebug,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
