package engine

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/drummonds/godjvu/config"
	"github.com/drummonds/godjvu/database"
	"github.com/drummonds/godjvu/djvu"
	"github.com/drummonds/godjvu/renderer"
)

// djvuHeader starts a DjVu file; tests append a suffix so each file hashes differently
const djvuHeader = "AT&TFORM\x00\x00\x00\x20DJVUINFO\x00\x00\x00\x0a"

type fakeDocument struct {
	sizes     [][2]int
	text      string
	failPages map[int]bool
}

func (d *fakeDocument) PageCount() int { return len(d.sizes) }

func (d *fakeDocument) PageSize(index int) (int, int, error) {
	return d.sizes[index][0], d.sizes[index][1], nil
}

func (d *fakeDocument) RenderPage(index, width, height int) (image.Image, error) {
	if d.failPages[index] {
		return nil, errors.New("corrupt page")
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	fill := color.NRGBA{R: uint8(index), G: 128, B: 255, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	return img, nil
}

func (d *fakeDocument) PageText(index int) (string, error) { return d.text, nil }

func (d *fakeDocument) Close() error { return nil }

// fakeEngine hands out a fresh document per Open and counts engine lifetimes
type fakeEngine struct {
	mu        sync.Mutex
	sizes     [][2]int
	text      string
	failPages map[int]bool
	opened    int
	closed    int
	openErr   error
}

func newFakeEngine(sizes ...[2]int) *fakeEngine {
	return &fakeEngine{sizes: sizes, text: "hidden text"}
}

func (f *fakeEngine) newRenderer(renderer.Format, renderer.Options) (renderer.Renderer, error) {
	return &fakeRenderer{engine: f}, nil
}

func (f *fakeEngine) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened - f.closed
}

type fakeRenderer struct {
	engine *fakeEngine
}

func (r *fakeRenderer) Open(filename string) (renderer.Document, error) {
	f := r.engine
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeDocument{sizes: f.sizes, text: f.text, failPages: f.failPages}, nil
}

func (r *fakeRenderer) Close() error {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()
	r.engine.closed++
	return nil
}

func quietLoggers() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	Logger = logger
	database.Logger = logger
	djvu.Logger = logger
}

// newTestServer wires a handler over a temp sqlite catalog and the fake engine
func newTestServer(t *testing.T, fake *fakeEngine) (*echo.Echo, *ServerHandler) {
	t.Helper()
	quietLoggers()

	root := t.TempDir()
	serverConfig := config.ServerConfig{
		DatabaseType:       "sqlite",
		DatabaseDbname:     filepath.Join(root, "catalog.sqlite"),
		DocumentPath:       filepath.Join(root, "documents"),
		ExportPath:         filepath.Join(root, "exports"),
		SessionIdleMinutes: 15,
		MaxUploadMB:        1,
	}

	db, err := database.NewRepository(serverConfig)
	if err != nil {
		t.Fatalf("Failed to open sqlite repository: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	serverHandler := &ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Sessions:     NewSessionStore(djvu.Config{NewRenderer: fake.newRenderer}),
	}
	for _, dir := range []string{serverConfig.DocumentPath, serverConfig.ExportPath} {
		if err := config.CheckDirectory(dir, true, Logger); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	serverHandler.RegisterRoutes()

	t.Cleanup(func() {
		serverHandler.Sessions.CloseAll()
		db.Close()
	})
	return e, serverHandler
}

// writeDocument creates a DjVu file under the document root and returns its relative name
func writeDocument(t *testing.T, serverHandler *ServerHandler, name string) string {
	t.Helper()
	path := filepath.Join(serverHandler.ServerConfig.DocumentPath, name)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatalf("Failed to create folder for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(djvuHeader+name), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return name
}

func serve(e *echo.Echo, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
