package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/drummonds/godjvu/djvu"
)

func exportOptions(t *testing.T, fake *fakeEngine) ExportOptions {
	t.Helper()
	quietLoggers()
	path := writeTempDocument(t, "export.djvu")
	store := NewSessionStore(djvu.Config{NewRenderer: fake.newRenderer})
	return ExportOptions{
		Open: func() (*djvu.Context, error) { return store.NewContext(path) },
		Dir:  t.TempDir(),
	}
}

func TestExportPages(t *testing.T) {
	t.Run("Every page at natural size", func(t *testing.T) {
		fake := newFakeEngine([2]int{8, 4}, [2]int{4, 8}, [2]int{6, 6}, [2]int{2, 2}, [2]int{3, 5})
		opts := exportOptions(t, fake)
		opts.Workers = 3

		var mu sync.Mutex
		var calls []int
		opts.Progress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if total != 5 {
				t.Errorf("Expected total 5, got %d", total)
			}
			calls = append(calls, done)
		}

		summary, err := ExportPages(context.Background(), opts)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if summary.PagesRendered != 5 || summary.Errors != 0 || len(summary.Files) != 5 {
			t.Errorf("Unexpected summary %+v", summary)
		}
		if len(calls) != 5 || calls[4] != 5 {
			t.Errorf("Unexpected progress calls %v", calls)
		}
		for i, file := range summary.Files {
			if filepath.Base(file) != PageFileName(i) {
				t.Errorf("Files not sorted: %v", summary.Files)
			}
		}

		img, err := imaging.Open(filepath.Join(opts.Dir, PageFileName(1)))
		if err != nil {
			t.Fatalf("Failed to open exported page: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 8 {
			t.Errorf("Expected 4x8, got %dx%d", b.Dx(), b.Dy())
		}
		if fake.live() != 0 {
			t.Errorf("Expected worker contexts closed, %d engines open", fake.live())
		}
	})

	t.Run("Selected pages at fixed size", func(t *testing.T) {
		fake := newFakeEngine([2]int{8, 4}, [2]int{4, 8}, [2]int{6, 6})
		opts := exportOptions(t, fake)
		opts.Pages = []int{2}
		opts.Width, opts.Height = 3, 7

		summary, err := ExportPages(context.Background(), opts)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if summary.PagesTotal != 1 || summary.PagesRendered != 1 {
			t.Errorf("Unexpected summary %+v", summary)
		}
		img, err := imaging.Open(filepath.Join(opts.Dir, PageFileName(2)))
		if err != nil {
			t.Fatalf("Failed to open exported page: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 7 {
			t.Errorf("Expected 3x7, got %dx%d", b.Dx(), b.Dy())
		}
		if _, err := os.Stat(filepath.Join(opts.Dir, PageFileName(0))); !os.IsNotExist(err) {
			t.Error("Unselected page was exported")
		}
	})

	t.Run("Out of range page is counted as an error", func(t *testing.T) {
		fake := newFakeEngine([2]int{8, 4})
		opts := exportOptions(t, fake)
		opts.Pages = []int{0, 5}

		summary, err := ExportPages(context.Background(), opts)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if summary.PagesRendered != 1 || summary.Errors != 1 {
			t.Errorf("Unexpected summary %+v", summary)
		}
	})

	t.Run("Every page failing fails the export", func(t *testing.T) {
		fake := newFakeEngine([2]int{8, 4}, [2]int{8, 4})
		fake.failPages = map[int]bool{0: true, 1: true}
		opts := exportOptions(t, fake)

		summary, err := ExportPages(context.Background(), opts)
		if err == nil {
			t.Fatal("Expected an error when no page renders")
		}
		if summary == nil || summary.Errors != 2 {
			t.Errorf("Unexpected summary %+v", summary)
		}
	})

	t.Run("Open failure", func(t *testing.T) {
		opts := ExportOptions{
			Open: func() (*djvu.Context, error) { return nil, djvu.ErrFileNotFound },
			Dir:  t.TempDir(),
		}
		if _, err := ExportPages(context.Background(), opts); !errors.Is(err, djvu.ErrFileNotFound) {
			t.Errorf("Expected ErrFileNotFound, got %v", err)
		}
	})
}
