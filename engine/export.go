package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/drummonds/godjvu/database"
	"github.com/drummonds/godjvu/djvu"
)

// ExportOptions controls ExportPages
type ExportOptions struct {
	// Open returns a freshly loaded context; each worker opens its own
	Open func() (*djvu.Context, error)
	// Dir receives page-NNNN.png files
	Dir string
	// Width and Height of each image, zero sides follow the page aspect ratio
	Width, Height int
	// Pages lists zero-based page indices, nil exports every page
	Pages []int
	// Workers defaults to the number of CPUs, at most 4
	Workers int
	// Progress is called after each page with the number of pages finished
	Progress func(done, total int)
}

// PageFileName is the name ExportPages gives a zero-based page
func PageFileName(index int) string {
	return fmt.Sprintf("page-%04d.png", index+1)
}

// ExportPages renders pages to PNG files in parallel. Failed pages are
// counted in the summary; the export only fails when no page succeeds or a
// context cannot be opened.
func ExportPages(ctx context.Context, opts ExportOptions) (*database.ExportSummary, error) {
	probe, err := opts.Open()
	if err != nil {
		return nil, err
	}
	count, err := probe.PageCount()
	path := probe.Path()
	probe.Close()
	if err != nil {
		return nil, err
	}

	pages := opts.Pages
	if pages == nil {
		pages = make([]int, count)
		for i := range pages {
			pages[i] = i
		}
	}
	summary := &database.ExportSummary{
		Document:   filepath.Base(path),
		PagesTotal: len(pages),
		Directory:  opts.Dir,
		Files:      []string{},
	}
	if len(pages) == 0 {
		return summary, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = min(runtime.NumCPU(), 4)
	}
	workers = min(workers, len(pages))

	var mu sync.Mutex
	done := 0
	finish := func(file string, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			summary.Errors++
		} else {
			summary.PagesRendered++
			summary.Files = append(summary.Files, file)
		}
		if opts.Progress != nil {
			opts.Progress(done, len(pages))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan int)

	g.Go(func() error {
		defer close(queue)
		for _, page := range pages {
			select {
			case queue <- page:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			worker, err := opts.Open()
			if err != nil {
				return err
			}
			defer worker.Close()

			for page := range queue {
				file, err := exportPage(worker, page, opts)
				if err != nil {
					Logger.Warn("Failed to export page", "path", path, "page", page, "error", err)
				}
				finish(file, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	sort.Strings(summary.Files)
	if summary.PagesRendered == 0 {
		return summary, errors.New("no page could be exported")
	}
	return summary, nil
}

func exportPage(ctx *djvu.Context, page int, opts ExportOptions) (string, error) {
	width, height := opts.Width, opts.Height
	if width == 0 || height == 0 {
		naturalW, naturalH, err := ctx.PageSize(page)
		if err != nil {
			return "", err
		}
		width, height = ScaleToFit(naturalW, naturalH, width, height)
	}

	img, err := ctx.RenderImage(page, width, height)
	if err != nil {
		return "", err
	}
	file := filepath.Join(opts.Dir, PageFileName(page))
	if err := imaging.Save(img, file); err != nil {
		return "", fmt.Errorf("saving page %d: %w", page, err)
	}
	return file, nil
}
