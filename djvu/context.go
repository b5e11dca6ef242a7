// Package djvu is the document context binding: one Context owns at most one
// loaded DjVu or PDF document and exposes page queries and rendering into
// caller-owned RGBA8 buffers.
//
// A Context serialises its own calls but is meant for a single caller; open
// one Context per goroutine when rendering in parallel.
package djvu

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/drummonds/godjvu/renderer"
)

// Logger defaults to slog.Default and is replaced by the server at startup
var Logger = slog.Default()

// MaxDimension bounds each side of a render request in pixels
const MaxDimension = 1 << 15

// MaxPixels bounds the area of a render request, 256 MiB of RGBA8
const MaxPixels = 64 * 1024 * 1024

// BytesPerPixel is the RGBA8 pixel size
const BytesPerPixel = 4

// Config selects the engine a Context loads documents with
type Config struct {
	// Engine names the PDF engine ("pdfium" or "fitz"); empty selects pdfium
	Engine string
	// DPI converts PDF points to pixels; zero uses renderer.DefaultDPI
	DPI int
	// StrictPDF rejects PDFs whose structure pdfcpu cannot parse,
	// instead of leaving the decision to the engine
	StrictPDF bool
	// NewRenderer overrides engine construction, nil uses renderer.NewRenderer
	NewRenderer func(renderer.Format, renderer.Options) (renderer.Renderer, error)
}

// Context is an owned handle over one loaded document
type Context struct {
	mu     sync.Mutex
	cfg    Config
	closed bool

	path     string
	format   renderer.Format
	engine   renderer.Renderer
	document renderer.Document
}

// NewContext creates an empty context. Engines are started lazily by Load,
// once the document format is known.
func NewContext(cfg Config) (*Context, error) {
	if !renderer.ValidEngine(cfg.Engine) {
		return nil, fmt.Errorf("%w: %w: %q", ErrEngine, renderer.ErrUnknownEngine, cfg.Engine)
	}
	if cfg.DPI < 0 {
		return nil, fmt.Errorf("%w: negative DPI %d", ErrEngine, cfg.DPI)
	}
	if cfg.NewRenderer == nil {
		cfg.NewRenderer = renderer.NewRenderer
	}
	return &Context{cfg: cfg}, nil
}

// Load opens the document at path. A context holds a single document:
// loading again without Reset fails with ErrAlreadyLoaded.
func (c *Context) Load(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.document != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, c.path)
	}

	format, err := renderer.DetectFormat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}
	if format == renderer.FormatUnknown {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if format == renderer.FormatPDF {
		if _, err := renderer.InspectPDF(path); err != nil {
			if c.cfg.StrictPDF {
				return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
			}
			Logger.Warn("PDF structure check failed, leaving it to the engine", "path", path, "error", err)
		}
	}

	engine, err := c.cfg.NewRenderer(format, renderer.Options{Engine: c.cfg.Engine, DPI: c.cfg.DPI})
	if err != nil {
		if errors.Is(err, renderer.ErrUnavailable) {
			return fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, format, err)
		}
		return fmt.Errorf("%w: %w", ErrEngine, err)
	}

	document, err := engine.Open(path)
	if err != nil {
		if closeErr := engine.Close(); closeErr != nil {
			Logger.Warn("Error releasing engine after failed open", "path", path, "error", closeErr)
		}
		return fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	c.path = path
	c.format = format
	c.engine = engine
	c.document = document
	Logger.Debug("Loaded document", "path", path, "format", format, "pages", document.PageCount())
	return nil
}

// loaded checks the state shared by every query. Callers hold c.mu.
func (c *Context) loaded() error {
	if c.closed {
		return ErrClosed
	}
	if c.document == nil {
		return ErrNotLoaded
	}
	return nil
}

// pageIndex validates index against the loaded document. Callers hold c.mu.
func (c *Context) pageIndex(index int) error {
	count := c.document.PageCount()
	if count <= 0 {
		return ErrNoPages
	}
	if index < 0 || index >= count {
		return fmt.Errorf("%w: page %d of %d", ErrPageRange, index, count)
	}
	return nil
}

// PageCount returns the number of pages, at least 1 on success
func (c *Context) PageCount() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loaded(); err != nil {
		return 0, err
	}
	count := c.document.PageCount()
	if count <= 0 {
		return 0, ErrNoPages
	}
	return count, nil
}

// PageSize returns the natural pixel size of a zero-based page
func (c *Context) PageSize(index int) (width, height int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loaded(); err != nil {
		return 0, 0, err
	}
	if err := c.pageIndex(index); err != nil {
		return 0, 0, err
	}
	width, height, err = c.document.PageSize(index)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrLayout, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: page %d reports %dx%d", ErrLayout, index, width, height)
	}
	return width, height, nil
}

// BufferSize returns width*height*4, the exact buffer length RenderPage expects
func BufferSize(width, height int) (int, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	pixels := int64(width) * int64(height)
	if pixels > MaxPixels {
		return 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidSize, width, height, MaxPixels)
	}
	size := pixels * BytesPerPixel
	if size > math.MaxInt {
		return 0, fmt.Errorf("%w: %dx%d overflows", ErrInvalidSize, width, height)
	}
	return int(size), nil
}

// RenderPage renders page index scaled to width x height into buf as RGBA8
// (straight alpha, rows top to bottom, stride width*4). buf must be exactly
// width*height*4 bytes; it is not retained. Its contents are undefined on error.
func (c *Context) RenderPage(index, width, height int, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	img, err := c.render(index, width, height, len(buf))
	if err != nil {
		return err
	}
	copy(buf, img.Pix)
	return nil
}

// RenderImage is RenderPage into a newly allocated image
func (c *Context) RenderImage(index, width, height int) (*image.NRGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// invalid sizes come back as zero and are reported by render
	size, _ := BufferSize(width, height)
	return c.render(index, width, height, size)
}

// render validates the request and returns a tightly packed image. Callers hold c.mu.
func (c *Context) render(index, width, height, bufLen int) (*image.NRGBA, error) {
	if err := c.loaded(); err != nil {
		return nil, err
	}
	size, err := BufferSize(width, height)
	if err != nil {
		return nil, err
	}
	if bufLen != size {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrBufferSize, bufLen, size)
	}
	if err := c.pageIndex(index); err != nil {
		return nil, err
	}

	img, err := c.document.RenderPage(index, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: engine returned no image for page %d", ErrRender, index)
	}
	out := renderer.ToNRGBA(img, width, height)
	if len(out.Pix) != size {
		return nil, fmt.Errorf("%w: engine produced %d bytes, need %d", ErrRender, len(out.Pix), size)
	}
	return out, nil
}

// PageText returns the hidden text layer of a page
func (c *Context) PageText(index int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loaded(); err != nil {
		return "", err
	}
	if err := c.pageIndex(index); err != nil {
		return "", err
	}
	text, err := c.document.PageText(index)
	if err != nil {
		return "", fmt.Errorf("%w: text of page %d: %w", ErrRender, index, err)
	}
	return text, nil
}

// Format returns the container format of the loaded document
func (c *Context) Format() (renderer.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loaded(); err != nil {
		return renderer.FormatUnknown, err
	}
	return c.format, nil
}

// IsPDF reports whether the loaded document is a PDF (false means DjVu)
func (c *Context) IsPDF() (bool, error) {
	format, err := c.Format()
	if err != nil {
		return false, err
	}
	return format == renderer.FormatPDF, nil
}

// Path returns the path of the loaded document, empty when none is loaded
func (c *Context) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Reset unloads the current document and keeps the context usable for another Load
func (c *Context) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	return c.unload()
}

// unload releases the document and engine. Callers hold c.mu.
func (c *Context) unload() error {
	var errs []error
	if c.document != nil {
		if err := c.document.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing document: %w", err))
		}
	}
	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine: %w", err))
		}
	}
	if c.path != "" {
		Logger.Debug("Unloaded document", "path", c.path)
	}
	c.document = nil
	c.engine = nil
	c.path = ""
	c.format = renderer.FormatUnknown
	return errors.Join(errs...)
}

// Close releases everything the context owns. It is safe to call more than once;
// every other operation fails with ErrClosed afterwards.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	err := c.unload()
	if err != nil {
		Logger.Warn("Error releasing document context", "error", err)
	}
	return err
}
