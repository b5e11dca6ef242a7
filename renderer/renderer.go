// Package renderer wraps the native page engines (djvulibre, PDFium, MuPDF)
// behind one page-level interface.
package renderer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
)

// Logger defaults to slog.Default and is replaced by the server at startup
var Logger = slog.Default()

// DefaultDPI is used to convert PDF points to pixels when Options.DPI is unset
const DefaultDPI = 150

var (
	// ErrUnknownFormat is returned when a file is neither a DjVu nor a PDF container
	ErrUnknownFormat = errors.New("renderer: unknown document format")
	// ErrUnknownEngine is returned for an engine name that is not compiled in
	ErrUnknownEngine = errors.New("renderer: unknown engine")
	// ErrUnavailable is returned when the engine was not built into this binary
	ErrUnavailable = errors.New("renderer: engine not available in this build")
	// ErrPageRange is returned for a page index outside [0, PageCount)
	ErrPageRange = errors.New("renderer: page index out of range")
)

// Format identifies the document container
type Format int

const (
	FormatUnknown Format = iota
	FormatDjVu
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatDjVu:
		return "djvu"
	case FormatPDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// Document is one opened document. Implementations are not safe for concurrent use.
type Document interface {
	// PageCount returns the number of pages
	PageCount() int

	// PageSize returns the natural size of a page in pixels
	PageSize(index int) (width, height int, err error)

	// RenderPage rasterizes a page scaled to exactly width x height pixels
	RenderPage(index, width, height int) (image.Image, error)

	// PageText returns the hidden text layer of a page, empty if there is none
	PageText(index int) (string, error)

	// Close releases the document
	Close() error
}

// Renderer opens documents of one format
type Renderer interface {
	// Open loads a document from a file path
	Open(filename string) (Document, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// Options selects and tunes the engine
type Options struct {
	// Engine names the PDF engine: "pdfium" (default) or "fitz". DjVu always uses djvulibre.
	Engine string
	// DPI converts PDF points into pixels
	DPI int
}

func (o Options) dpi() int {
	if o.DPI <= 0 {
		return DefaultDPI
	}
	return o.DPI
}

// NewRenderer creates the renderer for a document format
func NewRenderer(format Format, opts Options) (Renderer, error) {
	switch format {
	case FormatDjVu:
		r, err := NewDjVuRenderer()
		if err != nil {
			return nil, err
		}
		return r, nil
	case FormatPDF:
		switch opts.Engine {
		case "", "pdfium":
			r, err := NewPDFiumRenderer(opts.dpi())
			if err != nil {
				return nil, err
			}
			return r, nil
		case "fitz", "mupdf":
			r, err := NewFitzRenderer(opts.dpi())
			if err != nil {
				return nil, err
			}
			return r, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
		}
	default:
		return nil, ErrUnknownFormat
	}
}

// ValidEngine reports whether name selects a known PDF engine
func ValidEngine(name string) bool {
	switch name {
	case "", "pdfium", "fitz", "mupdf":
		return true
	}
	return false
}

var (
	djvuMagic = []byte("AT&TFORM")
	pdfMagic  = []byte("%PDF-")
)

// pdfHeaderWindow is how far into the file a PDF header may start
const pdfHeaderWindow = 1024

// DetectFormat sniffs the container type from the file header.
// File system errors are returned wrapped so callers can test them with errors.Is.
func DetectFormat(filename string) (Format, error) {
	file, err := os.Open(filename)
	if err != nil {
		return FormatUnknown, fmt.Errorf("unable to open document: %w", err)
	}
	defer file.Close()

	head := make([]byte, pdfHeaderWindow)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("unable to read document header: %w", err)
	}
	return SniffFormat(head[:n]), nil
}

// SniffFormat classifies a header buffer
func SniffFormat(head []byte) Format {
	// AT&TFORM <len:4> DJVU|DJVM
	if bytes.HasPrefix(head, djvuMagic) && len(head) >= 16 {
		switch string(head[12:16]) {
		case "DJVU", "DJVM":
			return FormatDjVu
		}
	}
	if bytes.Contains(head, pdfMagic) {
		return FormatPDF
	}
	return FormatUnknown
}

// pointsToPixels converts a PDF length in points to pixels at dpi
func pointsToPixels(points float64, dpi int) int {
	px := int(points*float64(dpi)/72 + 0.5)
	if px < 1 {
		px = 1
	}
	return px
}

func checkPage(index, count int) error {
	if index < 0 || index >= count {
		return fmt.Errorf("%w: page %d of %d", ErrPageRange, index, count)
	}
	return nil
}
