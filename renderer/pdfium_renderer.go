package renderer

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	pool     pdfium.Pool
	instance pdfium.Pdfium
	dpi      int
}

// NewPDFiumRenderer creates a new PDFium-based PDF renderer using WebAssembly
func NewPDFiumRenderer(dpi int) (*PDFiumRenderer, error) {
	// One worker: a renderer serves a single document context
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}

	return &PDFiumRenderer{
		pool:     pool,
		instance: instance,
		dpi:      dpi,
	}, nil
}

// Open reads the PDF into memory and opens it in the PDFium instance
func (r *PDFiumRenderer) Open(filename string) (Document, error) {
	pdfBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}

	pageCountResp, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}

	return &pdfiumDocument{
		instance: r.instance,
		document: doc.Document,
		data:     pdfBytes,
		path:     filename,
		pages:    pageCountResp.PageCount,
		dpi:      r.dpi,
	}, nil
}

// Close cleans up resources used by the PDFium renderer
func (r *PDFiumRenderer) Close() error {
	if r.instance != nil {
		r.instance.Close()
		r.instance = nil
	}
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
	return nil
}

type pdfiumDocument struct {
	instance pdfium.Pdfium
	document references.FPDF_DOCUMENT
	// data must outlive the document: PDFium reads from it lazily
	data  []byte
	path  string
	pages int
	dpi   int
}

func (d *pdfiumDocument) page(index int) requests.Page {
	return requests.Page{
		ByIndex: &requests.PageByIndex{
			Document: d.document,
			Index:    index,
		},
	}
}

func (d *pdfiumDocument) PageCount() int {
	return d.pages
}

func (d *pdfiumDocument) PageSize(index int) (int, int, error) {
	if err := checkPage(index, d.pages); err != nil {
		return 0, 0, err
	}
	size, err := d.instance.GetPageSize(&requests.GetPageSize{Page: d.page(index)})
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get size of page %d: %w", index, err)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return 0, 0, fmt.Errorf("page %d has empty size %.1fx%.1f", index, size.Width, size.Height)
	}
	return pointsToPixels(size.Width, d.dpi), pointsToPixels(size.Height, d.dpi), nil
}

func (d *pdfiumDocument) RenderPage(index, width, height int) (image.Image, error) {
	if err := checkPage(index, d.pages); err != nil {
		return nil, err
	}
	pageRender, err := d.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Page:   d.page(index),
		Width:  width,
		Height: height,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	// The image lives in WebAssembly memory until Cleanup
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
	return img, nil
}

func (d *pdfiumDocument) PageText(index int) (string, error) {
	if err := checkPage(index, d.pages); err != nil {
		return "", err
	}
	return extractPDFPageText(d.path, index)
}

func (d *pdfiumDocument) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.document,
	})
	d.data = nil
	return err
}
