package renderer

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFInfo is the structural summary of a PDF read without rasterizing it
type PDFInfo struct {
	PageCount int
	// Pages holds each page's media box size in points
	Pages []PageDims
}

// PageDims is a page size in PDF points
type PageDims struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InspectPDF parses the PDF structure with pdfcpu. A file that fails here is
// treated as corrupt before any engine is asked to open it.
func InspectPDF(filename string) (*PDFInfo, error) {
	count, err := api.PageCountFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF structure: %w", err)
	}
	dims, err := api.PageDimsFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF page boxes: %w", err)
	}

	info := &PDFInfo{PageCount: count, Pages: make([]PageDims, 0, len(dims))}
	for _, d := range dims {
		info.Pages = append(info.Pages, PageDims{Width: d.Width, Height: d.Height})
	}
	return info, nil
}

// extractPDFPageText reads the text of one zero-based page with ledongthuc/pdf
func extractPDFPageText(filename string, index int) (string, error) {
	file, reader, err := pdf.Open(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}
	defer file.Close()

	if err := checkPage(index, reader.NumPage()); err != nil {
		return "", err
	}
	page := reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", index, err)
	}
	return strings.TrimSpace(text), nil
}
