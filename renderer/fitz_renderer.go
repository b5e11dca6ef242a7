package renderer

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements PDF rendering using go-fitz (requires MuPDF)
type FitzRenderer struct {
	dpi int
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer(dpi int) (*FitzRenderer, error) {
	return &FitzRenderer{dpi: dpi}, nil
}

// Open opens a PDF document using go-fitz
func (r *FitzRenderer) Open(filename string) (Document, error) {
	doc, err := fitz.New(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: r.dpi}, nil
}

// Close cleans up resources (no-op for Fitz renderer as each document owns its MuPDF context)
func (r *FitzRenderer) Close() error {
	return nil
}

type fitzDocument struct {
	doc *fitz.Document
	dpi int
}

func (d *fitzDocument) PageCount() int {
	return d.doc.NumPage()
}

// bound returns the page rectangle in points
func (d *fitzDocument) bound(index int) (image.Rectangle, error) {
	if err := checkPage(index, d.doc.NumPage()); err != nil {
		return image.Rectangle{}, err
	}
	rect, err := d.doc.Bound(index)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("unable to bound page %d: %w", index, err)
	}
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("page %d has empty bounds %v", index, rect)
	}
	return rect, nil
}

func (d *fitzDocument) PageSize(index int) (int, int, error) {
	rect, err := d.bound(index)
	if err != nil {
		return 0, 0, err
	}
	return pointsToPixels(float64(rect.Dx()), d.dpi), pointsToPixels(float64(rect.Dy()), d.dpi), nil
}

// RenderPage renders at the DPI that yields the target width, then snaps to the exact size
func (d *fitzDocument) RenderPage(index, width, height int) (image.Image, error) {
	rect, err := d.bound(index)
	if err != nil {
		return nil, err
	}
	dpi := 72 * float64(width) / float64(rect.Dx())
	img, err := d.doc.ImageDPI(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page %d: %w", index, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return imaging.Resize(img, width, height, imaging.Lanczos), nil
	}
	return img, nil
}

func (d *fitzDocument) PageText(index int) (string, error) {
	if err := checkPage(index, d.doc.NumPage()); err != nil {
		return "", err
	}
	return d.doc.Text(index)
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
