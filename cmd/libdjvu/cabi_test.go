//go:build cgo

package main

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/godjvu/djvu"
	"github.com/drummonds/godjvu/renderer"
)

var fillColor = color.NRGBA{R: 10, G: 20, B: 30, A: 255}

type stubDocument struct{}

func (stubDocument) PageCount() int { return 2 }

func (stubDocument) PageSize(index int) (int, int, error) {
	if index == 0 {
		return 200, 100, nil
	}
	return 300, 400, nil
}

func (stubDocument) RenderPage(index, width, height int) (image.Image, error) {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fillColor.R, fillColor.G, fillColor.B, fillColor.A
	}
	return img, nil
}

func (stubDocument) PageText(int) (string, error) { return "", nil }

func (stubDocument) Close() error { return nil }

type stubRenderer struct{}

func (stubRenderer) Open(string) (renderer.Document, error) { return stubDocument{}, nil }

func (stubRenderer) Close() error { return nil }

// useStubEngine makes djvu_context_init hand out contexts backed by stubRenderer
func useStubEngine(t *testing.T) {
	t.Helper()
	setup()
	previous := contextConfig
	contextConfig = func() djvu.Config {
		return djvu.Config{NewRenderer: func(renderer.Format, renderer.Options) (renderer.Renderer, error) {
			return stubRenderer{}, nil
		}}
	}
	t.Cleanup(func() { contextConfig = previous })
}

func writeDocument(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func expectCode[T ~int32](t *testing.T, op string, got T, want int32) {
	t.Helper()
	if int32(got) != want {
		t.Errorf("%s returned %d, want %d", op, got, want)
	}
}

func TestCInterfaceLifecycle(t *testing.T) {
	useStubEngine(t)
	live := handles.len()

	ctx := djvu_context_init()
	if ctx == nil {
		t.Fatal("djvu_context_init returned NULL")
	}
	t.Cleanup(func() { djvu_context_cleanup(ctx) })

	book := cString(writeDocument(t, "book.djvu", []byte("AT&TFORM\x00\x00\x00\x20DJVUINFO\x00\x00\x00\x0a")))
	defer cFree(book)
	missing := cString(filepath.Join(t.TempDir(), "missing.djvu"))
	defer cFree(missing)

	t.Run("Queries before load", func(t *testing.T) {
		expectCode(t, "page_count", djvu_get_document_page_count(ctx), -1)
		expectCode(t, "is_pdf", djvu_is_pdf_document(ctx), -1)
	})

	t.Run("Load", func(t *testing.T) {
		expectCode(t, "load NULL path", djvu_load_document_from_file(ctx, nil), djvu.CodeFileNotFound)
		expectCode(t, "load missing file", djvu_load_document_from_file(ctx, missing), djvu.CodeFileNotFound)
		expectCode(t, "load", djvu_load_document_from_file(ctx, book), djvu.CodeOK)
		expectCode(t, "load again", djvu_load_document_from_file(ctx, book), djvu.CodeAlreadyLoaded)
		expectCode(t, "page_count", djvu_get_document_page_count(ctx), 2)
		expectCode(t, "is_pdf", djvu_is_pdf_document(ctx), 0)
	})

	t.Run("Page dimensions", func(t *testing.T) {
		width, height := cInt32(77), cInt32(77)
		defer cFree(width)
		defer cFree(height)

		expectCode(t, "dimensions of page 2", djvu_get_page_dimensions(ctx, 2, width, height), djvu.CodePageRange)
		expectCode(t, "dimensions of page -1", djvu_get_page_dimensions(ctx, -1, width, height), djvu.CodePageRange)
		if int32At(width) != 77 || int32At(height) != 77 {
			t.Errorf("Output parameters changed on failure: %dx%d", int32At(width), int32At(height))
		}
		expectCode(t, "dimensions with NULL width", djvu_get_page_dimensions(ctx, 0, nil, height), djvu.CodeError)

		expectCode(t, "dimensions of page 1", djvu_get_page_dimensions(ctx, 1, width, height), djvu.CodeOK)
		if int32At(width) != 300 || int32At(height) != 400 {
			t.Errorf("Expected 300x400, got %dx%d", int32At(width), int32At(height))
		}
	})

	t.Run("Render stays inside the buffer", func(t *testing.T) {
		const size = 4 * 3 * djvu.BytesPerPixel
		ptr, buf := cBuffer(size + 16)
		defer cFree(ptr)
		for i := range buf {
			buf[i] = 0xaa
		}

		expectCode(t, "render", djvu_render_page_to_buffer(ctx, 0, 4, 3, ptr), djvu.CodeOK)
		if !bytes.Equal(buf[:4], []byte{fillColor.R, fillColor.G, fillColor.B, fillColor.A}) {
			t.Errorf("Unexpected first pixel %v", buf[:4])
		}
		if !bytes.Equal(buf[size:], bytes.Repeat([]byte{0xaa}, 16)) {
			t.Errorf("Render wrote past width*height*4: %x", buf[size:])
		}

		expectCode(t, "render into NULL", djvu_render_page_to_buffer(ctx, 0, 4, 3, nil), djvu.CodeBufferSize)
		expectCode(t, "render at width 0", djvu_render_page_to_buffer(ctx, 0, 0, 3, ptr), djvu.CodeInvalidSize)
		expectCode(t, "render oversized", djvu_render_page_to_buffer(ctx, 0, djvu.MaxDimension, djvu.MaxDimension, ptr), djvu.CodeInvalidSize)
		expectCode(t, "render page 9", djvu_render_page_to_buffer(ctx, 9, 4, 3, ptr), djvu.CodePageRange)
	})

	t.Run("Reset allows another load", func(t *testing.T) {
		expectCode(t, "reset", djvu_context_reset(ctx), djvu.CodeOK)
		expectCode(t, "page_count after reset", djvu_get_document_page_count(ctx), -1)
		expectCode(t, "load after reset", djvu_load_document_from_file(ctx, book), djvu.CodeOK)
	})

	t.Run("Cleanup", func(t *testing.T) {
		djvu_context_cleanup(ctx)
		djvu_context_cleanup(ctx)
		djvu_context_cleanup(nil)

		expectCode(t, "page_count after cleanup", djvu_get_document_page_count(ctx), -1)
		expectCode(t, "is_pdf after cleanup", djvu_is_pdf_document(ctx), -1)
		expectCode(t, "load after cleanup", djvu_load_document_from_file(ctx, book), djvu.CodeError)
		expectCode(t, "reset after cleanup", djvu_context_reset(ctx), djvu.CodeError)
		if handles.len() != live {
			t.Errorf("Expected %d live handles, have %d", live, handles.len())
		}
	})
}

func TestCInterfaceNullContext(t *testing.T) {
	width, height := cInt32(0), cInt32(0)
	defer cFree(width)
	defer cFree(height)
	ptr, _ := cBuffer(16)
	defer cFree(ptr)
	path := cString("book.djvu")
	defer cFree(path)

	expectCode(t, "load", djvu_load_document_from_file(nil, path), djvu.CodeError)
	expectCode(t, "page_count", djvu_get_document_page_count(nil), -1)
	expectCode(t, "dimensions", djvu_get_page_dimensions(nil, 0, width, height), djvu.CodeError)
	expectCode(t, "render", djvu_render_page_to_buffer(nil, 0, 2, 2, ptr), djvu.CodeError)
	expectCode(t, "is_pdf", djvu_is_pdf_document(nil), -1)
	expectCode(t, "reset", djvu_context_reset(nil), djvu.CodeError)
}

func TestCInterfacePDF(t *testing.T) {
	useStubEngine(t)

	ctx := djvu_context_init()
	if ctx == nil {
		t.Fatal("djvu_context_init returned NULL")
	}
	defer djvu_context_cleanup(ctx)

	path := cString(writeDocument(t, "letter.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")))
	defer cFree(path)

	expectCode(t, "load", djvu_load_document_from_file(ctx, path), djvu.CodeOK)
	expectCode(t, "is_pdf", djvu_is_pdf_document(ctx), 1)
}
