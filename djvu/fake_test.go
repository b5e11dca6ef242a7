package djvu

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/drummonds/godjvu/renderer"
)

// djvuHeader is the start of a single-page DjVu file
var djvuHeader = []byte("AT&TFORM\x00\x00\x00\x20DJVUINFO\x00\x00\x00\x0a")

var pdfHeader = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

type fakeDocument struct {
	sizes     [][2]int
	text      string
	renderErr error
	// native renders at this size instead of the requested one when set
	native image.Point
	fill   color.NRGBA
	closed int
}

func (d *fakeDocument) PageCount() int { return len(d.sizes) }

func (d *fakeDocument) PageSize(index int) (int, int, error) {
	return d.sizes[index][0], d.sizes[index][1], nil
}

func (d *fakeDocument) RenderPage(index, width, height int) (image.Image, error) {
	if d.renderErr != nil {
		return nil, d.renderErr
	}
	if d.native != (image.Point{}) {
		width, height = d.native.X, d.native.Y
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = d.fill.R
		img.Pix[i+1] = d.fill.G
		img.Pix[i+2] = d.fill.B
		img.Pix[i+3] = d.fill.A
	}
	return img, nil
}

func (d *fakeDocument) PageText(index int) (string, error) { return d.text, nil }

func (d *fakeDocument) Close() error {
	d.closed++
	return nil
}

type fakeRenderer struct {
	doc     *fakeDocument
	openErr  error
	closeErr error
	closed   int
	opened  []string
}

func (r *fakeRenderer) Open(filename string) (renderer.Document, error) {
	r.opened = append(r.opened, filename)
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.doc, nil
}

func (r *fakeRenderer) Close() error {
	r.closed++
	return r.closeErr
}

// newFakeContext returns a context whose engine is r regardless of format
func newFakeContext(t *testing.T, r *fakeRenderer) *Context {
	t.Helper()
	ctx, err := NewContext(Config{
		NewRenderer: func(renderer.Format, renderer.Options) (renderer.Renderer, error) {
			if r == nil {
				return nil, errors.New("no engine")
			}
			return r, nil
		},
	})
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })
	return ctx
}

func onePage(w, h int) *fakeRenderer {
	return &fakeRenderer{doc: &fakeDocument{
		sizes: [][2]int{{w, h}},
		fill:  color.NRGBA{R: 10, G: 20, B: 30, A: 255},
	}}
}
