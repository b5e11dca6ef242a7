//go:build !djvulibre || !cgo

package renderer

// DjVuRenderer is a stub for builds without djvulibre.
// Build with -tags djvulibre (and CGo enabled) to enable DjVu support.
type DjVuRenderer struct{}

// NewDjVuRenderer returns ErrUnavailable in this build
func NewDjVuRenderer() (*DjVuRenderer, error) {
	return nil, ErrUnavailable
}

// Open returns ErrUnavailable in this build
func (r *DjVuRenderer) Open(filename string) (Document, error) {
	return nil, ErrUnavailable
}

// Close is a no-op
func (r *DjVuRenderer) Close() error {
	return nil
}
