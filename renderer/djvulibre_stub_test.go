//go:build !djvulibre || !cgo

package renderer

import (
	"errors"
	"testing"
)

func TestDjVuUnavailableWithoutTag(t *testing.T) {
	_, err := NewRenderer(FormatDjVu, Options{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}

	var r DjVuRenderer
	if _, err := r.Open("book.djvu"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable from Open, got %v", err)
	}
}
