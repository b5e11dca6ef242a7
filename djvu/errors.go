package djvu

import (
	"errors"
)

var (
	// ErrClosed is returned by every operation on a context after Close
	ErrClosed = errors.New("djvu: context closed")
	// ErrAlreadyLoaded is returned when Load is called on a context that holds a document
	ErrAlreadyLoaded = errors.New("djvu: document already loaded")
	// ErrNotLoaded is returned by queries issued before a successful Load
	ErrNotLoaded = errors.New("djvu: no document loaded")
	// ErrFileNotFound covers missing and unreadable files
	ErrFileNotFound = errors.New("djvu: file not found or unreadable")
	// ErrUnsupportedFormat covers unknown containers and documents the engine rejects
	ErrUnsupportedFormat = errors.New("djvu: unsupported or corrupt document")
	// ErrNoPages is returned when the document reports zero pages
	ErrNoPages = errors.New("djvu: document has no pages")
	// ErrPageRange is returned for a page index outside [0, page count)
	ErrPageRange = errors.New("djvu: page index out of range")
	// ErrLayout is returned when the engine cannot resolve a page's size
	ErrLayout = errors.New("djvu: page layout unavailable")
	// ErrInvalidSize is returned for non-positive or oversized render dimensions
	ErrInvalidSize = errors.New("djvu: invalid render dimensions")
	// ErrBufferSize is returned when the pixel buffer is not exactly width*height*4 bytes
	ErrBufferSize = errors.New("djvu: pixel buffer size mismatch")
	// ErrRender is returned when decoding or rasterizing a page fails
	ErrRender = errors.New("djvu: render failed")
	// ErrEngine is returned when the rendering engine cannot be initialised
	ErrEngine = errors.New("djvu: engine initialisation failed")
)

// Integer result codes of the C interface. Zero is success, failures are negative.
const (
	CodeOK            int32 = 0
	CodeError         int32 = -1
	CodeFileNotFound  int32 = -2
	CodeUnsupported   int32 = -3
	CodeAlreadyLoaded int32 = -4
	CodeNotLoaded     int32 = -5
	CodePageRange     int32 = -6
	CodeInvalidSize   int32 = -7
	CodeBufferSize    int32 = -8
	CodeRender        int32 = -9
	CodeContextClosed int32 = -10
	CodeLayout        int32 = -11
	CodeNoPages       int32 = -12
)

var codes = []struct {
	err  error
	code int32
}{
	{ErrClosed, CodeContextClosed},
	{ErrAlreadyLoaded, CodeAlreadyLoaded},
	{ErrNotLoaded, CodeNotLoaded},
	{ErrFileNotFound, CodeFileNotFound},
	{ErrUnsupportedFormat, CodeUnsupported},
	{ErrNoPages, CodeNoPages},
	{ErrPageRange, CodePageRange},
	{ErrLayout, CodeLayout},
	{ErrInvalidSize, CodeInvalidSize},
	{ErrBufferSize, CodeBufferSize},
	{ErrRender, CodeRender},
}

// Code translates an error returned by this package into its C interface code.
// nil maps to CodeOK and anything unrecognised to CodeError.
func Code(err error) int32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeError
}
