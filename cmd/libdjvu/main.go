// Command libdjvu builds the document context binding as a C shared library:
//
//	go build -tags djvulibre -buildmode=c-shared -o libdjvu.so ./cmd/libdjvu
//
// The exported functions match djvu_c_interface.h. Contexts are opaque
// registry handles, never Go pointers, so a released or foreign handle is
// rejected instead of dereferenced.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct djvu_context_t djvu_context_t;

static inline djvu_context_t *handle_to_context(uintptr_t h) { return (djvu_context_t *)h; }
static inline uintptr_t context_to_handle(djvu_context_t *ctx) { return (uintptr_t)ctx; }
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/drummonds/godjvu/config"
	"github.com/drummonds/godjvu/djvu"
	"github.com/drummonds/godjvu/renderer"
)

var (
	setupOnce sync.Once
	renderCfg config.RenderConfig
)

// contextConfig is what djvu_context_init builds contexts with
var contextConfig = func() djvu.Config { return renderCfg.ContextConfig() }

func setup() {
	setupOnce.Do(func() {
		var logger = config.SetupLibraryLogging()
		djvu.Logger = logger
		renderer.Logger = logger
		renderCfg = config.SetupRenderer()
	})
}

func lookup(ctx *C.djvu_context_t) (*djvu.Context, bool) {
	return handles.get(uintptr(C.context_to_handle(ctx)))
}

func release(ctx *C.djvu_context_t) *djvu.Context {
	return handles.remove(uintptr(C.context_to_handle(ctx)))
}

// guard converts a panic into CodeError so no Go panic unwinds into C
func guard(code *C.int32_t, op string) {
	if r := recover(); r != nil {
		djvu.Logger.Error("Panic recovered in C interface", "op", op, "panic", fmt.Sprint(r))
		*code = C.int32_t(djvu.CodeError)
	}
}

//export djvu_context_init
func djvu_context_init() (out *C.djvu_context_t) {
	setup()
	defer func() {
		if r := recover(); r != nil {
			djvu.Logger.Error("Panic recovered in C interface", "op", "init", "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	ctx, err := djvu.NewContext(contextConfig())
	if err != nil {
		djvu.Logger.Error("Unable to create document context", "error", err)
		return nil
	}
	return C.handle_to_context(C.uintptr_t(handles.add(ctx)))
}

//export djvu_load_document_from_file
func djvu_load_document_from_file(ctx *C.djvu_context_t, filePath *C.char) (code C.int32_t) {
	defer guard(&code, "load")

	c, ok := lookup(ctx)
	if !ok {
		return C.int32_t(djvu.CodeError)
	}
	if filePath == nil {
		return C.int32_t(djvu.CodeFileNotFound)
	}
	path := C.GoString(filePath)
	if err := c.Load(path); err != nil {
		djvu.Logger.Info("Load failed", "path", path, "error", err)
		return C.int32_t(djvu.Code(err))
	}
	return C.int32_t(djvu.CodeOK)
}

//export djvu_get_document_page_count
func djvu_get_document_page_count(ctx *C.djvu_context_t) (code C.int32_t) {
	defer guard(&code, "page_count")

	c, ok := lookup(ctx)
	if !ok {
		return -1
	}
	count, err := c.PageCount()
	if err != nil {
		return -1
	}
	return C.int32_t(count)
}

//export djvu_get_page_dimensions
func djvu_get_page_dimensions(ctx *C.djvu_context_t, pageIndex C.int32_t, width, height *C.int32_t) (code C.int32_t) {
	defer guard(&code, "page_dimensions")

	c, ok := lookup(ctx)
	if !ok {
		return C.int32_t(djvu.CodeError)
	}
	if width == nil || height == nil {
		return C.int32_t(djvu.CodeError)
	}
	w, h, err := c.PageSize(int(pageIndex))
	if err != nil {
		return C.int32_t(djvu.Code(err))
	}
	*width = C.int32_t(w)
	*height = C.int32_t(h)
	return C.int32_t(djvu.CodeOK)
}

//export djvu_render_page_to_buffer
func djvu_render_page_to_buffer(ctx *C.djvu_context_t, pageIndex, width, height C.int32_t, pixelBuffer *C.uint8_t) (code C.int32_t) {
	defer guard(&code, "render")

	c, ok := lookup(ctx)
	if !ok {
		return C.int32_t(djvu.CodeError)
	}
	if pixelBuffer == nil {
		return C.int32_t(djvu.CodeBufferSize)
	}
	size, err := djvu.BufferSize(int(width), int(height))
	if err != nil {
		return C.int32_t(djvu.Code(err))
	}
	// The caller guarantees width*height*4 bytes; the slice does not outlive this call
	buf := unsafe.Slice((*byte)(unsafe.Pointer(pixelBuffer)), size)
	if err := c.RenderPage(int(pageIndex), int(width), int(height), buf); err != nil {
		djvu.Logger.Debug("Render failed", "page", int(pageIndex), "error", err)
		return C.int32_t(djvu.Code(err))
	}
	return C.int32_t(djvu.CodeOK)
}

//export djvu_is_pdf_document
func djvu_is_pdf_document(ctx *C.djvu_context_t) (code C.int32_t) {
	defer guard(&code, "is_pdf")

	c, ok := lookup(ctx)
	if !ok {
		return -1
	}
	isPDF, err := c.IsPDF()
	if err != nil {
		return -1
	}
	if isPDF {
		return 1
	}
	return 0
}

//export djvu_context_reset
func djvu_context_reset(ctx *C.djvu_context_t) (code C.int32_t) {
	defer guard(&code, "reset")

	c, ok := lookup(ctx)
	if !ok {
		return C.int32_t(djvu.CodeError)
	}
	return C.int32_t(djvu.Code(c.Reset()))
}

//export djvu_context_cleanup
func djvu_context_cleanup(ctx *C.djvu_context_t) {
	var code C.int32_t
	defer guard(&code, "cleanup")

	// Removing the handle first makes a repeated cleanup a no-op
	if c := release(ctx); c != nil {
		c.Close()
	}
}

func main() {}
