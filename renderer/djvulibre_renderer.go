//go:build djvulibre && cgo

package renderer

/*
#cgo pkg-config: ddjvuapi
#include <stdlib.h>
#include <string.h>
#include <libdjvu/ddjvuapi.h>
#include <libdjvu/miniexp.h>

typedef struct {
	ddjvu_context_t  *ctx;
	ddjvu_document_t *doc;
	char err[512];
} gdjvu_doc;

// gdjvu_pump drains the message queue, keeping the first error text.
static void gdjvu_pump(gdjvu_doc *d, int wait) {
	const ddjvu_message_t *msg;
	if (wait)
		ddjvu_message_wait(d->ctx);
	while ((msg = ddjvu_message_peek(d->ctx))) {
		if (msg->m_any.tag == DDJVU_ERROR && msg->m_error.message && d->err[0] == 0)
			strncpy(d->err, msg->m_error.message, sizeof(d->err) - 1);
		ddjvu_message_pop(d->ctx);
	}
}

static gdjvu_doc *gdjvu_open(const char *path) {
	gdjvu_doc *d = calloc(1, sizeof(gdjvu_doc));
	if (!d)
		return NULL;
	d->ctx = ddjvu_context_create("godjvu");
	if (!d->ctx) {
		free(d);
		return NULL;
	}
	d->doc = ddjvu_document_create_by_filename_utf8(d->ctx, path, 1);
	if (!d->doc) {
		gdjvu_pump(d, 0);
		return d;
	}
	while (!ddjvu_document_decoding_done(d->doc))
		gdjvu_pump(d, 1);
	gdjvu_pump(d, 0);
	return d;
}

static int gdjvu_failed(gdjvu_doc *d) {
	return d->doc == NULL || ddjvu_document_decoding_error(d->doc);
}

static int gdjvu_pagenum(gdjvu_doc *d) {
	return ddjvu_document_get_pagenum(d->doc);
}

static int gdjvu_pageinfo(gdjvu_doc *d, int pageno, int *w, int *h) {
	ddjvu_pageinfo_t info;
	ddjvu_status_t r;
	while ((r = ddjvu_document_get_pageinfo(d->doc, pageno, &info)) < DDJVU_JOB_OK)
		gdjvu_pump(d, 1);
	if (r >= DDJVU_JOB_FAILED)
		return -1;
	if (info.rotation & 1) {
		*w = info.height;
		*h = info.width;
	} else {
		*w = info.width;
		*h = info.height;
	}
	return 0;
}

// gdjvu_render fills rgb (w*h*3 bytes, top row first) with the page scaled to w x h.
static int gdjvu_render(gdjvu_doc *d, int pageno, int w, int h, unsigned char *rgb) {
	ddjvu_page_t *page = ddjvu_page_create_by_pageno(d->doc, pageno);
	if (!page)
		return -1;
	while (!ddjvu_page_decoding_done(page))
		gdjvu_pump(d, 1);
	if (ddjvu_page_decoding_error(page)) {
		ddjvu_page_release(page);
		return -1;
	}
	ddjvu_format_t *fmt = ddjvu_format_create(DDJVU_FORMAT_RGB24, 0, 0);
	if (!fmt) {
		ddjvu_page_release(page);
		return -1;
	}
	ddjvu_format_set_row_order(fmt, 1);
	ddjvu_format_set_y_direction(fmt, 1);

	ddjvu_rect_t rect;
	rect.x = 0;
	rect.y = 0;
	rect.w = (unsigned int)w;
	rect.h = (unsigned int)h;
	int ok = ddjvu_page_render(page, DDJVU_RENDER_COLOR, &rect, &rect, fmt,
	                           (unsigned long)w * 3, (char *)rgb);
	ddjvu_format_release(fmt);
	ddjvu_page_release(page);
	// Nothing to draw (blank page): white
	if (!ok)
		memset(rgb, 0xff, (size_t)w * (size_t)h * 3);
	return 0;
}

// gdjvu_pagetext returns a malloc'd copy of the page-level text, or NULL.
static char *gdjvu_pagetext(gdjvu_doc *d, int pageno) {
	miniexp_t r;
	char *out = NULL;
	while ((r = ddjvu_document_get_pagetext(d->doc, pageno, "page")) == miniexp_dummy)
		gdjvu_pump(d, 1);
	if (miniexp_consp(r)) {
		miniexp_t s = miniexp_nth(5, r);
		if (miniexp_stringp(s))
			out = strdup(miniexp_to_str(s));
	}
	if (r != miniexp_nil)
		ddjvu_miniexp_release(d->doc, r);
	return out;
}

static void gdjvu_close(gdjvu_doc *d) {
	if (!d)
		return;
	if (d->doc)
		ddjvu_document_release(d->doc);
	if (d->ctx)
		ddjvu_context_release(d->ctx);
	free(d);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unsafe"
)

// DjVuRenderer implements DjVu rendering over djvulibre's ddjvuapi
type DjVuRenderer struct{}

// NewDjVuRenderer creates a djvulibre-backed renderer
func NewDjVuRenderer() (*DjVuRenderer, error) {
	return &DjVuRenderer{}, nil
}

// Open decodes the document directory synchronously
func (r *DjVuRenderer) Open(filename string) (Document, error) {
	cpath := C.CString(filename)
	defer C.free(unsafe.Pointer(cpath))

	d := C.gdjvu_open(cpath)
	if d == nil {
		return nil, errors.New("unable to create djvulibre context")
	}
	if C.gdjvu_failed(d) != 0 {
		msg := C.GoString(&d.err[0])
		C.gdjvu_close(d)
		if msg == "" {
			msg = "decoding failed"
		}
		return nil, fmt.Errorf("unable to open DjVu document: %s", msg)
	}

	doc := &djvuDocument{d: d, pages: int(C.gdjvu_pagenum(d))}
	Logger.Debug("Opened DjVu document", "path", filename, "pages", doc.pages)
	return doc, nil
}

// Close is a no-op: every document owns its djvulibre context
func (r *DjVuRenderer) Close() error {
	return nil
}

type djvuDocument struct {
	d     *C.gdjvu_doc
	pages int
}

func (doc *djvuDocument) lastError(fallback string) error {
	msg := C.GoString(&doc.d.err[0])
	if msg == "" {
		msg = fallback
	}
	return errors.New(msg)
}

func (doc *djvuDocument) PageCount() int {
	return doc.pages
}

func (doc *djvuDocument) PageSize(index int) (int, int, error) {
	if err := checkPage(index, doc.pages); err != nil {
		return 0, 0, err
	}
	var w, h C.int
	if C.gdjvu_pageinfo(doc.d, C.int(index), &w, &h) != 0 {
		return 0, 0, fmt.Errorf("unable to get info for page %d: %w", index, doc.lastError("page info failed"))
	}
	return int(w), int(h), nil
}

func (doc *djvuDocument) RenderPage(index, width, height int) (image.Image, error) {
	if err := checkPage(index, doc.pages); err != nil {
		return nil, err
	}
	rgb := make([]byte, width*height*3)
	if C.gdjvu_render(doc.d, C.int(index), C.int(width), C.int(height), (*C.uchar)(unsafe.Pointer(&rgb[0]))) != 0 {
		return nil, fmt.Errorf("unable to render page %d: %w", index, doc.lastError("page decoding failed"))
	}
	return rgbToNRGBA(rgb, width, height), nil
}

func (doc *djvuDocument) PageText(index int) (string, error) {
	if err := checkPage(index, doc.pages); err != nil {
		return "", err
	}
	ctext := C.gdjvu_pagetext(doc.d, C.int(index))
	if ctext == nil {
		return "", nil
	}
	defer C.free(unsafe.Pointer(ctext))
	return strings.TrimSpace(C.GoString(ctext)), nil
}

func (doc *djvuDocument) Close() error {
	if doc.d != nil {
		C.gdjvu_close(doc.d)
		doc.d = nil
	}
	return nil
}
