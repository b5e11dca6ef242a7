//go:build cgo

package main

/*
#include <stdint.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// C-allocated arguments for driving the exported functions from Go.
// Everything returned here is released with cFree.

func cString(s string) *C.char {
	return C.CString(s)
}

func cInt32(v int32) *C.int32_t {
	p := (*C.int32_t)(C.malloc(C.size_t(unsafe.Sizeof(C.int32_t(0)))))
	*p = C.int32_t(v)
	return p
}

func int32At(p *C.int32_t) int32 {
	return int32(*p)
}

// cBuffer allocates n bytes and returns them both as a C pointer and as a Go view
func cBuffer(n int) (*C.uint8_t, []byte) {
	p := C.malloc(C.size_t(n))
	return (*C.uint8_t)(p), unsafe.Slice((*byte)(p), n)
}

func cFree[T any](p *T) {
	C.free(unsafe.Pointer(p))
}
