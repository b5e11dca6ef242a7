package main

import (
	"sync"

	"github.com/drummonds/godjvu/djvu"
)

// handleTable maps the opaque handles given to C callers onto contexts.
// Handle 0 is never issued so a NULL pointer is always unknown.
type handleTable struct {
	mu       sync.Mutex
	contexts map[uintptr]*djvu.Context
	next     uintptr
}

var handles = newHandleTable()

func newHandleTable() *handleTable {
	return &handleTable{contexts: make(map[uintptr]*djvu.Context)}
}

func (t *handleTable) add(ctx *djvu.Context) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.contexts[t.next] = ctx
	return t.next
}

func (t *handleTable) get(h uintptr) (*djvu.Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.contexts[h]
	return ctx, ok
}

// remove forgets h and returns its context, nil when h was unknown
func (t *handleTable) remove(h uintptr) *djvu.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx := t.contexts[h]
	delete(t.contexts, h)
	return ctx
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.contexts)
}
