package main

import (
	"errors"
	"testing"

	"github.com/drummonds/godjvu/djvu"
)

func TestHandleTable(t *testing.T) {
	table := newHandleTable()

	if _, ok := table.get(0); ok {
		t.Error("NULL handle resolved to a context")
	}

	first, err := djvu.NewContext(djvu.Config{})
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}
	second, err := djvu.NewContext(djvu.Config{})
	if err != nil {
		t.Fatalf("Failed to create context: %v", err)
	}

	h1 := table.add(first)
	h2 := table.add(second)
	if h1 == 0 || h2 == 0 || h1 == h2 {
		t.Fatalf("Expected distinct non-zero handles, got %d and %d", h1, h2)
	}

	if got, ok := table.get(h1); !ok || got != first {
		t.Error("Handle did not resolve to its context")
	}

	if got := table.remove(h1); got != first {
		t.Error("remove returned the wrong context")
	}
	if got := table.remove(h1); got != nil {
		t.Error("Second remove of a handle returned a context")
	}
	if _, ok := table.get(h1); ok {
		t.Error("Released handle still resolves")
	}
	if table.len() != 1 {
		t.Errorf("Expected 1 live handle, have %d", table.len())
	}

	// handles are not reused after release
	h3 := table.add(first)
	if h3 == h1 {
		t.Error("Released handle was issued again")
	}

	// a released handle's context is closed by cleanup; queries on it report closed
	first.Close()
	first.Close()
	if _, err := first.PageCount(); !errors.Is(err, djvu.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
