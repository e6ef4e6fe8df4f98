// Package handles maps opaque kernel pointers to Go values for kernels
// implemented in Go.
package handles

import (
	"sync"

	"github.com/chazu/geoarray/pkg/kernel"
)

// Table stores values behind kernel.Geometry pointers. Pointer 0 is never
// issued and freed slots are reused. A Table is safe for concurrent use.
type Table[T any] struct {
	mu      sync.RWMutex
	entries []slot[T]
	free    []kernel.Geometry
	live    int
}

type slot[T any] struct {
	v     T
	valid bool
}

// Put stores v and returns its pointer.
func (t *Table[T]) Put(v T) kernel.Geometry {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live++
	if n := len(t.free); n > 0 {
		p := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[p-1] = slot[T]{v: v, valid: true}
		return p
	}
	t.entries = append(t.entries, slot[T]{v: v, valid: true})
	return kernel.Geometry(len(t.entries))
}

// Get returns the value behind p.
func (t *Table[T]) Get(p kernel.Geometry) (T, bool) {
	var zero T
	if p == 0 {
		return zero, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(p) > len(t.entries) || !t.entries[p-1].valid {
		return zero, false
	}
	return t.entries[p-1].v, true
}

// Drop frees p. It reports whether p was live.
func (t *Table[T]) Drop(p kernel.Geometry) bool {
	if p == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(p) > len(t.entries) || !t.entries[p-1].valid {
		return false
	}
	t.entries[p-1] = slot[T]{}
	t.free = append(t.free, p)
	t.live--
	return true
}

// Len returns the number of live pointers.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}
