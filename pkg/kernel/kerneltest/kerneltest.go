// Package kerneltest provides an instrumented kernel for tests.
//
// Geometries are closed intervals on the real line. The kernel counts
// every context and pointer it hands out, so tests can assert that a
// call leaked nothing, freed nothing twice and closed every session it
// opened. Failures are injected through the exported fields.
package kerneltest

import (
	"fmt"
	"math"
	"sync"

	"github.com/chazu/geoarray/pkg/kernel"
)

var _ kernel.Kernel = (*Kernel)(nil)

type interval struct {
	lo, hi float64
	// poison makes every operation on the interval report an exception.
	poison bool
	// brokenMeta makes TypeID and HasZ report failures.
	brokenMeta bool
}

// Kernel is an interval kernel with counters and failure switches.
type Kernel struct {
	// FailInit makes Init return the zero context.
	FailInit bool
	// FailClone makes Clone return the null pointer.
	FailClone bool
	// BadTypeID makes TypeID return -1 for every geometry.
	BadTypeID bool
	// BadHasZ makes HasZ return 2 for every geometry.
	BadHasZ bool
	// BrokenResults makes constructors return geometries whose metadata
	// cannot be read.
	BrokenResults bool

	mu       sync.Mutex
	geoms    map[kernel.Geometry]*interval
	open     map[kernel.Context]bool
	nextPtr  kernel.Geometry
	nextCtx  kernel.Context
	inits    int
	finishes int
	destroys int
	bad      []string
}

// New returns an empty instrumented kernel.
func New() *Kernel {
	return &Kernel{
		geoms:   make(map[kernel.Geometry]*interval),
		open:    make(map[kernel.Context]bool),
		nextPtr: 0x1000,
		nextCtx: 1,
	}
}

func (k *Kernel) Name() string { return "kerneltest" }

// Interval allocates the interval [lo, hi] and returns its pointer.
// The caller owns it.
func (k *Kernel) Interval(lo, hi float64) kernel.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alloc(&interval{lo: lo, hi: hi})
}

// Poison allocates a geometry on which every operation fails.
func (k *Kernel) Poison() kernel.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alloc(&interval{poison: true})
}

// Bounds returns the interval behind g.
func (k *Kernel) Bounds(g kernel.Geometry) (lo, hi float64, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	iv, ok := k.geoms[g]
	if !ok {
		return 0, 0, false
	}
	return iv.lo, iv.hi, true
}

// Free destroys a pointer allocated with Interval or Poison outside of
// any session.
func (k *Kernel) Free(g kernel.Geometry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.destroy(g)
}

// Live returns the number of allocated geometries.
func (k *Kernel) Live() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.geoms)
}

// Has reports whether g is a live pointer.
func (k *Kernel) Has(g kernel.Geometry) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.geoms[g]
	return ok
}

// Sessions returns the Init and Finish counts.
func (k *Kernel) Sessions() (inits, finishes int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.inits, k.finishes
}

// OpenSessions returns the number of contexts not yet finished.
func (k *Kernel) OpenSessions() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.open)
}

// Destroys returns the number of successful Destroy calls.
func (k *Kernel) Destroys() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.destroys
}

// Violations lists contract violations seen so far: double frees,
// unknown pointers and calls on closed contexts.
func (k *Kernel) Violations() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.bad...)
}

func (k *Kernel) alloc(iv *interval) kernel.Geometry {
	k.nextPtr += 0x10
	k.geoms[k.nextPtr] = iv
	return k.nextPtr
}

func (k *Kernel) destroy(g kernel.Geometry) {
	if _, ok := k.geoms[g]; !ok {
		k.bad = append(k.bad, fmt.Sprintf("destroy of unknown pointer %#x", uintptr(g)))
		return
	}
	delete(k.geoms, g)
	k.destroys++
}

// get looks up g under a valid context. Callers hold k.mu.
func (k *Kernel) get(ctx kernel.Context, g kernel.Geometry) (*interval, bool) {
	if !k.open[ctx] {
		k.bad = append(k.bad, fmt.Sprintf("call on closed context %d", ctx))
		return nil, false
	}
	iv, ok := k.geoms[g]
	if !ok {
		k.bad = append(k.bad, fmt.Sprintf("use of unknown pointer %#x", uintptr(g)))
	}
	return iv, ok
}

func (k *Kernel) Init() kernel.Context {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.FailInit {
		return 0
	}
	k.inits++
	ctx := k.nextCtx
	k.nextCtx++
	k.open[ctx] = true
	return ctx
}

func (k *Kernel) Finish(ctx kernel.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.open[ctx] {
		k.bad = append(k.bad, fmt.Sprintf("finish of closed context %d", ctx))
		return
	}
	delete(k.open, ctx)
	k.finishes++
}

func (k *Kernel) Clone(ctx kernel.Context, g kernel.Geometry) kernel.Geometry {
	k.mu.Lock()
	defer k.mu.Unlock()
	iv, ok := k.get(ctx, g)
	if !ok || k.FailClone {
		return 0
	}
	cp := *iv
	return k.alloc(&cp)
}

func (k *Kernel) Destroy(ctx kernel.Context, g kernel.Geometry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.open[ctx] {
		k.bad = append(k.bad, fmt.Sprintf("destroy on closed context %d", ctx))
	}
	k.destroy(g)
}

func (k *Kernel) TypeID(ctx kernel.Context, g kernel.Geometry) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	iv, ok := k.get(ctx, g)
	if !ok || k.BadTypeID || iv.brokenMeta {
		return -1
	}
	if iv.lo == iv.hi {
		return int(kernel.Point)
	}
	return int(kernel.LineString)
}

func (k *Kernel) HasZ(ctx kernel.Context, g kernel.Geometry) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	iv, ok := k.get(ctx, g)
	if !ok || k.BadHasZ || iv.brokenMeta {
		return 2
	}
	return 0
}

func (k *Kernel) ReadWKT(ctx kernel.Context, wkt string) kernel.Geometry {
	var lo, hi float64
	if _, err := fmt.Sscanf(wkt, "INTERVAL (%g %g)", &lo, &hi); err != nil {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.open[ctx] {
		return 0
	}
	return k.alloc(&interval{lo: lo, hi: hi})
}

func (k *Kernel) WriteWKT(ctx kernel.Context, g kernel.Geometry) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	iv, ok := k.get(ctx, g)
	if !ok || iv.poison {
		return "", false
	}
	if iv.lo > iv.hi {
		return "INTERVAL EMPTY", true
	}
	return fmt.Sprintf("INTERVAL (%g %g)", iv.lo, iv.hi), true
}

func (k *Kernel) ReadWKB(ctx kernel.Context, wkb []byte) kernel.Geometry {
	return k.ReadWKT(ctx, string(wkb))
}

func (k *Kernel) WriteWKB(ctx kernel.Context, g kernel.Geometry) ([]byte, bool) {
	s, ok := k.WriteWKT(ctx, g)
	return []byte(s), ok
}

func (k *Kernel) Symbol(name string) (any, bool) {
	switch name {
	case kernel.SymIntersects:
		return kernel.PredicateFunc(k.predicate(func(a, b *interval) bool {
			return a.lo <= b.hi && b.lo <= a.hi
		})), true
	case kernel.SymDisjoint:
		return kernel.PredicateFunc(k.predicate(func(a, b *interval) bool {
			return a.hi < b.lo || b.hi < a.lo
		})), true
	case kernel.SymEquals:
		return kernel.PredicateFunc(k.predicate(func(a, b *interval) bool {
			return a.lo == b.lo && a.hi == b.hi
		})), true
	case kernel.SymContains:
		return kernel.PredicateFunc(k.predicate(func(a, b *interval) bool {
			return a.lo <= b.lo && b.hi <= a.hi
		})), true
	case kernel.SymIntersection:
		return kernel.ConstructorFunc(k.constructor(func(a, b *interval) *interval {
			lo, hi := math.Max(a.lo, b.lo), math.Min(a.hi, b.hi)
			if lo > hi {
				return nil
			}
			return &interval{lo: lo, hi: hi}
		})), true
	case kernel.SymUnion:
		return kernel.ConstructorFunc(k.constructor(func(a, b *interval) *interval {
			return &interval{lo: math.Min(a.lo, b.lo), hi: math.Max(a.hi, b.hi)}
		})), true
	case kernel.SymIsEmpty:
		return kernel.UnaryPredicateFunc(func(ctx kernel.Context, a kernel.Geometry) byte {
			return k.predicate(func(a, _ *interval) bool { return a.lo > a.hi })(ctx, a, a)
		}), true
	case kernel.SymEnvelope:
		return kernel.UnaryConstructorFunc(func(ctx kernel.Context, a kernel.Geometry) kernel.Geometry {
			return k.constructor(func(a, _ *interval) *interval {
				cp := *a
				return &cp
			})(ctx, a, a)
		}), true
	}
	return nil, false
}

func (k *Kernel) predicate(fn func(a, b *interval) bool) kernel.PredicateFunc {
	return func(ctx kernel.Context, a, b kernel.Geometry) byte {
		k.mu.Lock()
		defer k.mu.Unlock()
		ia, ok1 := k.get(ctx, a)
		ib, ok2 := k.get(ctx, b)
		if !ok1 || !ok2 || ia.poison || ib.poison {
			return kernel.PredicateException
		}
		if fn(ia, ib) {
			return kernel.PredicateTrue
		}
		return kernel.PredicateFalse
	}
}

func (k *Kernel) constructor(fn func(a, b *interval) *interval) kernel.ConstructorFunc {
	return func(ctx kernel.Context, a, b kernel.Geometry) kernel.Geometry {
		k.mu.Lock()
		defer k.mu.Unlock()
		ia, ok1 := k.get(ctx, a)
		ib, ok2 := k.get(ctx, b)
		if !ok1 || !ok2 || ia.poison || ib.poison {
			return 0
		}
		res := fn(ia, ib)
		if res == nil {
			return 0
		}
		res.brokenMeta = k.BrokenResults
		return k.alloc(res)
	}
}
