// Package geometry wraps kernel-owned geometries in reference-counted
// Go values.
//
// A Geometry exclusively owns one kernel pointer. It enters the system in
// one of two ways: FromPointer clones a pointer the caller keeps owning,
// and Adopt takes over a pointer the kernel just produced. The pointer is
// destroyed exactly once, when the last reference is released or, failing
// that, when the wrapper is garbage collected.
//
// A nil *Geometry is a missing value.
package geometry

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/session"
)

// Geometry is a reference-counted owner of one kernel geometry.
type Geometry struct {
	k      kernel.Kernel
	ptr    atomic.Uintptr
	refs   atomic.Int32
	typeID kernel.TypeID
	hasZ   bool
}

func newGeometry(k kernel.Kernel, p kernel.Geometry, typeID kernel.TypeID, hasZ bool) *Geometry {
	g := &Geometry{k: k, typeID: typeID, hasZ: hasZ}
	g.ptr.Store(uintptr(p))
	g.refs.Store(1)
	runtime.SetFinalizer(g, (*Geometry).finalize)
	return g
}

// FromPointer clones p into a new Geometry. The caller keeps ownership
// of p.
func FromPointer(k kernel.Kernel, p kernel.Geometry) (*Geometry, error) {
	if p == 0 {
		return nil, errors.Construction("cannot clone the null pointer")
	}
	var g *Geometry
	err := session.Do(k, func(s *session.Session) error {
		c := k.Clone(s.Context(), p)
		if c == 0 {
			return errors.New(errors.PhaseConstruct, errors.KindConstruction).
				Value(uintptr(p)).
				Detail("kernel %s failed to clone %#x", k.Name(), uintptr(p)).
				Build()
		}
		var err error
		g, err = Adopt(s, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Adopt takes ownership of p, a fresh pointer produced inside s. If the
// metadata of p cannot be read, p is destroyed before the error is
// returned.
func Adopt(s *session.Session, p kernel.Geometry) (*Geometry, error) {
	if p == 0 {
		return nil, errors.Construction("cannot adopt the null pointer")
	}
	k, ctx := s.Kernel(), s.Context()

	typeID := k.TypeID(ctx, p)
	if !kernel.ValidTypeID(typeID) {
		k.Destroy(ctx, p)
		Logger().Warn("adopt failed", zap.String("kernel", k.Name()), zap.String("query", "type id"), zap.Int("result", typeID))
		return nil, errors.New(errors.PhaseConstruct, errors.KindConstruction).
			Value(typeID).
			Detail("type id query returned %d", typeID).
			Build()
	}
	hasZ := k.HasZ(ctx, p)
	if !kernel.ValidHasZ(hasZ) {
		k.Destroy(ctx, p)
		Logger().Warn("adopt failed", zap.String("kernel", k.Name()), zap.String("query", "has z"), zap.Int("result", hasZ))
		return nil, errors.New(errors.PhaseConstruct, errors.KindConstruction).
			Value(hasZ).
			Detail("has z query returned %d", hasZ).
			Build()
	}
	return newGeometry(k, p, kernel.TypeID(typeID), hasZ == 1), nil
}

// IsMissing reports whether g holds no kernel pointer.
func (g *Geometry) IsMissing() bool {
	return g == nil || g.ptr.Load() == 0
}

// Pointer returns the raw kernel pointer, or null for a missing value.
// The pointer stays owned by g.
func (g *Geometry) Pointer() kernel.Geometry {
	if g == nil {
		return 0
	}
	return kernel.Geometry(g.ptr.Load())
}

// TypeID returns the type id cached at construction.
func (g *Geometry) TypeID() kernel.TypeID { return g.typeID }

// HasZ returns the has-Z flag cached at construction.
func (g *Geometry) HasZ() bool { return g.hasZ }

// Kernel returns the kernel owning the pointer.
func (g *Geometry) Kernel() kernel.Kernel { return g.k }

// Retain adds a reference and returns g. Retaining a released Geometry
// does not revive it.
func (g *Geometry) Retain() *Geometry {
	if g == nil {
		return nil
	}
	for {
		n := g.refs.Load()
		if n <= 0 || g.refs.CompareAndSwap(n, n+1) {
			return g
		}
	}
}

// Release drops a reference. Dropping the last one destroys the kernel
// pointer in a transient session. Releasing more often than retaining is
// a no-op.
func (g *Geometry) Release() {
	if g == nil || !g.drop() {
		return
	}
	p := g.take()
	if p == 0 {
		return
	}
	err := session.Do(g.k, func(s *session.Session) error {
		g.k.Destroy(s.Context(), p)
		return nil
	})
	if err != nil {
		Logger().Error("geometry leaked", zap.String("kernel", g.k.Name()), zap.Error(err))
	}
}

// ReleaseIn is Release inside an already open session of the same kernel.
func (g *Geometry) ReleaseIn(s *session.Session) {
	if g == nil {
		return
	}
	if s == nil || s.Kernel() != g.k {
		g.Release()
		return
	}
	if !g.drop() {
		return
	}
	if p := g.take(); p != 0 {
		g.k.Destroy(s.Context(), p)
	}
}

// drop decrements the count and reports whether it reached zero.
func (g *Geometry) drop() bool {
	for {
		n := g.refs.Load()
		if n <= 0 {
			return false
		}
		if g.refs.CompareAndSwap(n, n-1) {
			return n == 1
		}
	}
}

func (g *Geometry) take() kernel.Geometry {
	p := kernel.Geometry(g.ptr.Swap(0))
	runtime.SetFinalizer(g, nil)
	return p
}

func (g *Geometry) finalize() {
	p := kernel.Geometry(g.ptr.Swap(0))
	if p == 0 {
		return
	}
	ctx := g.k.Init()
	if ctx == 0 {
		return
	}
	g.k.Destroy(ctx, p)
	g.k.Finish(ctx)
}

// String returns the WKT of g, or a placeholder when the kernel cannot
// write it.
func (g *Geometry) String() string {
	if g.IsMissing() {
		return "<missing>"
	}
	if wkt, err := g.WKT(); err == nil {
		return wkt
	}
	return fmt.Sprintf("<%s %#x>", g.typeID, uintptr(g.Pointer()))
}

// ReleaseAll releases every element of gs.
func ReleaseAll(gs []*Geometry) {
	for _, g := range gs {
		g.Release()
	}
}
