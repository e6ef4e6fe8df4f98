// Package sdfx implements the kernel.Kernel interface over two-dimensional
// signed distance fields from the github.com/deadsy/sdfx CAD library.
//
// Geometries read from WKT or WKB keep their vector form next to the
// distance field and can be written back. Constructive operations are CSG
// on the fields; their results have no vector form. Predicates sample a
// grid over the bounding boxes of both operands, so they are approximate
// at the scale of one grid cell.
package sdfx

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/kernel/handles"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultCells is the sampling resolution per axis.
const DefaultCells = 64

// solid is one geometry: a distance field, its vector source when it has
// one, and its topological dimension (-1 when empty).
type solid struct {
	s      sdf.SDF2
	vector geom.T
	dim    int
}

func (s *solid) empty() bool { return s.dim < 0 }

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	cells    int
	table    handles.Table[*solid]
	contexts atomic.Int64
	nextCtx  atomic.Uint64
}

// New returns a kernel sampling DefaultCells per axis.
func New() *SdfxKernel {
	return NewWithCells(DefaultCells)
}

// NewWithCells returns a kernel sampling cells per axis.
func NewWithCells(cells int) *SdfxKernel {
	if cells < 4 {
		cells = 4
	}
	return &SdfxKernel{cells: cells}
}

func (k *SdfxKernel) Name() string { return "sdfx" }

// Live returns the number of geometries held by the kernel.
func (k *SdfxKernel) Live() int { return k.table.Len() }

// Contexts returns the number of open contexts.
func (k *SdfxKernel) Contexts() int { return int(k.contexts.Load()) }

func (k *SdfxKernel) Init() kernel.Context {
	k.contexts.Add(1)
	return kernel.Context(k.nextCtx.Add(1))
}

func (k *SdfxKernel) Finish(kernel.Context) {
	k.contexts.Add(-1)
}

func (k *SdfxKernel) Clone(_ kernel.Context, p kernel.Geometry) kernel.Geometry {
	s, ok := k.table.Get(p)
	if !ok {
		return 0
	}
	c := *s
	return k.table.Put(&c)
}

func (k *SdfxKernel) Destroy(_ kernel.Context, p kernel.Geometry) {
	k.table.Drop(p)
}

func (k *SdfxKernel) TypeID(_ kernel.Context, p kernel.Geometry) int {
	s, ok := k.table.Get(p)
	if !ok {
		return -1
	}
	switch s.vector.(type) {
	case nil:
		return int(kernel.Polygon)
	case *geom.Point:
		return int(kernel.Point)
	case *geom.LineString:
		return int(kernel.LineString)
	case *geom.LinearRing:
		return int(kernel.LinearRing)
	case *geom.Polygon:
		return int(kernel.Polygon)
	case *geom.MultiPoint:
		return int(kernel.MultiPoint)
	case *geom.MultiLineString:
		return int(kernel.MultiLineString)
	case *geom.MultiPolygon:
		return int(kernel.MultiPolygon)
	case *geom.GeometryCollection:
		return int(kernel.GeometryCollection)
	}
	return -1
}

func (k *SdfxKernel) HasZ(_ kernel.Context, p kernel.Geometry) int {
	s, ok := k.table.Get(p)
	if !ok {
		return 2
	}
	if s.vector != nil && s.vector.Layout().ZIndex() >= 0 {
		return 1
	}
	return 0
}

func (k *SdfxKernel) ReadWKT(_ kernel.Context, text string) kernel.Geometry {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return 0
	}
	return k.adopt(g)
}

func (k *SdfxKernel) ReadWKB(_ kernel.Context, b []byte) kernel.Geometry {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return 0
	}
	return k.adopt(g)
}

func (k *SdfxKernel) adopt(g geom.T) kernel.Geometry {
	s, err := fromGeom(g)
	if err != nil {
		return 0
	}
	return k.table.Put(s)
}

func (k *SdfxKernel) WriteWKT(_ kernel.Context, p kernel.Geometry) (string, bool) {
	s, ok := k.table.Get(p)
	if !ok || s.vector == nil {
		return "", false
	}
	text, err := wkt.Marshal(s.vector)
	if err != nil {
		return "", false
	}
	return text, true
}

func (k *SdfxKernel) WriteWKB(_ kernel.Context, p kernel.Geometry) ([]byte, bool) {
	s, ok := k.table.Get(p)
	if !ok || s.vector == nil {
		return nil, false
	}
	b, err := wkb.Marshal(s.vector, binary.LittleEndian)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (k *SdfxKernel) Symbol(name string) (any, bool) {
	switch name {
	case kernel.SymIntersection:
		return k.constructor(k.intersection), true
	case kernel.SymUnion:
		return k.constructor(k.union), true
	case kernel.SymDifference:
		return k.constructor(k.difference), true
	case kernel.SymSymDifference:
		return k.constructor(k.symDifference), true
	case kernel.SymIsEmpty:
		return k.unaryPredicate(func(s *solid) bool { return s.empty() }), true
	case kernel.SymHasZ:
		return k.unaryPredicate(func(s *solid) bool { return s.vector != nil && s.vector.Layout().ZIndex() >= 0 }), true
	case kernel.SymClone:
		return kernel.UnaryConstructorFunc(k.Clone), true
	case kernel.SymEnvelope:
		return kernel.UnaryConstructorFunc(k.envelope), true
	}
	if fn, ok := predicates[name]; ok {
		return k.predicate(fn), true
	}
	return nil, false
}

func (k *SdfxKernel) predicate(fn func(*samples) bool) kernel.PredicateFunc {
	return func(_ kernel.Context, a, b kernel.Geometry) byte {
		sa, ok1 := k.table.Get(a)
		sb, ok2 := k.table.Get(b)
		if !ok1 || !ok2 {
			return kernel.PredicateException
		}
		if fn(k.sample(sa, sb)) {
			return kernel.PredicateTrue
		}
		return kernel.PredicateFalse
	}
}

func (k *SdfxKernel) constructor(fn func(a, b *solid) *solid) kernel.ConstructorFunc {
	return func(_ kernel.Context, a, b kernel.Geometry) kernel.Geometry {
		sa, ok1 := k.table.Get(a)
		sb, ok2 := k.table.Get(b)
		if !ok1 || !ok2 || sa.dim == 0 || sa.dim == 1 || sb.dim == 0 || sb.dim == 1 {
			return 0
		}
		res := fn(sa, sb)
		if res == nil {
			return 0
		}
		return k.table.Put(res)
	}
}

func (k *SdfxKernel) unaryPredicate(fn func(*solid) bool) kernel.UnaryPredicateFunc {
	return func(_ kernel.Context, a kernel.Geometry) byte {
		s, ok := k.table.Get(a)
		if !ok {
			return kernel.PredicateException
		}
		if fn(s) {
			return kernel.PredicateTrue
		}
		return kernel.PredicateFalse
	}
}

// csg wraps a field produced by a boolean operation, probing it to decide
// whether anything is left.
func (k *SdfxKernel) csg(s sdf.SDF2) *solid {
	res := &solid{s: s, dim: 2}
	if _, _, ok := k.extent(s); !ok {
		return &solid{dim: -1}
	}
	return res
}

func (k *SdfxKernel) intersection(a, b *solid) *solid {
	if a.empty() || b.empty() {
		return &solid{dim: -1}
	}
	return k.csg(sdf.Intersect2D(a.s, b.s))
}

func (k *SdfxKernel) union(a, b *solid) *solid {
	switch {
	case a.empty():
		c := *b
		return &c
	case b.empty():
		c := *a
		return &c
	}
	return k.csg(sdf.Union2D(a.s, b.s))
}

func (k *SdfxKernel) difference(a, b *solid) *solid {
	if a.empty() || b.empty() {
		c := *a
		return &c
	}
	return k.csg(sdf.Difference2D(a.s, b.s))
}

func (k *SdfxKernel) symDifference(a, b *solid) *solid {
	switch {
	case a.empty():
		c := *b
		return &c
	case b.empty():
		c := *a
		return &c
	}
	return k.csg(sdf.Union2D(sdf.Difference2D(a.s, b.s), sdf.Difference2D(b.s, a.s)))
}

// envelope returns the bounding box as a vector geometry. Vector inputs use
// their exact bounds; CSG results use the extent of their inside samples.
func (k *SdfxKernel) envelope(_ kernel.Context, p kernel.Geometry) kernel.Geometry {
	s, ok := k.table.Get(p)
	if !ok {
		return 0
	}
	if s.empty() {
		return k.table.Put(&solid{vector: geom.NewPolygon(geom.XY), dim: -1})
	}
	var lo, hi v2.Vec
	if s.vector != nil {
		bb := s.s.BoundingBox()
		lo, hi = bb.Min, bb.Max
	} else if lo, hi, ok = k.extent(s.s); !ok {
		return 0
	}
	var g geom.T
	if lo == hi {
		g = geom.NewPointFlat(geom.XY, []float64{lo.X, lo.Y})
	} else {
		g = geom.NewBounds(geom.XY).Set(lo.X, lo.Y, hi.X, hi.Y).Polygon()
	}
	res, err := fromGeom(g)
	if err != nil {
		return 0
	}
	return k.table.Put(res)
}

// extent returns the bounds of the samples inside s.
func (k *SdfxKernel) extent(s sdf.SDF2) (lo, hi v2.Vec, ok bool) {
	g, valid := k.newGrid(s.BoundingBox())
	if !valid {
		return lo, hi, false
	}
	lo = v2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi = v2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	g.each(func(p v2.Vec) {
		if s.Evaluate(p) <= 0 {
			ok = true
			lo = v2.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y)}
			hi = v2.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y)}
		}
	})
	return lo, hi, ok
}
