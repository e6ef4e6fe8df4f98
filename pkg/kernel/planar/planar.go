// Package planar implements kernel.Kernel in pure Go on top of
// github.com/twpayne/go-geom.
//
// Geometries live in a pointer table owned by the kernel. Predicates are
// exact for every geometry type. Constructive operations are exact for
// point sets, for rectilinear polygons (every edge parallel to an axis)
// and for shared paths of lineal inputs; other inputs make them return
// the null pointer. Results are always in the XY layout.
package planar

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/kernel/handles"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Kernel is the planar kernel.
type Kernel struct {
	table    handles.Table[geom.T]
	contexts atomic.Int64
	nextCtx  atomic.Uint64
}

// New returns an empty planar kernel.
func New() *Kernel {
	return &Kernel{}
}

func (k *Kernel) Name() string { return "planar" }

// Live returns the number of geometries in the table.
func (k *Kernel) Live() int { return k.table.Len() }

// Contexts returns the number of open contexts.
func (k *Kernel) Contexts() int { return int(k.contexts.Load()) }

// Put stores g and returns its pointer. The caller owns the pointer.
func (k *Kernel) Put(g geom.T) kernel.Geometry { return k.table.Put(g) }

// Get returns the geometry behind p.
func (k *Kernel) Get(p kernel.Geometry) (geom.T, bool) { return k.table.Get(p) }

func (k *Kernel) Init() kernel.Context {
	k.contexts.Add(1)
	return kernel.Context(k.nextCtx.Add(1))
}

func (k *Kernel) Finish(kernel.Context) {
	k.contexts.Add(-1)
}

func (k *Kernel) Clone(_ kernel.Context, p kernel.Geometry) kernel.Geometry {
	g, ok := k.table.Get(p)
	if !ok {
		return 0
	}
	return k.table.Put(clone(g))
}

func (k *Kernel) Destroy(_ kernel.Context, p kernel.Geometry) {
	k.table.Drop(p)
}

func (k *Kernel) TypeID(_ kernel.Context, p kernel.Geometry) int {
	g, ok := k.table.Get(p)
	if !ok {
		return -1
	}
	switch g.(type) {
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

func (k *Kernel) HasZ(_ kernel.Context, p kernel.Geometry) int {
	g, ok := k.table.Get(p)
	if !ok {
		return 2
	}
	if g.Layout().ZIndex() >= 0 {
		return 1
	}
	return 0
}

func (k *Kernel) ReadWKT(_ kernel.Context, s string) kernel.Geometry {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return 0
	}
	return k.table.Put(g)
}

func (k *Kernel) WriteWKT(_ kernel.Context, p kernel.Geometry) (string, bool) {
	g, ok := k.table.Get(p)
	if !ok {
		return "", false
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", false
	}
	return s, true
}

func (k *Kernel) ReadWKB(_ kernel.Context, b []byte) kernel.Geometry {
	g, err := wkb.Unmarshal(b)
	if err != nil {
		return 0
	}
	return k.table.Put(g)
}

func (k *Kernel) WriteWKB(_ kernel.Context, p kernel.Geometry) ([]byte, bool) {
	g, ok := k.table.Get(p)
	if !ok {
		return nil, false
	}
	b, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (k *Kernel) Symbol(name string) (any, bool) {
	if fn, ok := predicates[name]; ok {
		return kernel.PredicateFunc(k.predicate(fn)), true
	}
	if fn, ok := constructors[name]; ok {
		return kernel.ConstructorFunc(k.constructor(fn)), true
	}
	switch name {
	case kernel.SymIsEmpty:
		return kernel.UnaryPredicateFunc(k.unaryPredicate(func(g geom.T) bool { return g.Empty() })), true
	case kernel.SymHasZ:
		return kernel.UnaryPredicateFunc(k.unaryPredicate(func(g geom.T) bool { return g.Layout().ZIndex() >= 0 })), true
	case kernel.SymClone:
		return kernel.UnaryConstructorFunc(k.unaryConstructor(clone)), true
	case kernel.SymEnvelope:
		return kernel.UnaryConstructorFunc(k.unaryConstructor(envelope)), true
	case kernel.SymConvexHull:
		return kernel.UnaryConstructorFunc(k.unaryConstructor(convexHull)), true
	case kernel.SymCentroid:
		return kernel.UnaryConstructorFunc(k.unaryConstructor(centroid)), true
	}
	return nil, false
}

func (k *Kernel) predicate(fn func(r *relation) bool) kernel.PredicateFunc {
	return func(_ kernel.Context, a, b kernel.Geometry) byte {
		ga, ok1 := k.table.Get(a)
		gb, ok2 := k.table.Get(b)
		if !ok1 || !ok2 {
			return kernel.PredicateException
		}
		sa, sb := decompose(ga), decompose(gb)
		if !sa.finite() || !sb.finite() {
			return kernel.PredicateException
		}
		if fn(relate(sa, sb)) {
			return kernel.PredicateTrue
		}
		return kernel.PredicateFalse
	}
}

func (k *Kernel) constructor(fn func(a, b geom.T) geom.T) kernel.ConstructorFunc {
	return func(_ kernel.Context, a, b kernel.Geometry) kernel.Geometry {
		ga, ok1 := k.table.Get(a)
		gb, ok2 := k.table.Get(b)
		if !ok1 || !ok2 {
			return 0
		}
		res := fn(ga, gb)
		if res == nil {
			return 0
		}
		return k.table.Put(res)
	}
}

func (k *Kernel) unaryPredicate(fn func(g geom.T) bool) kernel.UnaryPredicateFunc {
	return func(_ kernel.Context, a kernel.Geometry) byte {
		g, ok := k.table.Get(a)
		if !ok {
			return kernel.PredicateException
		}
		if fn(g) {
			return kernel.PredicateTrue
		}
		return kernel.PredicateFalse
	}
}

func (k *Kernel) unaryConstructor(fn func(g geom.T) geom.T) kernel.UnaryConstructorFunc {
	return func(_ kernel.Context, a kernel.Geometry) kernel.Geometry {
		g, ok := k.table.Get(a)
		if !ok {
			return 0
		}
		res := fn(g)
		if res == nil {
			return 0
		}
		return k.table.Put(res)
	}
}

// clone deep-copies g.
func clone(g geom.T) geom.T {
	switch g := g.(type) {
	case *geom.Point:
		return g.Clone()
	case *geom.LineString:
		return g.Clone()
	case *geom.LinearRing:
		return g.Clone()
	case *geom.Polygon:
		return g.Clone()
	case *geom.MultiPoint:
		return g.Clone()
	case *geom.MultiLineString:
		return g.Clone()
	case *geom.MultiPolygon:
		return g.Clone()
	case *geom.GeometryCollection:
		out := geom.NewGeometryCollection()
		for _, c := range g.Geoms() {
			out.MustPush(clone(c))
		}
		return out
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
