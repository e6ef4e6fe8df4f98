package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/twpayne/go-geom"

	"github.com/chazu/geoarray/pkg/kernel"
)

// fromGeom builds the distance field of g. Points and lines become the
// distance to their segments; polygons use sdf.Polygon2D with holes
// subtracted.
func fromGeom(g geom.T) (*solid, error) {
	b := &builder{}
	if err := b.add(g); err != nil {
		return nil, err
	}
	res := &solid{vector: g, dim: -1}
	if len(b.polys) > 0 {
		res.dim = 2
	} else if len(b.lines.segs) > 0 {
		res.dim = 1
	} else if len(b.lines.pts) > 0 {
		res.dim = 0
	}
	if res.dim < 0 {
		return res, nil
	}
	parts := append([]sdf.SDF2(nil), b.polys...)
	if len(b.lines.segs) > 0 || len(b.lines.pts) > 0 {
		parts = append(parts, b.lines)
	}
	if len(parts) == 1 {
		res.s = parts[0]
	} else {
		res.s = sdf.Union2D(parts...)
	}
	return res, nil
}

type builder struct {
	polys []sdf.SDF2
	lines *segments
}

func (b *builder) add(g geom.T) error {
	if b.lines == nil {
		b.lines = &segments{}
	}
	switch g := g.(type) {
	case *geom.Point:
		if !g.Empty() {
			return b.lines.point(v2.Vec{X: g.X(), Y: g.Y()})
		}
	case *geom.MultiPoint:
		for i := 0; i < g.NumPoints(); i++ {
			if err := b.add(g.Point(i)); err != nil {
				return err
			}
		}
	case *geom.LineString:
		return b.lines.path(toVecs(g.FlatCoords(), g.Stride()))
	case *geom.LinearRing:
		return b.lines.path(toVecs(g.FlatCoords(), g.Stride()))
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			if err := b.add(g.LineString(i)); err != nil {
				return err
			}
		}
	case *geom.Polygon:
		if g.Empty() {
			return nil
		}
		p, err := polygon(g)
		if err != nil {
			return err
		}
		b.polys = append(b.polys, p)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if err := b.add(g.Polygon(i)); err != nil {
				return err
			}
		}
	case *geom.GeometryCollection:
		for _, c := range g.Geoms() {
			if err := b.add(c); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry %T", g)
	}
	return nil
}

func polygon(g *geom.Polygon) (sdf.SDF2, error) {
	var shell sdf.SDF2
	for i := 0; i < g.NumLinearRings(); i++ {
		r := g.LinearRing(i)
		vs := toVecs(r.FlatCoords(), r.Stride())
		if n := len(vs); n > 1 && vs[0] == vs[n-1] {
			vs = vs[:n-1]
		}
		if len(vs) < 3 {
			return nil, fmt.Errorf("ring %d has %d vertices", i, len(vs))
		}
		ring, err := sdf.Polygon2D(vs)
		if err != nil {
			return nil, err
		}
		if shell == nil {
			shell = ring
		} else {
			shell = sdf.Difference2D(shell, ring)
		}
	}
	return shell, nil
}

func toVecs(flat []float64, stride int) []v2.Vec {
	if stride < 2 {
		return nil
	}
	out := make([]v2.Vec, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, v2.Vec{X: flat[i], Y: flat[i+1]})
	}
	return out
}

func finite(v v2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// segments is the unsigned distance to a set of points and segments. It
// implements sdf.SDF2.
type segments struct {
	pts  []v2.Vec
	segs [][2]v2.Vec
	bb   sdf.Box2
	init bool
}

func (s *segments) extend(p v2.Vec) error {
	if !finite(p) {
		return fmt.Errorf("non-finite coordinate (%v, %v)", p.X, p.Y)
	}
	if !s.init {
		s.bb = sdf.Box2{Min: p, Max: p}
		s.init = true
		return nil
	}
	s.bb.Min = v2.Vec{X: math.Min(s.bb.Min.X, p.X), Y: math.Min(s.bb.Min.Y, p.Y)}
	s.bb.Max = v2.Vec{X: math.Max(s.bb.Max.X, p.X), Y: math.Max(s.bb.Max.Y, p.Y)}
	return nil
}

func (s *segments) point(p v2.Vec) error {
	if err := s.extend(p); err != nil {
		return err
	}
	s.pts = append(s.pts, p)
	return nil
}

func (s *segments) path(vs []v2.Vec) error {
	switch len(vs) {
	case 0:
		return nil
	case 1:
		return s.point(vs[0])
	}
	for i, v := range vs {
		if err := s.extend(v); err != nil {
			return err
		}
		if i > 0 {
			s.segs = append(s.segs, [2]v2.Vec{vs[i-1], v})
		}
	}
	return nil
}

func (s *segments) Evaluate(p v2.Vec) float64 {
	d := math.Inf(1)
	for _, q := range s.pts {
		d = math.Min(d, math.Hypot(p.X-q.X, p.Y-q.Y))
	}
	for _, seg := range s.segs {
		d = math.Min(d, segmentDistance(p, seg[0], seg[1]))
	}
	return d
}

func (s *segments) BoundingBox() sdf.Box2 {
	return s.bb
}

func segmentDistance(p, a, b v2.Vec) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// grid is a regular lattice of cell centers.
type grid struct {
	lo   v2.Vec
	step v2.Vec
	n    int
}

func (k *SdfxKernel) newGrid(boxes ...sdf.Box2) (*grid, bool) {
	lo := v2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := v2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, bb := range boxes {
		if !finite(bb.Min) || !finite(bb.Max) || bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y {
			continue
		}
		lo = v2.Vec{X: math.Min(lo.X, bb.Min.X), Y: math.Min(lo.Y, bb.Min.Y)}
		hi = v2.Vec{X: math.Max(hi.X, bb.Max.X), Y: math.Max(hi.Y, bb.Max.Y)}
	}
	if lo.X > hi.X || lo.Y > hi.Y {
		return nil, false
	}
	size := math.Max(math.Max(hi.X-lo.X, hi.Y-lo.Y), 1e-9)
	margin := size / float64(k.cells)
	lo = v2.Vec{X: lo.X - margin, Y: lo.Y - margin}
	hi = v2.Vec{X: hi.X + margin, Y: hi.Y + margin}
	step := v2.Vec{
		X: math.Max(hi.X-lo.X, margin) / float64(k.cells),
		Y: math.Max(hi.Y-lo.Y, margin) / float64(k.cells),
	}
	return &grid{lo: lo, step: step, n: k.cells}, true
}

func (g *grid) each(fn func(p v2.Vec)) {
	for i := 0; i < g.n; i++ {
		for j := 0; j < g.n; j++ {
			fn(v2.Vec{X: g.lo.X + (float64(i)+0.5)*g.step.X, Y: g.lo.Y + (float64(j)+0.5)*g.step.Y})
		}
	}
}

// reach is how far from a point or line a sample may lie and still count
// as on it: every location is within half a cell diagonal of a sample.
func (g *grid) reach() float64 {
	return 0.75 * math.Max(g.step.X, g.step.Y)
}

// samples records which combinations of membership occurred on the grid.
type samples struct {
	emptyA, emptyB bool
	dimA, dimB     int

	both      bool // a sample in both
	onlyA     bool // a sample in A outside B
	onlyB     bool // a sample in B outside A
	interiors bool // a sample deep inside both
}

func (k *SdfxKernel) sample(a, b *solid) *samples {
	r := &samples{emptyA: a.empty(), emptyB: b.empty(), dimA: a.dim, dimB: b.dim}
	if r.emptyA || r.emptyB {
		r.onlyA, r.onlyB = !r.emptyA, !r.emptyB
		return r
	}
	g, ok := k.newGrid(a.s.BoundingBox(), b.s.BoundingBox())
	if !ok {
		return r
	}
	reach := g.reach()
	member := func(s *solid, p v2.Vec) (in, deep bool) {
		d := s.s.Evaluate(p)
		if s.dim == 2 {
			return d <= 0, d < -reach
		}
		return d <= reach, d <= reach
	}
	g.each(func(p v2.Vec) {
		inA, deepA := member(a, p)
		inB, deepB := member(b, p)
		switch {
		case inA && inB:
			r.both = true
		case inA:
			r.onlyA = true
		case inB:
			r.onlyB = true
		}
		if deepA && deepB {
			r.interiors = true
		}
	})
	return r
}

func (r *samples) nonEmpty() bool { return !r.emptyA && !r.emptyB }

var predicates = map[string]func(*samples) bool{
	kernel.SymIntersects: func(r *samples) bool { return r.nonEmpty() && r.both },
	kernel.SymDisjoint:   func(r *samples) bool { return !r.nonEmpty() || !r.both },
	kernel.SymTouches:    func(r *samples) bool { return r.nonEmpty() && r.both && !r.interiors },
	kernel.SymContains:   func(r *samples) bool { return r.nonEmpty() && r.both && !r.onlyB },
	kernel.SymCovers:     func(r *samples) bool { return r.nonEmpty() && r.both && !r.onlyB },
	kernel.SymWithin:     func(r *samples) bool { return r.nonEmpty() && r.both && !r.onlyA },
	kernel.SymCoveredBy:  func(r *samples) bool { return r.nonEmpty() && r.both && !r.onlyA },
	kernel.SymEquals: func(r *samples) bool {
		if r.emptyA && r.emptyB {
			return true
		}
		return r.nonEmpty() && !r.onlyA && !r.onlyB
	},
	kernel.SymOverlaps: func(r *samples) bool {
		return r.nonEmpty() && r.dimA == r.dimB && r.interiors && r.onlyA && r.onlyB
	},
	kernel.SymCrosses: func(r *samples) bool {
		if !r.nonEmpty() || !r.interiors {
			return false
		}
		switch {
		case r.dimA < r.dimB:
			return r.onlyA
		case r.dimA > r.dimB:
			return r.onlyB
		case r.dimA == 1:
			return r.onlyA && r.onlyB
		}
		return false
	},
}
