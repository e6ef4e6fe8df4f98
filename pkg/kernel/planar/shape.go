package planar

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"
)

type vec [2]float64

func (v vec) coord() geom.Coord { return geom.Coord{v[0], v[1]} }

// shape is a geometry flattened to XY parts. Rings are closed and every
// polygon lists its shell first.
type shape struct {
	points []vec
	lines  [][]vec
	polys  [][][]vec
	ends   map[vec]int
}

func decompose(g geom.T) *shape {
	s := &shape{ends: make(map[vec]int)}
	s.add(g)
	return s
}

func (s *shape) add(g geom.T) {
	switch g := g.(type) {
	case *geom.Point:
		if !g.Empty() {
			s.points = append(s.points, vec{g.X(), g.Y()})
		}
	case *geom.MultiPoint:
		for i := 0; i < g.NumPoints(); i++ {
			s.add(g.Point(i))
		}
	case *geom.LineString:
		s.addLine(toVecs(g.FlatCoords(), g.Stride()))
	case *geom.LinearRing:
		s.addLine(toVecs(g.FlatCoords(), g.Stride()))
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			s.add(g.LineString(i))
		}
	case *geom.Polygon:
		var rings [][]vec
		for i := 0; i < g.NumLinearRings(); i++ {
			r := g.LinearRing(i)
			rings = append(rings, closeRing(toVecs(r.FlatCoords(), r.Stride())))
		}
		if len(rings) > 0 && len(rings[0]) > 0 {
			s.polys = append(s.polys, rings)
		}
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			s.add(g.Polygon(i))
		}
	case *geom.GeometryCollection:
		for _, c := range g.Geoms() {
			s.add(c)
		}
	}
}

func (s *shape) addLine(vs []vec) {
	switch len(vs) {
	case 0:
		return
	case 1:
		s.points = append(s.points, vs[0])
		return
	}
	s.lines = append(s.lines, vs)
	s.ends[vs[0]]++
	s.ends[vs[len(vs)-1]]++
}

func toVecs(flat []float64, stride int) []vec {
	if stride < 2 {
		return nil
	}
	out := make([]vec, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, vec{flat[i], flat[i+1]})
	}
	return out
}

func closeRing(vs []vec) []vec {
	if len(vs) > 0 && vs[0] != vs[len(vs)-1] {
		vs = append(vs, vs[0])
	}
	return vs
}

func flatten(vs []vec) []float64 {
	out := make([]float64, 0, 2*len(vs))
	for _, v := range vs {
		out = append(out, v[0], v[1])
	}
	return out
}

func (s *shape) empty() bool {
	return len(s.points) == 0 && len(s.lines) == 0 && len(s.polys) == 0
}

// dim is the topological dimension, -1 when empty.
func (s *shape) dim() int {
	switch {
	case len(s.polys) > 0:
		return 2
	case len(s.lines) > 0:
		return 1
	case len(s.points) > 0:
		return 0
	}
	return -1
}

func (s *shape) puntal() bool {
	return len(s.points) > 0 && len(s.lines) == 0 && len(s.polys) == 0
}

func (s *shape) lineal() bool {
	return len(s.lines) > 0 && len(s.points) == 0 && len(s.polys) == 0
}

func (s *shape) areal() bool {
	return len(s.polys) > 0 && len(s.points) == 0 && len(s.lines) == 0
}

func (s *shape) finite() bool {
	ok := func(v vec) bool { return finite(v[0]) && finite(v[1]) }
	for _, p := range s.points {
		if !ok(p) {
			return false
		}
	}
	for _, l := range s.lines {
		for _, p := range l {
			if !ok(p) {
				return false
			}
		}
	}
	for _, poly := range s.polys {
		for _, r := range poly {
			for _, p := range r {
				if !ok(p) {
					return false
				}
			}
		}
	}
	return true
}

// vertices returns every coordinate of the shape.
func (s *shape) vertices() []vec {
	out := append([]vec(nil), s.points...)
	for _, l := range s.lines {
		out = append(out, l...)
	}
	for _, poly := range s.polys {
		for _, r := range poly {
			out = append(out, r...)
		}
	}
	return out
}

// lineLoc is the location of p on a lineal part it is known to lie on.
func (s *shape) lineLoc(p vec) location.Type {
	if s.ends[p]%2 == 1 {
		return location.Boundary
	}
	return location.Interior
}

// locate returns where p lies relative to the shape. areal reports that
// the best location came from a polygon.
func (s *shape) locate(p vec) (loc location.Type, areal bool) {
	loc = location.Exterior
	c := p.coord()
	for _, poly := range s.polys {
		switch locateInPolygon(c, poly) {
		case location.Interior:
			return location.Interior, true
		case location.Boundary:
			loc, areal = location.Boundary, true
		}
	}
	strategy := lineintersector.RobustLineIntersector{}
	for _, l := range s.lines {
		for i := 1; i < len(l); i++ {
			if !lineintersector.PointIntersectsLine(strategy, c, l[i-1].coord(), l[i].coord()) {
				continue
			}
			if s.lineLoc(p) == location.Interior {
				return location.Interior, false
			}
			if loc == location.Exterior {
				loc, areal = location.Boundary, false
			}
		}
	}
	for _, q := range s.points {
		if q == p {
			return location.Interior, false
		}
	}
	return loc, areal
}

func locateInPolygon(c geom.Coord, rings [][]vec) location.Type {
	if len(rings[0]) < 4 {
		return location.Exterior
	}
	switch xy.LocatePointInRing(geom.XY, c, flatten(rings[0])) {
	case location.Exterior:
		return location.Exterior
	case location.Boundary:
		return location.Boundary
	}
	for _, hole := range rings[1:] {
		if len(hole) < 4 {
			continue
		}
		switch xy.LocatePointInRing(geom.XY, c, flatten(hole)) {
		case location.Interior:
			return location.Exterior
		case location.Boundary:
			return location.Boundary
		}
	}
	return location.Interior
}

// better orders locations Interior, Boundary, Exterior.
func better(a location.Type, aa bool, b location.Type, ba bool) (location.Type, bool) {
	rank := func(l location.Type) int {
		switch l {
		case location.Interior:
			return 2
		case location.Boundary:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) || (rank(b) == rank(a) && ba && !aa) {
		return b, ba
	}
	return a, aa
}

// interiorPoint finds a point strictly inside the polygon formed by rings
// by scanning a horizontal line through the lowest band of vertices.
func interiorPoint(rings [][]vec) (vec, bool) {
	var ys []float64
	for _, r := range rings {
		for _, v := range r {
			ys = append(ys, v[1])
		}
	}
	sort.Float64s(ys)
	lo := math.NaN()
	hi := math.NaN()
	for _, y := range ys {
		if math.IsNaN(lo) {
			lo = y
			continue
		}
		if y > lo {
			hi = y
			break
		}
	}
	if math.IsNaN(hi) {
		return vec{}, false
	}
	y := lo + (hi-lo)/2
	var xs []float64
	for _, r := range rings {
		for i := 1; i < len(r); i++ {
			a, b := r[i-1], r[i]
			if (a[1] > y) == (b[1] > y) {
				continue
			}
			xs = append(xs, a[0]+(y-a[1])*(b[0]-a[0])/(b[1]-a[1]))
		}
	}
	sort.Float64s(xs)
	best, width := vec{}, 0.0
	for i := 0; i+1 < len(xs); i += 2 {
		if w := xs[i+1] - xs[i]; w > width {
			best, width = vec{xs[i] + w/2, y}, w
		}
	}
	return best, width > 0
}
