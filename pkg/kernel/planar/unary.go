package planar

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

func envelope(g geom.T) geom.T {
	s := decompose(g)
	if s.empty() {
		return geom.NewPolygon(geom.XY)
	}
	vs := s.vertices()
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = vec{math.Min(lo[0], v[0]), math.Min(lo[1], v[1])}
		hi = vec{math.Max(hi[0], v[0]), math.Max(hi[1], v[1])}
	}
	b := geom.NewBounds(geom.XY).Set(lo[0], lo[1], hi[0], hi[1])
	if b.Min(0) == b.Max(0) && b.Min(1) == b.Max(1) {
		return geom.NewPointFlat(geom.XY, []float64{b.Min(0), b.Min(1)})
	}
	return b.Polygon()
}

func convexHull(g geom.T) geom.T {
	s := decompose(g)
	if !s.finite() {
		return nil
	}
	seen := make(map[vec]bool)
	var vs []vec
	for _, v := range s.vertices() {
		if !seen[v] {
			seen[v] = true
			vs = append(vs, v)
		}
	}
	switch len(vs) {
	case 0:
		return geom.NewGeometryCollection()
	case 1:
		return geom.NewPointFlat(geom.XY, []float64{vs[0][0], vs[0][1]})
	}
	return xy.ConvexHullFlat(geom.XY, flatten(vs))
}

func centroid(g geom.T) geom.T {
	if g.Empty() {
		return geom.NewPointEmpty(geom.XY)
	}
	if _, ok := g.(*geom.GeometryCollection); ok {
		return nil
	}
	c, err := xy.Centroid(g)
	if err != nil || len(c) < 2 || !finite(c[0]) || !finite(c[1]) {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{c[0], c[1]})
}
