package planar

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"

	"github.com/chazu/geoarray/pkg/kernel"
)

// maxCells bounds the grid used for rectilinear overlays.
const maxCells = 1 << 20

var predicates = map[string]func(*relation) bool{
	kernel.SymIntersects: (*relation).Intersects,
	kernel.SymDisjoint:   (*relation).Disjoint,
	kernel.SymTouches:    (*relation).Touches,
	kernel.SymCrosses:    (*relation).Crosses,
	kernel.SymWithin:     (*relation).Within,
	kernel.SymContains:   (*relation).Contains,
	kernel.SymOverlaps:   (*relation).Overlaps,
	kernel.SymEquals:     (*relation).Equals,
	kernel.SymCovers:     (*relation).Covers,
	kernel.SymCoveredBy:  (*relation).CoveredBy,
}

var constructors = map[string]func(a, b geom.T) geom.T{
	kernel.SymIntersection:  intersection,
	kernel.SymDifference:    difference,
	kernel.SymSymDifference: symDifference,
	kernel.SymUnion:         union,
	kernel.SymSharedPaths:   sharedPaths,
}

type setOp func(inA, inB bool) bool

func intersection(a, b geom.T) geom.T {
	sa, sb := decompose(a), decompose(b)
	switch {
	case !sa.finite() || !sb.finite():
		return nil
	case sa.empty() || sb.empty():
		return geom.NewGeometryCollection()
	case sa.puntal():
		return makePoints(filterPoints(sa.points, sb, true))
	case sb.puntal():
		return makePoints(filterPoints(sb.points, sa, true))
	}
	res := overlay(sa, sb, func(inA, inB bool) bool { return inA && inB })
	if res == nil {
		return nil
	}
	if res.Empty() && relate(sa, sb).Intersects() {
		// Lower-dimensional contact is not represented.
		return nil
	}
	return res
}

func union(a, b geom.T) geom.T {
	sa, sb := decompose(a), decompose(b)
	switch {
	case !sa.finite() || !sb.finite():
		return nil
	case sa.empty():
		return clone(b)
	case sb.empty():
		return clone(a)
	case sa.puntal() && sb.puntal():
		return makePoints(append(append([]vec(nil), sa.points...), sb.points...))
	case sa.puntal():
		return withPoints(b, filterPoints(sa.points, sb, false))
	case sb.puntal():
		return withPoints(a, filterPoints(sb.points, sa, false))
	}
	return overlay(sa, sb, func(inA, inB bool) bool { return inA || inB })
}

func difference(a, b geom.T) geom.T {
	sa, sb := decompose(a), decompose(b)
	switch {
	case !sa.finite() || !sb.finite():
		return nil
	case sa.empty() || sb.empty():
		return clone(a)
	case sa.puntal():
		return makePoints(filterPoints(sa.points, sb, false))
	case sb.puntal():
		return clone(a)
	}
	return overlay(sa, sb, func(inA, inB bool) bool { return inA && !inB })
}

func symDifference(a, b geom.T) geom.T {
	sa, sb := decompose(a), decompose(b)
	switch {
	case !sa.finite() || !sb.finite():
		return nil
	case sa.empty():
		return clone(b)
	case sb.empty():
		return clone(a)
	case sa.puntal() && sb.puntal():
		return makePoints(append(filterPoints(sa.points, sb, false), filterPoints(sb.points, sa, false)...))
	case sa.puntal():
		return withPoints(b, filterPoints(sa.points, sb, false))
	case sb.puntal():
		return withPoints(a, filterPoints(sb.points, sa, false))
	}
	return overlay(sa, sb, func(inA, inB bool) bool { return inA != inB })
}

// filterPoints keeps the points that meet other (or miss it when inside
// is false), without duplicates.
func filterPoints(pts []vec, other *shape, inside bool) []vec {
	var out []vec
	for _, p := range pts {
		loc, _ := other.locate(p)
		if (loc != location.Exterior) == inside {
			out = append(out, p)
		}
	}
	return out
}

func withPoints(g geom.T, pts []vec) geom.T {
	if len(pts) == 0 {
		return clone(g)
	}
	return geom.NewGeometryCollection().MustPush(clone(g), makePoints(pts))
}

func makePoints(pts []vec) geom.T {
	seen := make(map[vec]bool, len(pts))
	var uniq []vec
	for _, p := range pts {
		if !seen[p] {
			seen[p] = true
			uniq = append(uniq, p)
		}
	}
	switch len(uniq) {
	case 0:
		return geom.NewPointEmpty(geom.XY)
	case 1:
		return geom.NewPointFlat(geom.XY, []float64{uniq[0][0], uniq[0][1]})
	}
	return geom.NewMultiPointFlat(geom.XY, flatten(uniq))
}

// rectilinear reports whether every edge of s is parallel to an axis.
func (s *shape) rectilinear() bool {
	if !s.areal() {
		return false
	}
	for _, poly := range s.polys {
		for _, r := range poly {
			if len(r) < 4 {
				return false
			}
			for i := 1; i < len(r); i++ {
				if r[i][0] != r[i-1][0] && r[i][1] != r[i-1][1] {
					return false
				}
			}
		}
	}
	return true
}

// overlay combines two rectilinear areal shapes cell by cell on the grid
// spanned by their coordinates and traces the selected cells back into
// polygons. It returns nil for any other input.
func overlay(sa, sb *shape, op setOp) geom.T {
	if !sa.rectilinear() || !sb.rectilinear() {
		return nil
	}
	xs := axis(sa, sb, 0)
	ys := axis(sa, sb, 1)
	if len(xs) < 2 || len(ys) < 2 || (len(xs)-1)*(len(ys)-1) > maxCells {
		return nil
	}
	g := &grid{xs: xs, ys: ys, sel: make([][]bool, len(xs)-1)}
	for i := range g.sel {
		g.sel[i] = make([]bool, len(ys)-1)
		for j := range g.sel[i] {
			c := vec{(xs[i] + xs[i+1]) / 2, (ys[j] + ys[j+1]) / 2}
			la, _ := sa.locate(c)
			lb, _ := sb.locate(c)
			g.sel[i][j] = op(la == location.Interior, lb == location.Interior)
		}
	}
	return makePolygons(g.trace())
}

func axis(sa, sb *shape, d int) []float64 {
	var vs []float64
	for _, s := range []*shape{sa, sb} {
		for _, v := range s.vertices() {
			vs = append(vs, v[d])
		}
	}
	sort.Float64s(vs)
	out := vs[:0]
	for i, v := range vs {
		if i == 0 || v != vs[i-1] {
			out = append(out, v)
		}
	}
	return out
}

type grid struct {
	xs, ys []float64
	sel    [][]bool
}

type node struct{ i, j int }

type edge struct{ from, to node }

func (g *grid) on(i, j int) bool {
	return i >= 0 && j >= 0 && i < len(g.sel) && j < len(g.sel[i]) && g.sel[i][j]
}

// trace returns the boundary of the selected cells as polygons with the
// region on the left of every shell.
func (g *grid) trace() [][][]vec {
	var edges []edge
	out := make(map[node][]int)
	addEdge := func(from, to node) {
		out[from] = append(out[from], len(edges))
		edges = append(edges, edge{from, to})
	}
	for i := range g.sel {
		for j := range g.sel[i] {
			if !g.sel[i][j] {
				continue
			}
			if !g.on(i, j-1) {
				addEdge(node{i, j}, node{i + 1, j})
			}
			if !g.on(i+1, j) {
				addEdge(node{i + 1, j}, node{i + 1, j + 1})
			}
			if !g.on(i, j+1) {
				addEdge(node{i + 1, j + 1}, node{i, j + 1})
			}
			if !g.on(i-1, j) {
				addEdge(node{i, j + 1}, node{i, j})
			}
		}
	}

	used := make([]bool, len(edges))
	var shells, holes [][]vec
	for start := range edges {
		if used[start] {
			continue
		}
		var ring []node
		cur := start
		for !used[cur] {
			used[cur] = true
			e := edges[cur]
			ring = append(ring, e.from)
			cur = nextEdge(edges, out[e.to], e)
		}
		vs := g.coords(simplify(ring))
		if signedArea(vs) > 0 {
			shells = append(shells, vs)
		} else {
			holes = append(holes, vs)
		}
	}

	polys := make([][][]vec, len(shells))
	for i, s := range shells {
		polys[i] = [][]vec{s}
	}
	for _, h := range holes {
		p, ok := interiorPoint([][]vec{h})
		if !ok {
			continue
		}
		// Shells inside the hole are smaller than it.
		owner, best, floor := -1, math.Inf(1), -signedArea(h)
		for i, s := range shells {
			a := signedArea(s)
			if a <= floor || xy.LocatePointInRing(geom.XY, p.coord(), flatten(s)) != location.Interior {
				continue
			}
			if a < best {
				owner, best = i, a
			}
		}
		if owner >= 0 {
			polys[owner] = append(polys[owner], h)
		}
	}
	return polys
}

// nextEdge follows the sharpest left turn, which keeps rings that touch at
// a corner apart.
func nextEdge(edges []edge, candidates []int, in edge) int {
	dx, dy := in.to.i-in.from.i, in.to.j-in.from.j
	best, rank := candidates[0], 3
	for _, c := range candidates {
		e := edges[c]
		cx, cy := e.to.i-e.from.i, e.to.j-e.from.j
		r := 2
		switch cross := dx*cy - dy*cx; {
		case cross > 0:
			r = 0
		case cross == 0 && dx*cx+dy*cy > 0:
			r = 1
		}
		if r < rank {
			best, rank = c, r
		}
	}
	return best
}

// simplify drops nodes where the ring keeps its direction.
func simplify(ring []node) []node {
	n := len(ring)
	var out []node
	for k := range ring {
		prev, cur, next := ring[(k+n-1)%n], ring[k], ring[(k+1)%n]
		if (cur.i-prev.i)*(next.j-cur.j) != (cur.j-prev.j)*(next.i-cur.i) {
			out = append(out, cur)
		}
	}
	return out
}

func (g *grid) coords(ring []node) []vec {
	vs := make([]vec, 0, len(ring)+1)
	for _, n := range ring {
		vs = append(vs, vec{g.xs[n.i], g.ys[n.j]})
	}
	return closeRing(vs)
}

func signedArea(vs []vec) float64 {
	var a float64
	for i := 1; i < len(vs); i++ {
		a += vs[i-1][0]*vs[i][1] - vs[i][0]*vs[i-1][1]
	}
	return a / 2
}

func makePolygons(polys [][][]vec) geom.T {
	build := func(rings [][]vec) ([]float64, []int) {
		var flat []float64
		var ends []int
		for _, r := range rings {
			flat = append(flat, flatten(r)...)
			ends = append(ends, len(flat))
		}
		return flat, ends
	}
	switch len(polys) {
	case 0:
		return geom.NewPolygon(geom.XY)
	case 1:
		flat, ends := build(polys[0])
		return geom.NewPolygonFlat(geom.XY, flat, ends)
	}
	var flat []float64
	var endss [][]int
	for _, p := range polys {
		f, ends := build(p)
		for k := range ends {
			ends[k] += len(flat)
		}
		flat = append(flat, f...)
		endss = append(endss, ends)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

// sharedPaths returns the segments common to two lineal geometries as a
// collection of two multilinestrings: paths running the same way in both,
// then paths running opposite ways. Paths follow the direction of a.
func sharedPaths(a, b geom.T) geom.T {
	sa, sb := decompose(a), decompose(b)
	if !sa.finite() || !sb.finite() || !sa.lineal() || !sb.lineal() {
		return nil
	}
	var forward, backward [][]vec
	strategy := lineintersector.RobustLineIntersector{}
	segsB := sb.segments()
	for _, sega := range sa.segments() {
		var hits []sharedRun
		for _, segb := range segsB {
			res := lineintersector.LineIntersectsLine(strategy, sega.a.coord(), sega.b.coord(), segb.a.coord(), segb.b.coord())
			if res.Type() != lineintersection.CollinearIntersection {
				continue
			}
			pts := res.Intersection()
			if len(pts) < 2 {
				continue
			}
			p, q := vec{pts[0][0], pts[0][1]}, vec{pts[1][0], pts[1][1]}
			if p == q {
				continue
			}
			if sega.param(p) > sega.param(q) {
				p, q = q, p
			}
			dot := (sega.b[0]-sega.a[0])*(segb.b[0]-segb.a[0]) + (sega.b[1]-sega.a[1])*(segb.b[1]-segb.a[1])
			hits = append(hits, sharedRun{t: sega.param(p), p: p, q: q, same: dot > 0})
		}
		sort.Slice(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
		for _, h := range hits {
			if h.same {
				forward = extendPath(forward, h.p, h.q)
			} else {
				backward = extendPath(backward, h.p, h.q)
			}
		}
	}
	return geom.NewGeometryCollection().MustPush(makeLines(forward), makeLines(backward))
}

type sharedRun struct {
	t    float64
	p, q vec
	same bool
}

func extendPath(paths [][]vec, p, q vec) [][]vec {
	if n := len(paths); n > 0 {
		last := paths[n-1]
		if last[len(last)-1] == p {
			paths[n-1] = append(last, q)
			return paths
		}
	}
	return append(paths, []vec{p, q})
}

func makeLines(paths [][]vec) *geom.MultiLineString {
	if len(paths) == 0 {
		return geom.NewMultiLineString(geom.XY)
	}
	var flat []float64
	var ends []int
	for _, p := range paths {
		flat = append(flat, flatten(p)...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(geom.XY, flat, ends)
}
