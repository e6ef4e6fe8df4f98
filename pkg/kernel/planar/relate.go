package planar

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/twpayne/go-geom/xy/lineintersection"
	"github.com/twpayne/go-geom/xy/lineintersector"
	"github.com/twpayne/go-geom/xy/location"
)

// relation summarizes how two shapes meet, sampled at every vertex, every
// crossing, the midpoint of every split edge and one interior point per
// polygon and hole. Between consecutive samples the location relative to
// both shapes cannot change, so the summary is exact.
type relation struct {
	emptyA, emptyB bool
	dimA, dimB     int

	intersects  bool // closures meet
	interiors   bool // interiors meet
	aOut        bool // some point of A lies outside B
	bOut        bool // some point of B lies outside A
	lineOverlap bool // lineal parts share a segment
}

type segment struct {
	a, b   vec
	ring   bool
	cuts   []float64
	shared []span
}

// span is a stretch of a segment that also lies on a segment of the other
// shape, with the location of that stretch in the other shape.
type span struct {
	t0, t1 float64
	loc    location.Type
	areal  bool
}

func (s *segment) Bounds() rtreego.Rect {
	pad := 1e-9 * (1 + math.Max(math.Max(math.Abs(s.a[0]), math.Abs(s.b[0])), math.Max(math.Abs(s.a[1]), math.Abs(s.b[1]))))
	lo := rtreego.Point{math.Min(s.a[0], s.b[0]) - pad, math.Min(s.a[1], s.b[1]) - pad}
	hi := rtreego.Point{math.Max(s.a[0], s.b[0]) + pad, math.Max(s.a[1], s.b[1]) + pad}
	r, _ := rtreego.NewRectFromPoints(lo, hi)
	return r
}

// param projects p onto the segment's dominant axis.
func (s *segment) param(p vec) float64 {
	dx, dy := s.b[0]-s.a[0], s.b[1]-s.a[1]
	if math.Abs(dx) >= math.Abs(dy) {
		if dx == 0 {
			return 0
		}
		return (p[0] - s.a[0]) / dx
	}
	return (p[1] - s.a[1]) / dy
}

func (s *segment) at(t float64) vec {
	return vec{s.a[0] + t*(s.b[0]-s.a[0]), s.a[1] + t*(s.b[1]-s.a[1])}
}

// segments lists the edges of the lineal and polygonal parts.
func (s *shape) segments() []*segment {
	var out []*segment
	add := func(vs []vec, ring bool) {
		for i := 1; i < len(vs); i++ {
			if vs[i-1] == vs[i] {
				continue
			}
			out = append(out, &segment{a: vs[i-1], b: vs[i], ring: ring})
		}
	}
	for _, l := range s.lines {
		add(l, false)
	}
	for _, poly := range s.polys {
		for _, r := range poly {
			add(r, true)
		}
	}
	return out
}

// locOn is the location in s of a point known to lie on seg at t.
func (s *shape) locOn(seg *segment, p vec, t float64) (location.Type, bool) {
	if seg.ring {
		return location.Boundary, true
	}
	if t <= 0 || t >= 1 {
		return s.lineLoc(p), false
	}
	return location.Interior, false
}

// refine combines a known location of p with the located one.
func (s *shape) refine(p vec, known location.Type, areal bool) (location.Type, bool) {
	l, ar := s.locate(p)
	return better(known, areal, l, ar)
}

func relate(sa, sb *shape) *relation {
	r := &relation{
		emptyA: sa.empty(),
		emptyB: sb.empty(),
		dimA:   sa.dim(),
		dimB:   sb.dim(),
	}
	if r.emptyA || r.emptyB {
		r.aOut = !r.emptyA
		r.bOut = !r.emptyB
		return r
	}
	segsA, segsB := sa.segments(), sb.segments()
	r.crossings(sa, sb, segsA, segsB)

	sample := func(p vec, la location.Type, aa bool, lb location.Type, ab bool) {
		la, aa = sa.refine(p, la, aa)
		lb, ab = sb.refine(p, lb, ab)
		r.add(la, aa, lb, ab)
	}
	none := location.Exterior

	for _, p := range sa.points {
		sample(p, location.Interior, false, none, false)
	}
	for _, p := range sb.points {
		sample(p, none, false, location.Interior, false)
	}
	for _, seg := range segsA {
		l, ar := sa.locOn(seg, seg.a, 0)
		sample(seg.a, l, ar, none, false)
		l, ar = sa.locOn(seg, seg.b, 1)
		sample(seg.b, l, ar, none, false)
	}
	for _, seg := range segsB {
		l, ar := sb.locOn(seg, seg.a, 0)
		sample(seg.a, none, false, l, ar)
		l, ar = sb.locOn(seg, seg.b, 1)
		sample(seg.b, none, false, l, ar)
	}
	for _, seg := range segsA {
		own, ownAreal := sa.locOn(seg, vec{}, 0.5)
		for _, piece := range seg.pieces() {
			t := (piece[0] + piece[1]) / 2
			lb, ab := seg.sharedLoc(t)
			sample(seg.at(t), own, ownAreal, lb, ab)
		}
	}
	for _, seg := range segsB {
		own, ownAreal := sb.locOn(seg, vec{}, 0.5)
		for _, piece := range seg.pieces() {
			t := (piece[0] + piece[1]) / 2
			la, aa := seg.sharedLoc(t)
			sample(seg.at(t), la, aa, own, ownAreal)
		}
	}
	for _, poly := range sa.polys {
		if p, ok := interiorPoint(poly); ok {
			sample(p, location.Interior, true, none, false)
		}
		for _, hole := range poly[1:] {
			if p, ok := interiorPoint([][]vec{hole}); ok {
				sample(p, none, false, none, false)
			}
		}
	}
	for _, poly := range sb.polys {
		if p, ok := interiorPoint(poly); ok {
			sample(p, none, false, location.Interior, true)
		}
		for _, hole := range poly[1:] {
			if p, ok := interiorPoint([][]vec{hole}); ok {
				sample(p, none, false, none, false)
			}
		}
	}
	return r
}

// crossings intersects every segment of A with the segments of B whose
// bounds meet it, recording cut points on both and sampling each crossing.
func (r *relation) crossings(sa, sb *shape, segsA, segsB []*segment) {
	if len(segsA) == 0 || len(segsB) == 0 {
		return
	}
	objs := make([]rtreego.Spatial, len(segsB))
	for i, s := range segsB {
		objs[i] = s
	}
	tree := rtreego.NewTree(2, 4, 16, objs...)
	strategy := lineintersector.RobustLineIntersector{}
	for _, sega := range segsA {
		for _, hit := range tree.SearchIntersect(sega.Bounds()) {
			segb := hit.(*segment)
			res := lineintersector.LineIntersectsLine(strategy, sega.a.coord(), sega.b.coord(), segb.a.coord(), segb.b.coord())
			if !res.HasIntersection() {
				continue
			}
			pts := res.Intersection()
			for _, c := range pts {
				p := vec{c[0], c[1]}
				ta, tb := sega.param(p), segb.param(p)
				sega.cut(ta)
				segb.cut(tb)
				la, aa := sa.locOn(sega, p, ta)
				lb, ab := sb.locOn(segb, p, tb)
				la, aa = sa.refine(p, la, aa)
				lb, ab = sb.refine(p, lb, ab)
				r.add(la, aa, lb, ab)
			}
			if res.Type() != lineintersection.CollinearIntersection || len(pts) < 2 {
				continue
			}
			p, q := vec{pts[0][0], pts[0][1]}, vec{pts[1][0], pts[1][1]}
			if p == q {
				continue
			}
			if !sega.ring && !segb.ring {
				r.lineOverlap = true
			}
			lb, ab := sb.locOn(segb, vec{}, 0.5)
			sega.share(sega.param(p), sega.param(q), lb, ab)
			la, aa := sa.locOn(sega, vec{}, 0.5)
			segb.share(segb.param(p), segb.param(q), la, aa)
		}
	}
}

func (s *segment) cut(t float64) {
	if t > 0 && t < 1 {
		s.cuts = append(s.cuts, t)
	}
}

func (s *segment) share(t0, t1 float64, loc location.Type, areal bool) {
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	s.shared = append(s.shared, span{t0: t0, t1: t1, loc: loc, areal: areal})
}

func (s *segment) sharedLoc(t float64) (location.Type, bool) {
	loc, areal := location.Exterior, false
	for _, sp := range s.shared {
		if t >= sp.t0 && t <= sp.t1 {
			loc, areal = better(loc, areal, sp.loc, sp.areal)
		}
	}
	return loc, areal
}

// pieces splits [0,1] at the recorded cuts.
func (s *segment) pieces() [][2]float64 {
	ts := append([]float64{0, 1}, s.cuts...)
	sort.Float64s(ts)
	var out [][2]float64
	for i := 1; i < len(ts); i++ {
		if ts[i] > ts[i-1] {
			out = append(out, [2]float64{ts[i-1], ts[i]})
		}
	}
	return out
}

func (r *relation) add(la location.Type, aa bool, lb location.Type, ab bool) {
	inA, inB := la != location.Exterior, lb != location.Exterior
	if inA && inB {
		r.intersects = true
	}
	switch {
	case la == location.Interior && lb == location.Interior:
		r.interiors = true
	case la == location.Boundary && lb == location.Interior && ab:
		r.interiors = true
	case la == location.Interior && aa && lb == location.Boundary:
		r.interiors = true
	}
	if inA && !inB {
		r.aOut = true
	}
	if inB && !inA {
		r.bOut = true
	}
}

func (r *relation) nonEmpty() bool { return !r.emptyA && !r.emptyB }

func (r *relation) Intersects() bool { return r.nonEmpty() && r.intersects }

func (r *relation) Disjoint() bool { return !r.Intersects() }

func (r *relation) Touches() bool { return r.Intersects() && !r.interiors }

func (r *relation) Covers() bool { return r.nonEmpty() && !r.bOut }

func (r *relation) CoveredBy() bool { return r.nonEmpty() && !r.aOut }

func (r *relation) Contains() bool { return r.Covers() && r.interiors }

func (r *relation) Within() bool { return r.CoveredBy() && r.interiors }

func (r *relation) Equals() bool {
	if r.emptyA && r.emptyB {
		return true
	}
	return r.nonEmpty() && !r.aOut && !r.bOut
}

func (r *relation) Crosses() bool {
	if !r.nonEmpty() || !r.interiors {
		return false
	}
	switch {
	case r.dimA < r.dimB:
		return r.aOut
	case r.dimA > r.dimB:
		return r.bOut
	case r.dimA == 1:
		return !r.lineOverlap
	}
	return false
}

func (r *relation) Overlaps() bool {
	if !r.nonEmpty() || r.dimA != r.dimB || !r.interiors || !r.aOut || !r.bOut {
		return false
	}
	if r.dimA == 1 {
		return r.lineOverlap
	}
	return true
}
