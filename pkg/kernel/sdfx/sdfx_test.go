package sdfx

import (
	"math"
	"strings"
	"testing"

	"github.com/chazu/geoarray/pkg/kernel"
)

const (
	squareA = "POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))"
	squareB = "POLYGON ((2 2, 6 2, 6 6, 2 6, 2 2))"
	farAway = "POLYGON ((10 10, 11 10, 11 11, 10 11, 10 10))"
	inner   = "POLYGON ((1 1, 3 1, 3 3, 1 3, 1 1))"
)

func read(t *testing.T, k *SdfxKernel, s string) kernel.Geometry {
	t.Helper()
	p := k.ReadWKT(0, s)
	if p == 0 {
		t.Fatalf("ReadWKT(%q) returned null", s)
	}
	return p
}

func predicate(t *testing.T, k *SdfxKernel, sym, a, b string) byte {
	t.Helper()
	fn, ok := k.Symbol(sym)
	if !ok {
		t.Fatalf("symbol %s not found", sym)
	}
	return fn.(kernel.PredicateFunc)(0, read(t, k, a), read(t, k, b))
}

func construct(t *testing.T, k *SdfxKernel, sym string, a, b kernel.Geometry) kernel.Geometry {
	t.Helper()
	fn, ok := k.Symbol(sym)
	if !ok {
		t.Fatalf("symbol %s not found", sym)
	}
	return fn.(kernel.ConstructorFunc)(0, a, b)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		sym  string
		a, b string
		want byte
	}{
		{kernel.SymIntersects, squareA, squareB, 1},
		{kernel.SymOverlaps, squareA, squareB, 1},
		{kernel.SymContains, squareA, squareB, 0},
		{kernel.SymDisjoint, squareA, farAway, 1},
		{kernel.SymIntersects, squareA, farAway, 0},
		{kernel.SymContains, squareA, inner, 1},
		{kernel.SymWithin, inner, squareA, 1},
		{kernel.SymWithin, squareA, inner, 0},
		{kernel.SymContains, squareA, "POINT (1 1)", 1},
		{kernel.SymDisjoint, squareA, "POINT (8 8)", 1},
		{kernel.SymCrosses, "LINESTRING (-1 2, 5 2)", squareA, 1},
		{kernel.SymEquals, squareA, "POLYGON ((0 0, 0 4, 4 4, 4 0, 0 0))", 1},
		{kernel.SymEquals, squareA, squareB, 0},
		{kernel.SymDisjoint, "POINT EMPTY", squareA, 1},
		{kernel.SymEquals, "POINT EMPTY", "POLYGON EMPTY", 1},
	}
	k := New()
	for _, tt := range tests {
		if got := predicate(t, k, tt.sym, tt.a, tt.b); got != tt.want {
			t.Errorf("%s(%s, %s) = %d, want %d", tt.sym, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestIntersection(t *testing.T) {
	k := New()
	p := construct(t, k, kernel.SymIntersection, read(t, k, squareA), read(t, k, squareB))
	if p == 0 {
		t.Fatal("intersection returned null")
	}
	if got := k.TypeID(0, p); got != int(kernel.Polygon) {
		t.Fatalf("TypeID = %d, want polygon", got)
	}
	if _, ok := k.WriteWKT(0, p); ok {
		t.Fatal("CSG result should have no WKT form")
	}

	env, _ := k.Symbol(kernel.SymEnvelope)
	e := env.(kernel.UnaryConstructorFunc)(0, p)
	s, ok := k.table.Get(e)
	if !ok {
		t.Fatal("envelope returned null")
	}
	bb := s.vector.Bounds()
	const tol = 0.25
	expectMin := [2]float64{2, 2}
	expectMax := [2]float64{4, 4}
	for i := 0; i < 2; i++ {
		if math.Abs(bb.Min(i)-expectMin[i]) > tol {
			t.Errorf("min[%d] = %f, expected ~%f", i, bb.Min(i), expectMin[i])
		}
		if math.Abs(bb.Max(i)-expectMax[i]) > tol {
			t.Errorf("max[%d] = %f, expected ~%f", i, bb.Max(i), expectMax[i])
		}
	}
}

func TestEmptyIntersection(t *testing.T) {
	k := New()
	p := construct(t, k, kernel.SymIntersection, read(t, k, squareA), read(t, k, farAway))
	if p == 0 {
		t.Fatal("disjoint intersection returned null")
	}
	isEmpty, _ := k.Symbol(kernel.SymIsEmpty)
	if got := isEmpty.(kernel.UnaryPredicateFunc)(0, p); got != kernel.PredicateTrue {
		t.Fatalf("is_empty = %d, want 1", got)
	}
}

func TestUnionAndDifference(t *testing.T) {
	k := New()
	a, b := read(t, k, squareA), read(t, k, squareB)

	u := construct(t, k, kernel.SymUnion, a, b)
	contains, _ := k.Symbol(kernel.SymContains)
	if got := contains.(kernel.PredicateFunc)(0, u, b); got != kernel.PredicateTrue {
		t.Fatalf("union does not contain its operand: %d", got)
	}

	d := construct(t, k, kernel.SymDifference, a, b)
	intersects, _ := k.Symbol(kernel.SymIntersects)
	if got := intersects.(kernel.PredicateFunc)(0, d, read(t, k, "POINT (3 3)")); got != kernel.PredicateFalse {
		t.Fatalf("difference still covers the removed corner: %d", got)
	}
	if got := intersects.(kernel.PredicateFunc)(0, d, read(t, k, "POINT (1 1)")); got != kernel.PredicateTrue {
		t.Fatalf("difference lost the kept corner: %d", got)
	}

	x := construct(t, k, kernel.SymSymDifference, a, b)
	if got := intersects.(kernel.PredicateFunc)(0, x, read(t, k, "POINT (5 5)")); got != kernel.PredicateTrue {
		t.Fatalf("symmetric difference lost B-only part: %d", got)
	}
	if got := intersects.(kernel.PredicateFunc)(0, x, read(t, k, "POINT (3 3)")); got != kernel.PredicateFalse {
		t.Fatalf("symmetric difference kept the shared part: %d", got)
	}
}

func TestLinealConstructorDeclined(t *testing.T) {
	k := New()
	p := construct(t, k, kernel.SymUnion, read(t, k, "LINESTRING (0 0, 1 1)"), read(t, k, squareA))
	if p != 0 {
		t.Fatal("CSG on a line should return null")
	}
}

func TestWKTRoundTrip(t *testing.T) {
	k := New()
	p := read(t, k, squareA)
	s, ok := k.WriteWKT(0, p)
	if !ok {
		t.Fatal("WriteWKT failed for a vector geometry")
	}
	if !strings.HasPrefix(s, "POLYGON") {
		t.Fatalf("WriteWKT = %q", s)
	}
	b, ok := k.WriteWKB(0, p)
	if !ok {
		t.Fatal("WriteWKB failed")
	}
	if q := k.ReadWKB(0, b); q == 0 {
		t.Fatal("ReadWKB failed")
	}
	if q := k.ReadWKT(0, "POLYGON ((0 0, 1 0))"); q != 0 {
		t.Fatal("degenerate ring should be rejected")
	}
}

func TestSymbols(t *testing.T) {
	k := New()
	for _, sym := range []string{kernel.SymSharedPaths, kernel.SymConvexHull, kernel.SymCentroid} {
		if _, ok := k.Symbol(sym); ok {
			t.Errorf("symbol %s should not be provided", sym)
		}
	}
	for _, sym := range []string{kernel.SymIntersection, kernel.SymEquals, kernel.SymIsEmpty, kernel.SymEnvelope, kernel.SymClone} {
		if _, ok := k.Symbol(sym); !ok {
			t.Errorf("symbol %s missing", sym)
		}
	}
}

func TestLifecycle(t *testing.T) {
	k := NewWithCells(16)
	ctx := k.Init()
	p := read(t, k, squareA)
	q := k.Clone(ctx, p)
	if k.Live() != 2 {
		t.Fatalf("live = %d, want 2", k.Live())
	}
	k.Destroy(ctx, p)
	k.Destroy(ctx, q)
	k.Finish(ctx)
	if k.Live() != 0 || k.Contexts() != 0 {
		t.Fatalf("live = %d, contexts = %d", k.Live(), k.Contexts())
	}
	if got := k.HasZ(0, read(t, k, "POINT Z (1 2 3)")); got != 1 {
		t.Fatalf("HasZ = %d, want 1", got)
	}
	if got := k.TypeID(0, read(t, k, "MULTIPOINT ((0 0), (1 1))")); got != int(kernel.MultiPoint) {
		t.Fatalf("TypeID = %d, want multipoint", got)
	}
}
