package main

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/chazu/geoarray/pkg/config"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/script"
	"github.com/chazu/geoarray/pkg/ufunc"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	a, err := NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// TestE2EParcelsExample runs the bundled example script end to end.
func TestE2EParcelsExample(t *testing.T) {
	app := newTestApp(t)

	source, err := os.ReadFile("../../examples/parcels.zy")
	if err != nil {
		t.Fatalf("failed to read parcels.zy: %v", err)
	}
	result := app.Evaluate(string(source))
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	want := []ufunc.Bool{ufunc.True, ufunc.True, ufunc.False, ufunc.NoValue}
	if result.Result.Kind != script.KindBools || len(result.Result.Bools) != len(want) {
		t.Fatalf("result = %+v, want bools %v", result.Result, want)
	}
	for i, b := range want {
		if result.Result.Bools[i] != b {
			t.Errorf("parcel %d: got %v, want %v", i, result.Result.Bools[i], b)
		}
	}
}

func TestE2EEmptySource(t *testing.T) {
	app := newTestApp(t)
	for _, src := range []string{"", "  \n\t", ";; only a comment\n"} {
		result := app.Evaluate(src)
		if len(result.Errors) > 0 {
			t.Errorf("Evaluate(%q): unexpected errors %v", src, result.Errors)
		}
		if result.Errors == nil {
			t.Errorf("Evaluate(%q): Errors is nil, want empty slice", src)
		}
	}
}

func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp(t)
	result := app.Evaluate(`(intersects (geom "POINT (0 0)")`)
	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.Result.Kind != script.KindNil {
		t.Errorf("result kind = %s on error, want %s", result.Result.Kind, script.KindNil)
	}
}

func TestE2ERapidEvaluation(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 20; i++ {
		result := app.Evaluate(`(size (geom "POINT (0 0)" "POINT (1 1)"))`)
		if len(result.Errors) > 0 {
			t.Fatalf("iteration %d: %v", i, result.Errors)
		}
		if n := result.Result.Number; n == nil || *n != 2 {
			t.Fatalf("iteration %d: size = %v, want 2", i, n)
		}
	}
}

func TestOperations(t *testing.T) {
	app := newTestApp(t)
	names := map[string]bool{}
	for _, d := range app.Operations() {
		names[d.Name] = true
	}
	for _, want := range []string{"intersects", "intersection", "shared_paths", "envelope", "is_empty"} {
		if !names[want] {
			t.Errorf("operation %q not registered", want)
		}
	}
}

func readWKT(t *testing.T, app *App, lines ...string) []*geometry.Geometry {
	t.Helper()
	gs, err := app.readWKT(strings.NewReader(strings.Join(lines, "\n")), "test")
	if err != nil {
		t.Fatalf("readWKT: %v", err)
	}
	t.Cleanup(func() { geometry.ReleaseAll(gs) })
	return gs
}

func TestReadWKTMissingLines(t *testing.T) {
	app := newTestApp(t)
	gs := readWKT(t, app, "POINT (0 0)", "", "NULL", "null", "POINT (1 1)")
	if len(gs) != 5 {
		t.Fatalf("got %d entries, want 5", len(gs))
	}
	for i, missing := range []bool{false, true, true, true, false} {
		if gs[i].IsMissing() != missing {
			t.Errorf("entry %d: IsMissing() = %v, want %v", i, gs[i].IsMissing(), missing)
		}
	}
}

func TestReadWKTReportsLine(t *testing.T) {
	app := newTestApp(t)
	_, err := app.readWKT(strings.NewReader("POINT (0 0)\nPOINT (oops)\n"), "pts.wkt")
	if err == nil || !strings.Contains(err.Error(), "pts.wkt:2") {
		t.Errorf("error = %v, want one naming pts.wkt:2", err)
	}
}

func TestRunShapes(t *testing.T) {
	app := newTestApp(t)
	square := readWKT(t, app, "POLYGON ((0 0, 2 0, 2 2, 0 2, 0 0))")
	pts := readWKT(t, app, "POINT (1 1)", "POINT (3 3)", "NULL")

	tests := []struct {
		name    string
		op      string
		x, y    []*geometry.Geometry
		workers int
		check   func(t *testing.T, res script.Result)
	}{
		{
			name: "predicate", op: "contains", x: square, y: pts,
			check: func(t *testing.T, res script.Result) {
				want := []ufunc.Bool{ufunc.True, ufunc.False, ufunc.NoValue}
				for i := range want {
					if res.Bools[i] != want[i] {
						t.Errorf("bools[%d] = %v, want %v", i, res.Bools[i], want[i])
					}
				}
			},
		},
		{
			name: "parallel predicate", op: "contains", x: square, y: pts, workers: 3,
			check: func(t *testing.T, res script.Result) {
				if len(res.Bools) != 3 || res.Bools[0] != ufunc.True {
					t.Errorf("bools = %v", res.Bools)
				}
			},
		},
		{
			name: "unary predicate", op: "is_empty", x: pts,
			check: func(t *testing.T, res script.Result) {
				if len(res.Bools) != 3 || res.Bools[0] != ufunc.False || res.Bools[2] != ufunc.NoValue {
					t.Errorf("bools = %v", res.Bools)
				}
			},
		},
		{
			name: "unary constructor", op: "envelope", x: square,
			check: func(t *testing.T, res script.Result) {
				if len(res.Geometries) != 1 || res.Geometries[0] == nil || !strings.HasPrefix(*res.Geometries[0], "POLYGON") {
					t.Errorf("geometries = %v", res.Geometries)
				}
			},
		},
		{
			name: "constructor with missing", op: "intersection", x: square, y: pts,
			check: func(t *testing.T, res script.Result) {
				if len(res.Geometries) != 3 {
					t.Fatalf("got %d geometries, want 3", len(res.Geometries))
				}
				if res.Geometries[0] == nil || *res.Geometries[0] != "POINT (1 1)" {
					t.Errorf("geometries[0] = %v, want POINT (1 1)", res.Geometries[0])
				}
				if res.Geometries[2] != nil {
					t.Errorf("geometries[2] = %q, want missing", *res.Geometries[2])
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := app.Run(context.Background(), tt.op, tt.x, tt.y, tt.workers)
			if err != nil {
				t.Fatalf("Run(%s): %v", tt.op, err)
			}
			tt.check(t, res)
		})
	}
}

func TestRunRejects(t *testing.T) {
	app := newTestApp(t)
	pts := readWKT(t, app, "POINT (1 1)")
	tests := []struct {
		name string
		op   string
		y    []*geometry.Geometry
	}{
		{"unknown operation", "buffer", pts},
		{"binary without b", "intersects", nil},
		{"unary with b", "envelope", pts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := app.Run(context.Background(), tt.op, pts, tt.y, 0); err == nil {
				t.Errorf("Run(%s) succeeded, want error", tt.op)
			}
		})
	}
}

func TestConcurrentRun(t *testing.T) {
	app := newTestApp(t)
	a := readWKT(t, app, "POLYGON ((0 0, 4 0, 4 4, 0 4, 0 0))")
	b := readWKT(t, app, "POINT (1 1)", "POINT (5 5)")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := app.Run(context.Background(), "intersects", a, b, 0)
			if err != nil {
				t.Errorf("Run: %v", err)
				return
			}
			if res.Bools[0] != ufunc.True || res.Bools[1] != ufunc.False {
				t.Errorf("bools = %v", res.Bools)
			}
		}()
	}
	wg.Wait()
}
