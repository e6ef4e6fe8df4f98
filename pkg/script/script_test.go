package script

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/kernel/kerneltest"
	"github.com/chazu/geoarray/pkg/kernel/planar"
	"github.com/chazu/geoarray/pkg/store"
	"github.com/chazu/geoarray/pkg/ufunc"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := ufunc.NewRegistry(planar.New())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return New(reg, Options{})
}

// mustEval evaluates source and fails on any error.
func mustEval(t *testing.T, eng *Engine, source string) Result {
	t.Helper()
	res, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("Evaluate(%q): unexpected fatal error: %v", source, err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("Evaluate(%q): unexpected eval errors: %v", source, evalErrs)
	}
	return res
}

func wantBools(t *testing.T, res Result, want ...ufunc.Bool) {
	t.Helper()
	if res.Kind != KindBools {
		t.Fatalf("kind = %s, want %s", res.Kind, KindBools)
	}
	if len(res.Bools) != len(want) {
		t.Fatalf("bools = %v, want %v", res.Bools, want)
	}
	for i := range want {
		if res.Bools[i] != want[i] {
			t.Errorf("bools[%d] = %v, want %v", i, res.Bools[i], want[i])
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	eng := newEngine(t)
	for _, src := range []string{"", "   \n\t  \n  "} {
		res := mustEval(t, eng, src)
		if res.Kind != KindNil {
			t.Errorf("Evaluate(%q).Kind = %s, want %s", src, res.Kind, KindNil)
		}
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, "(def x 10)\n(def y 20)\n(+ x y)")
	if res.Kind != KindNumber || res.Number == nil || *res.Number != 30 {
		t.Errorf("result = %+v, want number 30", res)
	}
}

func TestPredicateBuiltin(t *testing.T) {
	eng := newEngine(t)
	wantBools(t, mustEval(t, eng, `(intersects (geom "POINT (0 0)") (geom "POINT (1 1)"))`), ufunc.False)
}

func TestPredicateBroadcast(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `
; one square against three points
(def square (geom "POLYGON ((0 0, 2 0, 2 2, 0 2, 0 0))"))
(contains square (geom "POINT (1 1)" "POINT (5 5)" nil))
`)
	wantBools(t, res, ufunc.True, ufunc.False, ufunc.NoValue)
}

func TestMissingOperand(t *testing.T) {
	eng := newEngine(t)
	wantBools(t, mustEval(t, eng, `(intersects (none) (geom "POINT (0 0)"))`), ufunc.NoValue)
}

func TestKebabCaseOperation(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `(covered-by (geom "POINT (1 1)") (geom "POLYGON ((0 0, 2 0, 2 2, 0 2, 0 0))"))`)
	wantBools(t, res, ufunc.True)
}

func TestConstructorBuiltin(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `
(def a (geom "POLYGON ((0 0, 2 0, 2 2, 0 2, 0 0))"))
(def b (geom "POLYGON ((1 1, 3 1, 3 3, 1 3, 1 1))"))
(equals (intersection a b) (geom "POLYGON ((1 1, 2 1, 2 2, 1 2, 1 1))"))
`)
	wantBools(t, res, ufunc.True)
}

func TestGeometryResult(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `(envelope (geom "LINESTRING (0 0, 2 1)" nil))`)
	if res.Kind != KindGeometries {
		t.Fatalf("kind = %s, want %s", res.Kind, KindGeometries)
	}
	if len(res.Geometries) != 2 {
		t.Fatalf("got %d geometries, want 2", len(res.Geometries))
	}
	if res.Geometries[0] == nil || !strings.HasPrefix(*res.Geometries[0], "POLYGON") {
		t.Errorf("geometries[0] = %v, want a polygon", res.Geometries[0])
	}
	if res.Geometries[1] != nil {
		t.Errorf("geometries[1] = %q, want missing", *res.Geometries[1])
	}
}

func TestSize(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `(size (geom "POINT (0 0)" "POINT (1 1)" "POINT (2 2)"))`)
	if res.Number == nil || *res.Number != 3 {
		t.Errorf("size = %+v, want 3", res)
	}
}

func TestWorkersKeyword(t *testing.T) {
	eng := newEngine(t)
	src := `(intersects (geom "POINT (0 0)" "POINT (1 1)" "POINT (9 9)" "POINT (2 2)")
                        (geom "POLYGON ((0 0, 3 0, 3 3, 0 3, 0 0))")%s)`
	seq := mustEval(t, eng, strings.Replace(src, "%s", "", 1))
	par := mustEval(t, eng, strings.Replace(src, "%s", " :workers 2", 1))
	wantBools(t, seq, ufunc.True, ufunc.True, ufunc.False, ufunc.True)
	wantBools(t, par, seq.Bools...)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "(+ 1 2"},
		{"undefined symbol", "(+ 1 undefined-symbol)"},
		{"bad wkt", `(geom "POINT (nope)")`},
		{"wrong arity", `(intersects (geom "POINT (0 0)"))`},
		{"not an array", `(is-empty 3)`},
		{"workers on unary", `(is-empty (geom "POINT (0 0)") :workers 2)`},
		{"bad workers", `(intersects (geom "POINT (0 0)") (geom "POINT (0 0)") :workers 0)`},
		{"unknown keyword", `(intersects (geom "POINT (0 0)") (geom "POINT (0 0)") :fast 1)`},
		{"length mismatch", `(intersects (geom "POINT (0 0)" "POINT (1 1)") (geom "POINT (0 0)" "POINT (1 1)" "POINT (2 2)"))`},
		{"no store", `(dataset "roads")`},
	}
	eng := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, evalErrs, err := eng.Evaluate(tt.src)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if evalErrs[0].Message == "" {
				t.Error("eval error message should not be empty")
			}
		})
	}
}

func TestArenaReleasesEverything(t *testing.T) {
	k := kerneltest.New()
	reg, err := ufunc.NewRegistry(k)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	eng := New(reg, Options{})

	res := mustEval(t, eng, `
(def a (geom "INTERVAL (0 2)" "INTERVAL (5 6)"))
(def b (union a (geom "INTERVAL (1 3)")))
(intersection b (geom "INTERVAL (1 2)"))
`)
	if res.Kind != KindGeometries || len(res.Geometries) != 2 {
		t.Fatalf("result = %+v, want two geometries", res)
	}
	if got := *res.Geometries[0]; got != "INTERVAL (1 2)" {
		t.Errorf("geometries[0] = %q, want %q", got, "INTERVAL (1 2)")
	}
	if got := k.Live(); got != 0 {
		t.Errorf("Live() = %d after evaluation, want 0", got)
	}
	if got := k.OpenSessions(); got != 0 {
		t.Errorf("OpenSessions() = %d, want 0", got)
	}
	if v := k.Violations(); len(v) > 0 {
		t.Errorf("violations: %v", v)
	}
}

func TestArenaReleasedOnError(t *testing.T) {
	k := kerneltest.New()
	reg, err := ufunc.NewRegistry(k)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	eng := New(reg, Options{})

	_, evalErrs, err := eng.Evaluate(`(def a (geom "INTERVAL (0 2)")) (undefined-call a)`)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error")
	}
	if got := k.Live(); got != 0 {
		t.Errorf("Live() = %d after failed evaluation, want 0", got)
	}
}

func TestDatasetBuiltin(t *testing.T) {
	k := planar.New()
	st, err := store.Open("")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	g, err := geometry.FromWKT(k, "POINT (1 1)")
	if err != nil {
		t.Fatalf("FromWKT: %v", err)
	}
	defer g.Release()
	if err := st.Put("pts", []*geometry.Geometry{g, nil}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reg, err := ufunc.NewRegistry(k)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	eng := New(reg, Options{Store: st})
	res := mustEval(t, eng, `(is-empty (dataset "pts"))`)
	wantBools(t, res, ufunc.False, ufunc.NoValue)
}

// slowEngine registers a predicate that sleeps before answering.
func slowEngine(t *testing.T, d, timeout time.Duration) *Engine {
	t.Helper()
	b := ufunc.NewBuilder(planar.New())
	slow := kernel.PredicateFunc(func(_ kernel.Context, _, _ kernel.Geometry) byte {
		time.Sleep(d)
		return kernel.PredicateTrue
	})
	if err := b.RegisterFunc(ufunc.Descriptor{Name: "slow", Symbol: "slow", Shape: ufunc.ShapePredicate}, slow); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}
	reg, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return New(reg, Options{Timeout: timeout})
}

func TestEvaluateTimeout(t *testing.T) {
	eng := slowEngine(t, 500*time.Millisecond, 20*time.Millisecond)
	_, _, err := eng.Evaluate(`(slow (geom "POINT (0 0)") (geom "POINT (0 0)"))`)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if !stderrors.Is(err, errors.ErrScript) {
		t.Errorf("errors.Is(err, ErrScript) = false for %v", err)
	}
}

func TestEvaluateSupersededResultDiscarded(t *testing.T) {
	eng := slowEngine(t, 200*time.Millisecond, 5*time.Second)

	var wg sync.WaitGroup
	var staleErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, staleErr = eng.Evaluate(`(slow (geom "POINT (0 0)") (geom "POINT (0 0)"))`)
	}()

	time.Sleep(50 * time.Millisecond)
	res := mustEval(t, eng, "(+ 1 2)")
	if res.Number == nil || *res.Number != 3 {
		t.Errorf("newer evaluation = %+v, want 3", res)
	}

	wg.Wait()
	if staleErr == nil || !strings.Contains(staleErr.Error(), "superseded") {
		t.Errorf("stale evaluation error = %v, want superseded", staleErr)
	}
}

func TestResultJSON(t *testing.T) {
	eng := newEngine(t)
	res := mustEval(t, eng, `(intersects (geom "POINT (0 0)" nil) (geom "POINT (0 0)"))`)
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"kind":"bools","bools":[true,null]}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
}

func TestEvalErrorString(t *testing.T) {
	if s := (EvalError{Line: 5, Message: "boom"}).Error(); s != "line 5: boom" {
		t.Errorf("Error() = %q, want %q", s, "line 5: boom")
	}
	if s := (EvalError{Message: "no location"}).Error(); strings.Contains(s, "line") {
		t.Errorf("Error() with no line should not mention it, got %q", s)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"error on line", "Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"no line info", "some generic error", 0, "some generic error"},
		{"lowercase", "error on line 12: missing paren", 12, "missing paren"},
		{"short form", "line 3: bad", 3, "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1", len(errs))
			}
			if errs[0].Line != tt.wantLine {
				t.Errorf("line = %d, want %d", errs[0].Line, tt.wantLine)
			}
			if errs[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}
