package kernel

import "testing"

func TestTypeIDString(t *testing.T) {
	tests := []struct {
		id   TypeID
		want string
	}{
		{Point, "Point"},
		{LinearRing, "LinearRing"},
		{MultiPolygon, "MultiPolygon"},
		{GeometryCollection, "GeometryCollection"},
		{TypeID(42), "TypeID(42)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.id.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidTypeID(t *testing.T) {
	tests := []struct {
		v    int
		want bool
	}{
		{-1, false},
		{0, true},
		{7, true},
		{255, true},
		{256, false},
	}
	for _, tt := range tests {
		if got := ValidTypeID(tt.v); got != tt.want {
			t.Errorf("ValidTypeID(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestValidHasZ(t *testing.T) {
	tests := []struct {
		v    int
		want bool
	}{
		{-1, false},
		{0, true},
		{1, true},
		{2, false},
	}
	for _, tt := range tests {
		if got := ValidHasZ(tt.v); got != tt.want {
			t.Errorf("ValidHasZ(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable. Every geometry is the point at the origin.
type stubKernel struct{}

func (k *stubKernel) Name() string                         { return "stub" }
func (k *stubKernel) Init() Context                        { return 1 }
func (k *stubKernel) Finish(Context)                       {}
func (k *stubKernel) Clone(_ Context, g Geometry) Geometry { return g + 1 }
func (k *stubKernel) Destroy(Context, Geometry)            {}
func (k *stubKernel) TypeID(Context, Geometry) int         { return int(Point) }
func (k *stubKernel) HasZ(Context, Geometry) int           { return 0 }
func (k *stubKernel) ReadWKT(Context, string) Geometry     { return 1 }
func (k *stubKernel) WriteWKT(Context, Geometry) (string, bool) {
	return "POINT (0 0)", true
}
func (k *stubKernel) ReadWKB(Context, []byte) Geometry { return 1 }
func (k *stubKernel) WriteWKB(Context, Geometry) ([]byte, bool) {
	return nil, false
}

func (k *stubKernel) Symbol(name string) (any, bool) {
	if name == SymIntersects {
		return PredicateFunc(func(Context, Geometry, Geometry) byte { return PredicateTrue }), true
	}
	return nil, false
}

var _ Kernel = (*stubKernel)(nil)

func TestStubKernelSymbol(t *testing.T) {
	k := &stubKernel{}
	fn, ok := k.Symbol(SymIntersects)
	if !ok {
		t.Fatalf("Symbol(%q) not found", SymIntersects)
	}
	pred, ok := fn.(PredicateFunc)
	if !ok {
		t.Fatalf("Symbol(%q) = %T, want PredicateFunc", SymIntersects, fn)
	}
	ctx := k.Init()
	defer k.Finish(ctx)
	if got := pred(ctx, 1, 2); got != PredicateTrue {
		t.Errorf("pred() = %d, want %d", got, PredicateTrue)
	}
	if _, ok := k.Symbol("GEOSBuffer_r"); ok {
		t.Error("Symbol(GEOSBuffer_r) found, want missing")
	}
}
