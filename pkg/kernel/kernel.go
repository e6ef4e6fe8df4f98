// Package kernel defines the native geometry engine boundary.
// Implementations (planar, sdfx, geos) own geometry memory and the
// algorithms; the rest of the system sees only opaque pointers and a
// session token, and calls into the engine through this interface.
package kernel

// Geometry is an opaque pointer to a kernel-owned geometry.
// The zero value is the null pointer.
type Geometry uintptr

// Context is an opaque kernel session token. Zero means the session
// could not be opened.
type Context uintptr

// Predicate return codes.
const (
	PredicateFalse     byte = 0
	PredicateTrue      byte = 1
	PredicateException byte = 2
)

// Function shapes of registered operations.
type (
	PredicateFunc        func(ctx Context, a, b Geometry) byte
	ConstructorFunc      func(ctx Context, a, b Geometry) Geometry
	UnaryPredicateFunc   func(ctx Context, a Geometry) byte
	UnaryConstructorFunc func(ctx Context, a Geometry) Geometry
)

// Kernel is the native geometry engine interface.
//
// Every call except Name, Init and Symbol takes a Context obtained from
// Init and not yet passed to Finish. A Context must not be used by two
// goroutines at once.
type Kernel interface {
	Name() string

	// Session
	Init() Context
	Finish(ctx Context)

	// Memory
	Clone(ctx Context, g Geometry) Geometry
	Destroy(ctx Context, g Geometry)

	// Metadata. TypeID is valid in 0..255 and HasZ in 0..1; any other
	// value reports a failure inside the kernel.
	TypeID(ctx Context, g Geometry) int
	HasZ(ctx Context, g Geometry) int

	// Encoding. Read returns the null pointer on failure.
	ReadWKT(ctx Context, wkt string) Geometry
	WriteWKT(ctx Context, g Geometry) (string, bool)
	ReadWKB(ctx Context, wkb []byte) Geometry
	WriteWKB(ctx Context, g Geometry) ([]byte, bool)

	// Symbol resolves an exported entry point by name. The returned value
	// is one of PredicateFunc, ConstructorFunc, UnaryPredicateFunc or
	// UnaryConstructorFunc.
	Symbol(name string) (any, bool)
}
