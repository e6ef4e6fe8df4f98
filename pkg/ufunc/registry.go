package ufunc

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/kernel/planar"
)

// Shape is the elementwise call shape of an operation.
type Shape int

const (
	// ShapePredicate maps two geometries to a Bool.
	ShapePredicate Shape = iota
	// ShapeConstructor maps two geometries to a new geometry.
	ShapeConstructor
	// ShapeUnaryPredicate maps one geometry to a Bool.
	ShapeUnaryPredicate
	// ShapeUnaryConstructor maps one geometry to a new geometry.
	ShapeUnaryConstructor
)

var shapeNames = [...]string{
	ShapePredicate:        "predicate",
	ShapeConstructor:      "constructor",
	ShapeUnaryPredicate:   "unary_predicate",
	ShapeUnaryConstructor: "unary_constructor",
}

func (s Shape) String() string {
	if s >= 0 && int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// MarshalText encodes the shape name.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Arity returns the number of geometry operands.
func (s Shape) Arity() int {
	if s == ShapeUnaryPredicate || s == ShapeUnaryConstructor {
		return 1
	}
	return 2
}

// accepts reports whether fn has the native signature of s.
func (s Shape) accepts(fn any) bool {
	var ok bool
	switch s {
	case ShapePredicate:
		_, ok = fn.(kernel.PredicateFunc)
	case ShapeConstructor:
		_, ok = fn.(kernel.ConstructorFunc)
	case ShapeUnaryPredicate:
		_, ok = fn.(kernel.UnaryPredicateFunc)
	case ShapeUnaryConstructor:
		_, ok = fn.(kernel.UnaryConstructorFunc)
	}
	return ok
}

// Descriptor is the static metadata of an operation.
type Descriptor struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Shape  Shape  `json:"shape"`
	Doc    string `json:"doc"`
}

// Operation is a descriptor bound to a kernel function.
type Operation struct {
	Descriptor
	k  kernel.Kernel
	fn any
}

// Kernel returns the kernel the operation calls into.
func (op *Operation) Kernel() kernel.Kernel { return op.k }

// Builtin lists every operation geoarray knows how to register.
var Builtin = []Descriptor{
	{"intersection", kernel.SymIntersection, ShapeConstructor, "Returns the geometry shared by a and b."},
	{"difference", kernel.SymDifference, ShapeConstructor, "Returns the part of a not in b."},
	{"symmetric_difference", kernel.SymSymDifference, ShapeConstructor, "Returns the parts of a and b not shared by both."},
	{"union", kernel.SymUnion, ShapeConstructor, "Returns the geometry covered by a or b."},
	{"shared_paths", kernel.SymSharedPaths, ShapeConstructor, "Returns the paths shared by two lineal geometries, same direction first."},

	{"disjoint", kernel.SymDisjoint, ShapePredicate, "True if a and b share no point."},
	{"touches", kernel.SymTouches, ShapePredicate, "True if a and b meet only at their boundaries."},
	{"intersects", kernel.SymIntersects, ShapePredicate, "True if a and b share at least one point."},
	{"crosses", kernel.SymCrosses, ShapePredicate, "True if a and b share some interior points but not all."},
	{"within", kernel.SymWithin, ShapePredicate, "True if a lies in b and their interiors meet."},
	{"contains", kernel.SymContains, ShapePredicate, "True if b lies in a and their interiors meet."},
	{"overlaps", kernel.SymOverlaps, ShapePredicate, "True if a and b have the same dimension and share some but not all points."},
	{"equals", kernel.SymEquals, ShapePredicate, "True if a and b are topologically equal."},
	{"covers", kernel.SymCovers, ShapePredicate, "True if no point of b lies outside a."},
	{"covered_by", kernel.SymCoveredBy, ShapePredicate, "True if no point of a lies outside b."},

	{"is_empty", kernel.SymIsEmpty, ShapeUnaryPredicate, "True if the geometry has no points."},
	{"has_z", kernel.SymHasZ, ShapeUnaryPredicate, "True if the geometry has a Z coordinate."},
	{"clone", kernel.SymClone, ShapeUnaryConstructor, "Returns an independent copy."},
	{"envelope", kernel.SymEnvelope, ShapeUnaryConstructor, "Returns the bounding rectangle."},
	{"convex_hull", kernel.SymConvexHull, ShapeUnaryConstructor, "Returns the smallest convex polygon containing the geometry."},
	{"centroid", kernel.SymCentroid, ShapeUnaryConstructor, "Returns the center of mass as a point."},
}

// Builder collects operations for one kernel. Build freezes them into a
// Registry; the builder accepts no registrations afterwards.
type Builder struct {
	k     kernel.Kernel
	ops   map[string]*Operation
	built bool
}

// NewBuilder returns an empty builder for k.
func NewBuilder(k kernel.Kernel) *Builder {
	return &Builder{k: k, ops: make(map[string]*Operation)}
}

// Register resolves d.Symbol in the kernel and adds the operation.
func (b *Builder) Register(d Descriptor) error {
	fn, ok := b.k.Symbol(d.Symbol)
	if !ok {
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Op(d.Name).
			Detail("kernel %s has no symbol %s", b.k.Name(), d.Symbol).
			Build()
	}
	return b.RegisterFunc(d, fn)
}

// RegisterFunc adds an operation backed by fn, which must have the
// native signature of d.Shape.
func (b *Builder) RegisterFunc(d Descriptor, fn any) error {
	switch {
	case b.built:
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Op(d.Name).Detail("registry already built").Build()
	case d.Name == "":
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Detail("empty operation name").Build()
	case b.ops[d.Name] != nil:
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Op(d.Name).Detail("duplicate operation name").Build()
	case !d.Shape.accepts(fn):
		return errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Op(d.Name).
			Value(fn).
			Detail("function %T does not have the %s shape", fn, d.Shape).
			Build()
	}
	b.ops[d.Name] = &Operation{Descriptor: d, k: b.k, fn: fn}
	Logger().Debug("registered operation", zap.String("name", d.Name), zap.Stringer("shape", d.Shape), zap.String("kernel", b.k.Name()))
	return nil
}

// Build freezes the registered operations.
func (b *Builder) Build() (*Registry, error) {
	if b.built {
		return nil, errors.New(errors.PhaseRegistry, errors.KindRegistration).
			Detail("registry already built").Build()
	}
	b.built = true
	r := &Registry{k: b.k, ops: b.ops, names: make([]string, 0, len(b.ops))}
	for name := range b.ops {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	b.ops = nil
	return r, nil
}

// Registry is an immutable table of operations for one kernel. It is safe
// for concurrent use.
type Registry struct {
	k     kernel.Kernel
	ops   map[string]*Operation
	names []string
}

// NewRegistry registers every Builtin operation the kernel provides.
// Operations whose symbol the kernel lacks are skipped.
func NewRegistry(k kernel.Kernel) (*Registry, error) {
	b := NewBuilder(k)
	for _, d := range Builtin {
		if _, ok := k.Symbol(d.Symbol); !ok {
			Logger().Warn("operation not provided by kernel", zap.String("name", d.Name), zap.String("kernel", k.Name()))
			continue
		}
		if err := b.Register(d); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry of the planar kernel, built on first use.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = NewRegistry(planar.New())
	})
	return defaultRegistry, defaultErr
}

// Resolve looks up an operation by name.
func (r *Registry) Resolve(name string) (*Operation, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, errors.UnknownOperation(name)
	}
	return op, nil
}

// Names returns the operation names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Descriptors returns the descriptors in name order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.names))
	for i, name := range r.names {
		out[i] = r.ops[name].Descriptor
	}
	return out
}

// Kernel returns the kernel every operation calls into.
func (r *Registry) Kernel() kernel.Kernel { return r.k }
