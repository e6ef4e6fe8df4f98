//go:build geos

// Package geos provides a CGo-based geometry kernel binding to the GEOS
// reentrant C API (libgeos_c).
//
// This package requires the GEOS C library to be installed.
// Build with: go build -tags=geos
package geos

/*
#define _GNU_SOURCE
#cgo LDFLAGS: -lgeos_c -ldl

#include <stdint.h>
#include <stdlib.h>
#include <dlfcn.h>
#include <geos_c.h>

#define CTX(h) ((GEOSContextHandle_t)(h))
#define GEOM(g) ((GEOSGeometry*)(g))

static uintptr_t ga_init(void) { return (uintptr_t)GEOS_init_r(); }
static void ga_finish(uintptr_t h) { GEOS_finish_r(CTX(h)); }
static uintptr_t ga_clone(uintptr_t h, uintptr_t g) { return (uintptr_t)GEOSGeom_clone_r(CTX(h), GEOM(g)); }
static void ga_destroy(uintptr_t h, uintptr_t g) { GEOSGeom_destroy_r(CTX(h), GEOM(g)); }
static int ga_type_id(uintptr_t h, uintptr_t g) { return GEOSGeomTypeId_r(CTX(h), GEOM(g)); }
static int ga_has_z(uintptr_t h, uintptr_t g) { return (int)GEOSHasZ_r(CTX(h), GEOM(g)); }

static uintptr_t ga_read_wkt(uintptr_t h, const char* s) {
	GEOSWKTReader* r = GEOSWKTReader_create_r(CTX(h));
	if (r == NULL) return 0;
	GEOSGeometry* g = GEOSWKTReader_read_r(CTX(h), r, s);
	GEOSWKTReader_destroy_r(CTX(h), r);
	return (uintptr_t)g;
}

static char* ga_write_wkt(uintptr_t h, uintptr_t g) {
	GEOSWKTWriter* w = GEOSWKTWriter_create_r(CTX(h));
	if (w == NULL) return NULL;
	GEOSWKTWriter_setTrim_r(CTX(h), w, 1);
	char* s = GEOSWKTWriter_write_r(CTX(h), w, GEOM(g));
	GEOSWKTWriter_destroy_r(CTX(h), w);
	return s;
}

static uintptr_t ga_read_wkb(uintptr_t h, const unsigned char* b, size_t n) {
	GEOSWKBReader* r = GEOSWKBReader_create_r(CTX(h));
	if (r == NULL) return 0;
	GEOSGeometry* g = GEOSWKBReader_read_r(CTX(h), r, b, n);
	GEOSWKBReader_destroy_r(CTX(h), r);
	return (uintptr_t)g;
}

static unsigned char* ga_write_wkb(uintptr_t h, uintptr_t g, size_t* n) {
	GEOSWKBWriter* w = GEOSWKBWriter_create_r(CTX(h));
	if (w == NULL) return NULL;
	unsigned char* b = GEOSWKBWriter_write_r(CTX(h), w, GEOM(g), n);
	GEOSWKBWriter_destroy_r(CTX(h), w);
	return b;
}

static void ga_free(uintptr_t h, void* p) { GEOSFree_r(CTX(h), p); }

static void* ga_symbol(const char* name) { return dlsym(RTLD_DEFAULT, name); }

typedef char (*ga_predicate_fn)(GEOSContextHandle_t, const GEOSGeometry*, const GEOSGeometry*);
typedef GEOSGeometry* (*ga_constructor_fn)(GEOSContextHandle_t, const GEOSGeometry*, const GEOSGeometry*);
typedef char (*ga_unary_predicate_fn)(GEOSContextHandle_t, const GEOSGeometry*);
typedef GEOSGeometry* (*ga_unary_constructor_fn)(GEOSContextHandle_t, const GEOSGeometry*);

static char ga_call_predicate(void* fn, uintptr_t h, uintptr_t a, uintptr_t b) {
	return ((ga_predicate_fn)fn)(CTX(h), GEOM(a), GEOM(b));
}
static uintptr_t ga_call_constructor(void* fn, uintptr_t h, uintptr_t a, uintptr_t b) {
	return (uintptr_t)((ga_constructor_fn)fn)(CTX(h), GEOM(a), GEOM(b));
}
static char ga_call_unary_predicate(void* fn, uintptr_t h, uintptr_t a) {
	return ((ga_unary_predicate_fn)fn)(CTX(h), GEOM(a));
}
static uintptr_t ga_call_unary_constructor(void* fn, uintptr_t h, uintptr_t a) {
	return (uintptr_t)((ga_unary_constructor_fn)fn)(CTX(h), GEOM(a));
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/chazu/geoarray/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*GeosKernel)(nil)

// shapes maps the symbols this kernel knows how to call to their C
// signature.
var shapes = map[string]int{
	kernel.SymIntersection:  shapeConstructor,
	kernel.SymDifference:    shapeConstructor,
	kernel.SymSymDifference: shapeConstructor,
	kernel.SymUnion:         shapeConstructor,
	kernel.SymSharedPaths:   shapeConstructor,
	kernel.SymDisjoint:      shapePredicate,
	kernel.SymTouches:       shapePredicate,
	kernel.SymIntersects:    shapePredicate,
	kernel.SymCrosses:       shapePredicate,
	kernel.SymWithin:        shapePredicate,
	kernel.SymContains:      shapePredicate,
	kernel.SymOverlaps:      shapePredicate,
	kernel.SymEquals:        shapePredicate,
	kernel.SymCovers:        shapePredicate,
	kernel.SymCoveredBy:     shapePredicate,
	kernel.SymIsEmpty:       shapeUnaryPredicate,
	kernel.SymHasZ:          shapeUnaryPredicate,
	kernel.SymClone:         shapeUnaryConstructor,
	kernel.SymEnvelope:      shapeUnaryConstructor,
	kernel.SymConvexHull:    shapeUnaryConstructor,
	kernel.SymCentroid:      shapeUnaryConstructor,
}

const (
	shapePredicate = iota
	shapeConstructor
	shapeUnaryPredicate
	shapeUnaryConstructor
)

// GeosKernel implements kernel.Kernel using libgeos_c.
type GeosKernel struct {
	mu      sync.Mutex
	symbols map[string]unsafe.Pointer
}

// New creates a new GeosKernel.
func New() (kernel.Kernel, error) {
	return &GeosKernel{symbols: make(map[string]unsafe.Pointer)}, nil
}

func (k *GeosKernel) Name() string { return "geos" }

func (k *GeosKernel) Init() kernel.Context {
	return kernel.Context(C.ga_init())
}

func (k *GeosKernel) Finish(ctx kernel.Context) {
	C.ga_finish(C.uintptr_t(ctx))
}

func (k *GeosKernel) Clone(ctx kernel.Context, g kernel.Geometry) kernel.Geometry {
	return kernel.Geometry(C.ga_clone(C.uintptr_t(ctx), C.uintptr_t(g)))
}

func (k *GeosKernel) Destroy(ctx kernel.Context, g kernel.Geometry) {
	C.ga_destroy(C.uintptr_t(ctx), C.uintptr_t(g))
}

func (k *GeosKernel) TypeID(ctx kernel.Context, g kernel.Geometry) int {
	return int(C.ga_type_id(C.uintptr_t(ctx), C.uintptr_t(g)))
}

func (k *GeosKernel) HasZ(ctx kernel.Context, g kernel.Geometry) int {
	return int(C.ga_has_z(C.uintptr_t(ctx), C.uintptr_t(g)))
}

func (k *GeosKernel) ReadWKT(ctx kernel.Context, s string) kernel.Geometry {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return kernel.Geometry(C.ga_read_wkt(C.uintptr_t(ctx), cs))
}

func (k *GeosKernel) WriteWKT(ctx kernel.Context, g kernel.Geometry) (string, bool) {
	cs := C.ga_write_wkt(C.uintptr_t(ctx), C.uintptr_t(g))
	if cs == nil {
		return "", false
	}
	defer C.ga_free(C.uintptr_t(ctx), unsafe.Pointer(cs))
	return C.GoString(cs), true
}

func (k *GeosKernel) ReadWKB(ctx kernel.Context, b []byte) kernel.Geometry {
	if len(b) == 0 {
		return 0
	}
	cb := C.CBytes(b)
	defer C.free(cb)
	return kernel.Geometry(C.ga_read_wkb(C.uintptr_t(ctx), (*C.uchar)(cb), C.size_t(len(b))))
}

func (k *GeosKernel) WriteWKB(ctx kernel.Context, g kernel.Geometry) ([]byte, bool) {
	var n C.size_t
	cb := C.ga_write_wkb(C.uintptr_t(ctx), C.uintptr_t(g), &n)
	if cb == nil {
		return nil, false
	}
	defer C.ga_free(C.uintptr_t(ctx), unsafe.Pointer(cb))
	return C.GoBytes(unsafe.Pointer(cb), C.int(n)), true
}

// Symbol resolves name in the loaded GEOS library and wraps the function
// pointer in the Go shape the dispatch loops expect.
func (k *GeosKernel) Symbol(name string) (any, bool) {
	shape, known := shapes[name]
	if !known {
		return nil, false
	}
	fn := k.lookup(name)
	if fn == nil {
		return nil, false
	}
	switch shape {
	case shapePredicate:
		return kernel.PredicateFunc(func(ctx kernel.Context, a, b kernel.Geometry) byte {
			return byte(C.ga_call_predicate(fn, C.uintptr_t(ctx), C.uintptr_t(a), C.uintptr_t(b)))
		}), true
	case shapeConstructor:
		return kernel.ConstructorFunc(func(ctx kernel.Context, a, b kernel.Geometry) kernel.Geometry {
			return kernel.Geometry(C.ga_call_constructor(fn, C.uintptr_t(ctx), C.uintptr_t(a), C.uintptr_t(b)))
		}), true
	case shapeUnaryPredicate:
		return kernel.UnaryPredicateFunc(func(ctx kernel.Context, a kernel.Geometry) byte {
			return byte(C.ga_call_unary_predicate(fn, C.uintptr_t(ctx), C.uintptr_t(a)))
		}), true
	default:
		return kernel.UnaryConstructorFunc(func(ctx kernel.Context, a kernel.Geometry) kernel.Geometry {
			return kernel.Geometry(C.ga_call_unary_constructor(fn, C.uintptr_t(ctx), C.uintptr_t(a)))
		}), true
	}
}

func (k *GeosKernel) lookup(name string) unsafe.Pointer {
	k.mu.Lock()
	defer k.mu.Unlock()
	if fn, ok := k.symbols[name]; ok {
		return fn
	}
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	fn := C.ga_symbol(cs)
	k.symbols[name] = fn
	return fn
}
