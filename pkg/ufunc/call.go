package ufunc

import (
	"fmt"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
)

// broadcastLen applies one-dimensional broadcasting: operands of length
// one repeat, all others must agree.
func broadcastLen(op string, lens ...int) (int, error) {
	n := -1
	for _, l := range lens {
		if l == 1 {
			continue
		}
		if n == -1 {
			n = l
			continue
		}
		if n != l {
			return 0, errors.ShapeMismatch(op, fmt.Sprintf("operands with lengths %v cannot be broadcast together", lens))
		}
	}
	if n == -1 {
		return 1, nil
	}
	return n, nil
}

func operand(gs []*geometry.Geometry, n int) GeomArray {
	if len(gs) == 1 && n != 1 {
		return Broadcast(gs, 0)
	}
	return Contiguous(gs)
}

func (op *Operation) wrongShape(called Shape) error {
	return errors.ShapeMismatch(op.Name, fmt.Sprintf("%s operation called as %s", op.Shape, called))
}

// Predicate evaluates a binary predicate elementwise.
func (op *Operation) Predicate(a, b []*geometry.Geometry) ([]Bool, error) {
	fn, ok := op.fn.(kernel.PredicateFunc)
	if !ok {
		return nil, op.wrongShape(ShapePredicate)
	}
	n, err := broadcastLen(op.Name, len(a), len(b))
	if err != nil {
		return nil, err
	}
	out := make([]Bool, n)
	if err := PredicateLoop(op.k, fn, n, operand(a, n), operand(b, n), Contiguous(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// UnaryPredicate evaluates a unary predicate elementwise.
func (op *Operation) UnaryPredicate(a []*geometry.Geometry) ([]Bool, error) {
	fn, ok := op.fn.(kernel.UnaryPredicateFunc)
	if !ok {
		return nil, op.wrongShape(ShapeUnaryPredicate)
	}
	out := make([]Bool, len(a))
	if err := UnaryPredicateLoop(op.k, fn, len(a), Contiguous(a), Contiguous(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// Construct evaluates a binary constructor elementwise into a new slice.
// The caller owns the results.
func (op *Operation) Construct(a, b []*geometry.Geometry) ([]*geometry.Geometry, error) {
	n, err := broadcastLen(op.Name, len(a), len(b))
	if err != nil {
		return nil, err
	}
	out := make([]*geometry.Geometry, n)
	if err := op.constructInto(out, a, b, n); err != nil {
		geometry.ReleaseAll(out)
		return nil, err
	}
	return out, nil
}

// ConstructInto evaluates a binary constructor elementwise into out,
// releasing what out held before. out may be a or b. On error the slots
// already written keep their new values.
func (op *Operation) ConstructInto(out, a, b []*geometry.Geometry) error {
	n, err := broadcastLen(op.Name, len(a), len(b))
	if err != nil {
		return err
	}
	if len(out) != n {
		return errors.ShapeMismatch(op.Name, fmt.Sprintf("output length %d, want %d", len(out), n))
	}
	ina, inb := retainCopy(a), retainCopy(b)
	defer geometry.ReleaseAll(ina)
	defer geometry.ReleaseAll(inb)
	return op.constructInto(out, ina, inb, n)
}

func (op *Operation) constructInto(out, a, b []*geometry.Geometry, n int) error {
	fn, ok := op.fn.(kernel.ConstructorFunc)
	if !ok {
		return op.wrongShape(ShapeConstructor)
	}
	return ConstructorLoop(op.k, fn, n, operand(a, n), operand(b, n), Contiguous(out))
}

// UnaryConstruct evaluates a unary constructor elementwise into a new
// slice. The caller owns the results.
func (op *Operation) UnaryConstruct(a []*geometry.Geometry) ([]*geometry.Geometry, error) {
	fn, ok := op.fn.(kernel.UnaryConstructorFunc)
	if !ok {
		return nil, op.wrongShape(ShapeUnaryConstructor)
	}
	out := make([]*geometry.Geometry, len(a))
	if err := UnaryConstructorLoop(op.k, fn, len(a), Contiguous(a), Contiguous(out)); err != nil {
		geometry.ReleaseAll(out)
		return nil, err
	}
	return out, nil
}

// retainCopy snapshots gs with an extra reference on every element, so
// inputs survive while aliased output slots are overwritten.
func retainCopy(gs []*geometry.Geometry) []*geometry.Geometry {
	cp := make([]*geometry.Geometry, len(gs))
	for i, g := range gs {
		cp[i] = g.Retain()
	}
	return cp
}
