package ufunc

import (
	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/session"
)

// GeomArray is a strided view of geometries.
type GeomArray = Strided[*geometry.Geometry]

// BoolArray is a strided view of predicate results.
type BoolArray = Strided[Bool]

// loop opens one session for the whole call and runs body for every
// position in index order. It stops only when body returns an error.
func loop(k kernel.Kernel, n int, body func(s *session.Session, i int) error) error {
	if n == 0 {
		return nil
	}
	s, err := session.Open(k)
	if err != nil {
		return err
	}
	defer s.Close()

	Logger().Debug("dispatch", zap.String("kernel", k.Name()), zap.Int("n", n))
	for i := 0; i < n; i++ {
		if err := body(s, i); err != nil {
			return err
		}
	}
	return nil
}

// validate checks operand bounds and that every present input belongs to
// k. It runs before any session is opened.
func validate(k kernel.Kernel, n int, out interface{ check(string, int) error }, ins ...GeomArray) error {
	if n < 0 {
		return errors.InvalidInput(errors.PhaseDispatch, "negative element count")
	}
	for j, in := range ins {
		name := string(rune('a' + j))
		if err := in.check(name, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if g := in.At(i); !g.IsMissing() && g.Kernel() != k {
				return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
					Detail("operand %s element %d belongs to kernel %s, not %s", name, i, g.Kernel().Name(), k.Name()).
					Build()
			}
			if in.Stride == 0 {
				break
			}
		}
	}
	return out.check("out", n)
}

// PredicateLoop applies fn to n pairs of geometries. A missing input or a
// kernel exception yields NoValue at that position; the loop always
// covers every position.
func PredicateLoop(k kernel.Kernel, fn kernel.PredicateFunc, n int, a, b GeomArray, out BoolArray) error {
	if err := validate(k, n, out, a, b); err != nil {
		return err
	}
	return loop(k, n, func(s *session.Session, i int) error {
		ga, gb := a.At(i), b.At(i)
		if ga.IsMissing() || gb.IsMissing() {
			out.Set(i, NoValue)
			return nil
		}
		out.Set(i, boolFromCode(fn(s.Context(), ga.Pointer(), gb.Pointer())))
		return nil
	})
}

// UnaryPredicateLoop is PredicateLoop for one operand.
func UnaryPredicateLoop(k kernel.Kernel, fn kernel.UnaryPredicateFunc, n int, a GeomArray, out BoolArray) error {
	if err := validate(k, n, out, a); err != nil {
		return err
	}
	return loop(k, n, func(s *session.Session, i int) error {
		ga := a.At(i)
		if ga.IsMissing() {
			out.Set(i, NoValue)
			return nil
		}
		out.Set(i, boolFromCode(fn(s.Context(), ga.Pointer())))
		return nil
	})
}

// ConstructorLoop applies fn to n pairs of geometries and stores newly
// owned results. A missing input or a null kernel result yields a nil
// (missing) geometry. Failing to adopt a result aborts the call.
//
// The previous occupant of each output slot is released just before the
// slot is written, so out may alias a or b element for element.
func ConstructorLoop(k kernel.Kernel, fn kernel.ConstructorFunc, n int, a, b GeomArray, out GeomArray) error {
	if err := validate(k, n, out, a, b); err != nil {
		return err
	}
	return loop(k, n, func(s *session.Session, i int) error {
		ga, gb := a.At(i), b.At(i)
		if ga.IsMissing() || gb.IsMissing() {
			store(s, out, i, nil)
			return nil
		}
		return construct(s, out, i, fn(s.Context(), ga.Pointer(), gb.Pointer()))
	})
}

// UnaryConstructorLoop is ConstructorLoop for one operand.
func UnaryConstructorLoop(k kernel.Kernel, fn kernel.UnaryConstructorFunc, n int, a GeomArray, out GeomArray) error {
	if err := validate(k, n, out, a); err != nil {
		return err
	}
	return loop(k, n, func(s *session.Session, i int) error {
		ga := a.At(i)
		if ga.IsMissing() {
			store(s, out, i, nil)
			return nil
		}
		return construct(s, out, i, fn(s.Context(), ga.Pointer()))
	})
}

func construct(s *session.Session, out GeomArray, i int, p kernel.Geometry) error {
	if p == 0 {
		store(s, out, i, nil)
		return nil
	}
	g, err := geometry.Adopt(s, p)
	if err != nil {
		return err
	}
	store(s, out, i, g)
	return nil
}

func store(s *session.Session, out GeomArray, i int, g *geometry.Geometry) {
	if old := out.At(i); old != nil && old != g {
		old.ReleaseIn(s)
	}
	out.Set(i, g)
}
