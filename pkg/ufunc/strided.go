package ufunc

import "github.com/chazu/geoarray/pkg/errors"

// Strided describes a one-dimensional view into Data. Element i lives at
// Data[Offset+i*Stride]. A zero stride repeats one element for every
// position, which is how a scalar broadcasts against an array.
type Strided[T any] struct {
	Data   []T
	Offset int
	Stride int
}

// Contiguous views every element of data in order.
func Contiguous[T any](data []T) Strided[T] {
	return Strided[T]{Data: data, Stride: 1}
}

// Broadcast views data[i] at every position.
func Broadcast[T any](data []T, i int) Strided[T] {
	return Strided[T]{Data: data, Offset: i}
}

func (s Strided[T]) index(i int) int { return s.Offset + i*s.Stride }

// At returns element i.
func (s Strided[T]) At(i int) T { return s.Data[s.index(i)] }

// Set stores v at element i.
func (s Strided[T]) Set(i int, v T) { s.Data[s.index(i)] = v }

// Shift returns the view starting at element lo.
func (s Strided[T]) Shift(lo int) Strided[T] {
	return Strided[T]{Data: s.Data, Offset: s.index(lo), Stride: s.Stride}
}

// check verifies that the first n elements are addressable. The index is
// linear in i, so checking both ends covers every element.
func (s Strided[T]) check(name string, n int) error {
	if n == 0 {
		return nil
	}
	for _, i := range [2]int{0, n - 1} {
		if idx := s.index(i); idx < 0 || idx >= len(s.Data) {
			return errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
				Value(idx).
				Detail("operand %s: element %d maps to index %d outside [0, %d)", name, i, idx, len(s.Data)).
				Build()
		}
	}
	return nil
}
