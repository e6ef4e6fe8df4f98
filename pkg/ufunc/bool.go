package ufunc

import "github.com/chazu/geoarray/pkg/kernel"

// Bool is a predicate result. NoValue marks a position whose inputs were
// missing or on which the kernel raised an exception.
type Bool int8

const (
	NoValue Bool = -1
	False   Bool = 0
	True    Bool = 1
)

func boolFromCode(c byte) Bool {
	switch c {
	case kernel.PredicateFalse:
		return False
	case kernel.PredicateTrue:
		return True
	}
	return NoValue
}

// BoolOf converts a Go bool.
func BoolOf(v bool) Bool {
	if v {
		return True
	}
	return False
}

// Valid reports whether b holds a value.
func (b Bool) Valid() bool { return b == False || b == True }

// Value returns the boolean and whether it is present.
func (b Bool) Value() (v, ok bool) { return b == True, b.Valid() }

func (b Bool) String() string {
	switch b {
	case False:
		return "false"
	case True:
		return "true"
	}
	return "none"
}

// MarshalJSON encodes NoValue as null.
func (b Bool) MarshalJSON() ([]byte, error) {
	switch b {
	case False:
		return []byte("false"), nil
	case True:
		return []byte("true"), nil
	}
	return []byte("null"), nil
}
