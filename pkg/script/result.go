package script

import (
	"fmt"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/geoarray/pkg/ufunc"
)

// Result kinds.
const (
	KindNil        = "nil"
	KindGeometries = "geometries"
	KindBools      = "bools"
	KindNumber     = "number"
	KindBool       = "bool"
	KindString     = "string"
)

// Result is the value of a program's last expression, detached from the
// kernel.
type Result struct {
	Kind string `json:"kind"`
	// Geometries holds WKT, nil for a missing entry.
	Geometries []*string    `json:"geometries,omitempty"`
	Bools      []ufunc.Bool `json:"bools,omitempty"`
	Number     *float64     `json:"number,omitempty"`
	Bool       *bool        `json:"bool,omitempty"`
	String     *string      `json:"string,omitempty"`
}

func convert(v zygo.Sexp) (Result, error) {
	switch x := v.(type) {
	case *sexpGeoms:
		out := make([]*string, len(x.gs))
		for i, g := range x.gs {
			if g.IsMissing() {
				continue
			}
			wkt, err := g.WKT()
			if err != nil {
				return Result{}, fmt.Errorf("result entry %d: %w", i, err)
			}
			out[i] = &wkt
		}
		return Result{Kind: KindGeometries, Geometries: out}, nil
	case *sexpBools:
		return Result{Kind: KindBools, Bools: append([]ufunc.Bool{}, x.bs...)}, nil
	case *zygo.SexpInt:
		f := float64(x.Val)
		return Result{Kind: KindNumber, Number: &f}, nil
	case *zygo.SexpFloat:
		f := x.Val
		return Result{Kind: KindNumber, Number: &f}, nil
	case *zygo.SexpBool:
		b := x.Val
		return Result{Kind: KindBool, Bool: &b}, nil
	case *zygo.SexpStr:
		s := x.S
		return Result{Kind: KindString, String: &s}, nil
	}
	if v == nil || v == zygo.SexpNull {
		return Result{Kind: KindNil}, nil
	}
	s := v.SexpString(nil)
	return Result{Kind: KindString, String: &s}, nil
}
