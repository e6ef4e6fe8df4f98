package script

import (
	"context"
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/ufunc"
)

// sexpGeoms carries a geometry array between builtins. The geometries
// belong to the evaluation's arena.
type sexpGeoms struct {
	gs []*geometry.Geometry
}

func (s *sexpGeoms) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(s.gs))
	for i, g := range s.gs {
		parts[i] = g.String()
	}
	return "(geoms " + strings.Join(parts, ", ") + ")"
}
func (s *sexpGeoms) Type() *zygo.RegisteredType { return nil }

// sexpBools carries a predicate result.
type sexpBools struct {
	bs []ufunc.Bool
}

func (s *sexpBools) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(s.bs))
	for i, b := range s.bs {
		parts[i] = b.String()
	}
	return "(bools " + strings.Join(parts, " ") + ")"
}
func (s *sexpBools) Type() *zygo.RegisteredType { return nil }

// arena owns every geometry created during one evaluation.
type arena struct {
	gs []*geometry.Geometry
}

func (a *arena) keep(gs []*geometry.Geometry) *sexpGeoms {
	a.gs = append(a.gs, gs...)
	return &sexpGeoms{gs: gs}
}

func (a *arena) release() {
	geometry.ReleaseAll(a.gs)
	a.gs = nil
}

// kwArgs is an argument list split into positional and keyword parts.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

func parseArgs(args []zygo.Sexp) kwArgs {
	out := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			out.positional = append(out.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			out.kw[name] = args[i+1]
			i++
		} else {
			out.kw[name] = zygo.SexpNull
		}
	}
	return out
}

func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if v.Val == float64(int(v.Val)) {
			return int(v.Val), nil
		}
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toGeoms(s zygo.Sexp) ([]*geometry.Geometry, error) {
	if g, ok := s.(*sexpGeoms); ok {
		return g.gs, nil
	}
	return nil, fmt.Errorf("expected geometry array, got %T (%s)", s, s.SexpString(nil))
}

// registerBuiltins installs geom, none, size, dataset and one builtin
// per registered operation. Source must go through preprocessSource
// first so keywords are recognizable.
func (e *Engine) registerBuiltins(ctx context.Context, env *zygo.Zlisp, a *arena) {
	k := e.reg.Kernel()

	env.AddFunction("geom", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		gs := make([]*geometry.Geometry, len(args))
		for i, arg := range args {
			if arg == zygo.SexpNull {
				continue
			}
			wkt, err := toString(arg)
			if err != nil {
				geometry.ReleaseAll(gs)
				return zygo.SexpNull, fmt.Errorf("geom: argument %d: %w", i+1, err)
			}
			g, err := geometry.FromWKT(k, wkt)
			if err != nil {
				geometry.ReleaseAll(gs)
				return zygo.SexpNull, fmt.Errorf("geom: argument %d: %w", i+1, err)
			}
			gs[i] = g
		}
		return a.keep(gs), nil
	})

	env.AddFunction("none", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 0 {
			return zygo.SexpNull, fmt.Errorf("none takes no arguments, got %d", len(args))
		}
		return &sexpGeoms{gs: []*geometry.Geometry{nil}}, nil
	})

	env.AddFunction("size", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("size requires exactly 1 argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case *sexpGeoms:
			return &zygo.SexpInt{Val: int64(len(v.gs))}, nil
		case *sexpBools:
			return &zygo.SexpInt{Val: int64(len(v.bs))}, nil
		}
		return zygo.SexpNull, fmt.Errorf("size: expected array, got %T (%s)", args[0], args[0].SexpString(nil))
	})

	env.AddFunction("dataset", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if e.store == nil {
			return zygo.SexpNull, fmt.Errorf("dataset: no store configured")
		}
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("dataset requires a name argument")
		}
		ds, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("dataset: name: %w", err)
		}
		gs, err := e.store.Get(k, ds)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("dataset: %w", err)
		}
		return a.keep(gs), nil
	})

	for _, d := range e.reg.Descriptors() {
		op, err := e.reg.Resolve(d.Name)
		if err != nil {
			continue
		}
		env.AddFunction(d.Name, e.opBuiltin(ctx, op, a))
	}
}

// opBuiltin adapts op to a zygomys function taking Arity arrays and an
// optional :workers keyword for binary calls.
func (e *Engine) opBuiltin(ctx context.Context, op *ufunc.Operation, a *arena) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		p := parseArgs(args)
		if len(p.positional) != op.Shape.Arity() {
			return zygo.SexpNull, fmt.Errorf("%s requires %d geometry arrays, got %d", op.Name, op.Shape.Arity(), len(p.positional))
		}
		operands := make([][]*geometry.Geometry, len(p.positional))
		for i, arg := range p.positional {
			gs, err := toGeoms(arg)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", op.Name, i+1, err)
			}
			operands[i] = gs
		}

		par := e.par
		parallel := false
		for key, v := range p.kw {
			switch key {
			case "workers":
				n, err := toInt(v)
				if err != nil || n < 1 {
					return zygo.SexpNull, fmt.Errorf("%s: workers: want a positive integer, got %s", op.Name, v.SexpString(nil))
				}
				if op.Shape.Arity() != 2 {
					return zygo.SexpNull, fmt.Errorf("%s: workers applies to binary operations only", op.Name)
				}
				par.Workers = n
				parallel = true
			default:
				return zygo.SexpNull, fmt.Errorf("%s: unknown keyword :%s", op.Name, key)
			}
		}

		switch op.Shape {
		case ufunc.ShapePredicate:
			var bs []ufunc.Bool
			var err error
			if parallel {
				bs, err = op.ParallelPredicate(ctx, par, operands[0], operands[1])
			} else {
				bs, err = op.Predicate(operands[0], operands[1])
			}
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op.Name, err)
			}
			return &sexpBools{bs: bs}, nil

		case ufunc.ShapeUnaryPredicate:
			bs, err := op.UnaryPredicate(operands[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op.Name, err)
			}
			return &sexpBools{bs: bs}, nil

		case ufunc.ShapeConstructor:
			var gs []*geometry.Geometry
			var err error
			if parallel {
				gs, err = op.ParallelConstruct(ctx, par, operands[0], operands[1])
			} else {
				gs, err = op.Construct(operands[0], operands[1])
			}
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op.Name, err)
			}
			return a.keep(gs), nil

		case ufunc.ShapeUnaryConstructor:
			gs, err := op.UnaryConstruct(operands[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op.Name, err)
			}
			return a.keep(gs), nil
		}
		return zygo.SexpNull, fmt.Errorf("%s: unsupported shape %s", op.Name, op.Shape)
	}
}
