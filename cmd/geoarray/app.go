package main

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/backend"
	"github.com/chazu/geoarray/pkg/config"
	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/script"
	"github.com/chazu/geoarray/pkg/session"
	"github.com/chazu/geoarray/pkg/store"
	"github.com/chazu/geoarray/pkg/ufunc"
)

// App bundles the kernel, its registry, the script engine and the store.
type App struct {
	cfg    *config.Config
	log    *zap.Logger
	kernel kernel.Kernel
	reg    *ufunc.Registry
	engine *script.Engine
	store  *store.Store
}

// EvalErrorData is a JSON-serializable eval error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of an evaluation.
type EvalResult struct {
	Result script.Result   `json:"result"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp builds an App from cfg and installs its logger in every package.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := cfg.Log.Logger()
	if err != nil {
		return nil, err
	}
	installLogger(log)

	k, err := backend.New(cfg.Kernel, cfg.BackendOptions())
	if err != nil {
		log.Error("kernel unavailable", zap.String("kernel", cfg.Kernel), zap.Error(err))
		return nil, err
	}
	reg, err := ufunc.NewRegistry(k)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, kernel: k, reg: reg, store: st}
	a.engine = script.New(reg, script.Options{
		Timeout:     cfg.Script.Timeout,
		Parallelism: a.parallelism(0),
		Store:       st,
	})
	log.Debug("app ready", zap.String("kernel", k.Name()), zap.Int("operations", len(reg.Names())))
	return a, nil
}

func installLogger(l *zap.Logger) {
	geometry.SetLogger(l)
	session.SetLogger(l)
	ufunc.SetLogger(l)
	store.SetLogger(l)
	script.SetLogger(l)
}

// Close releases the store and flushes the logger.
func (a *App) Close() error {
	err := a.store.Close()
	// Sync returns EINVAL for stderr on a terminal.
	_ = a.log.Sync()
	return err
}

// Operations lists the registered operations in name order.
func (a *App) Operations() []ufunc.Descriptor {
	return a.reg.Descriptors()
}

func (a *App) parallelism(workers int) ufunc.Parallelism {
	if workers <= 0 {
		workers = a.cfg.Dispatch.Workers
	}
	return ufunc.Parallelism{Workers: workers, MinPartition: a.cfg.Dispatch.MinPartition}
}

// Evaluate runs a script. The slices of the result are never nil.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{Errors: []EvalErrorData{}}

	res, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		a.log.Warn("evaluation failed", zap.Error(err))
		result.Result = script.Result{Kind: script.KindNil}
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	for _, e := range evalErrs {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	if len(evalErrs) > 0 {
		result.Result = script.Result{Kind: script.KindNil}
		return result
	}
	result.Result = res
	return result
}

// Run applies the operation called name to a and, for binary operations,
// b. With workers > 1 binary operations run partitioned.
func (a *App) Run(ctx context.Context, name string, x, y []*geometry.Geometry, workers int) (script.Result, error) {
	op, err := a.reg.Resolve(name)
	if err != nil {
		return script.Result{}, err
	}
	if op.Shape.Arity() == 2 && y == nil {
		return script.Result{}, errors.ShapeMismatch(name, "binary operation needs a second operand")
	}
	if op.Shape.Arity() == 1 && y != nil {
		return script.Result{}, errors.ShapeMismatch(name, "unary operation takes one operand")
	}
	par := a.parallelism(workers)
	parallel := workers > 1

	switch op.Shape {
	case ufunc.ShapePredicate:
		var bs []ufunc.Bool
		if parallel {
			bs, err = op.ParallelPredicate(ctx, par, x, y)
		} else {
			bs, err = op.Predicate(x, y)
		}
		if err != nil {
			return script.Result{}, err
		}
		return script.Result{Kind: script.KindBools, Bools: bs}, nil

	case ufunc.ShapeUnaryPredicate:
		bs, err := op.UnaryPredicate(x)
		if err != nil {
			return script.Result{}, err
		}
		return script.Result{Kind: script.KindBools, Bools: bs}, nil
	}

	var gs []*geometry.Geometry
	switch {
	case op.Shape == ufunc.ShapeUnaryConstructor:
		gs, err = op.UnaryConstruct(x)
	case parallel:
		gs, err = op.ParallelConstruct(ctx, par, x, y)
	default:
		gs, err = op.Construct(x, y)
	}
	if err != nil {
		return script.Result{}, err
	}
	defer geometry.ReleaseAll(gs)
	wkts, err := toWKT(gs)
	if err != nil {
		return script.Result{}, err
	}
	return script.Result{Kind: script.KindGeometries, Geometries: wkts}, nil
}

func toWKT(gs []*geometry.Geometry) ([]*string, error) {
	out := make([]*string, len(gs))
	var errs error
	for i, g := range gs {
		if g.IsMissing() {
			continue
		}
		w, err := g.WKT()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[i] = &w
	}
	return out, errs
}
