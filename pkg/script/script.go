// Package script evaluates zygomys programs over geometry arrays.
//
// Each evaluation runs in a fresh sandbox with one builtin per registered
// operation, so
//
//	(intersects (geom "POINT (0 0)") (geom "POINT (1 1)"))
//
// yields [false]. Every geometry created by a program is released when
// its evaluation ends.
package script

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/store"
	"github.com/chazu/geoarray/pkg/ufunc"
)

// DefaultTimeout is used when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// EvalError is a non-fatal error in user code, such as a parse error or a
// failing builtin.
type EvalError struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Options configures an Engine.
type Options struct {
	Timeout     time.Duration
	Parallelism ufunc.Parallelism
	// Store backs the dataset builtin. It may be nil.
	Store *store.Store
}

// Engine evaluates programs against one registry. It is safe for
// concurrent use; a result that comes back after a newer evaluation has
// started is discarded.
type Engine struct {
	reg     *ufunc.Registry
	store   *store.Store
	par     ufunc.Parallelism
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// New returns an engine over reg.
func New(reg *ufunc.Registry, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Engine{reg: reg, store: opts.Store, par: opts.Parallelism, timeout: opts.Timeout}
}

type outcome struct {
	res  Result
	errs []EvalError
	err  error
}

// Evaluate runs source and converts the value of its last expression.
//
//   - On success it returns the result with nil eval errors.
//   - On a parse or runtime error in user code it returns eval errors.
//   - On timeout, panic or supersession it returns a fatal error.
func (e *Engine) Evaluate(source string) (Result, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: errors.New(errors.PhaseScript, errors.KindScript).
					Value(r).
					Detail("panic during evaluation: %v", r).
					Build()}
			}
		}()
		res, errs, err := e.evaluate(ctx, source)
		ch <- outcome{res: res, errs: errs, err: err}
	}()

	select {
	case out := <-ch:
		e.mu.Lock()
		current := e.generation
		e.mu.Unlock()
		if gen != current {
			return Result{}, nil, errors.New(errors.PhaseScript, errors.KindScript).
				Detail("evaluation superseded by newer request").Build()
		}
		return out.res, out.errs, out.err
	case <-ctx.Done():
		Logger().Warn("evaluation timed out", zap.Duration("timeout", e.timeout))
		return Result{}, nil, errors.New(errors.PhaseScript, errors.KindScript).
			Cause(ctx.Err()).
			Detail("evaluation timed out after %s", e.timeout).
			Build()
	}
}

func (e *Engine) evaluate(ctx context.Context, source string) (Result, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return Result{Kind: KindNil}, nil, nil
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	a := &arena{}
	defer a.release()
	e.registerBuiltins(ctx, env, a)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return Result{}, parseZygomysError(err), nil
	}
	v, err := env.Run()
	if err != nil {
		return Result{}, parseZygomysError(err), nil
	}
	res, err := convert(v)
	if err != nil {
		return Result{}, []EvalError{{Message: err.Error()}}, nil
	}
	Logger().Debug("evaluated", zap.String("kind", res.Kind), zap.Int("geometries", len(a.gs)))
	return res, nil, nil
}

var (
	linePattern      = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)
	linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)
)

// parseZygomysError extracts the line number zygomys puts in its
// messages, if any.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
