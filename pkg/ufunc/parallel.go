package ufunc

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
)

// Parallelism controls how a call is split across goroutines. Each
// partition runs the ordinary loop with its own session.
type Parallelism struct {
	// Workers is the maximum number of partitions. Zero means GOMAXPROCS.
	Workers int
	// MinPartition is the smallest partition worth its own session.
	MinPartition int
}

// Range is a half-open range of output positions.
type Range struct {
	Lo, Hi int
}

// Partition splits n positions into at most parts contiguous ranges of
// nearly equal size.
func Partition(n, parts int) []Range {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	out := make([]Range, 0, parts)
	size, rem := n/parts, n%parts
	lo := 0
	for i := 0; i < parts; i++ {
		hi := lo + size
		if i < rem {
			hi++
		}
		out = append(out, Range{Lo: lo, Hi: hi})
		lo = hi
	}
	return out
}

func (p Parallelism) plan(n int) []Range {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if p.MinPartition > 0 {
		if most := (n + p.MinPartition - 1) / p.MinPartition; most < workers {
			workers = most
		}
	}
	return Partition(n, workers)
}

// run executes body for every range concurrently and combines errors.
// A range whose turn comes after ctx is done is skipped with ctx's error.
func run(ctx context.Context, op string, ranges []Range, body func(r Range) error) error {
	Logger().Debug("partitioned call", zap.String("op", op), zap.Int("partitions", len(ranges)))
	errs := make([]error, len(ranges))
	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = body(r)
		}()
	}
	wg.Wait()
	return multierr.Combine(errs...)
}

// ParallelPredicate is Predicate split across partitions.
func (op *Operation) ParallelPredicate(ctx context.Context, p Parallelism, a, b []*geometry.Geometry) ([]Bool, error) {
	fn, ok := op.fn.(kernel.PredicateFunc)
	if !ok {
		return nil, op.wrongShape(ShapePredicate)
	}
	n, err := broadcastLen(op.Name, len(a), len(b))
	if err != nil {
		return nil, err
	}
	out := make([]Bool, n)
	va, vb, vo := operand(a, n), operand(b, n), Contiguous(out)
	err = run(ctx, op.Name, p.plan(n), func(r Range) error {
		return PredicateLoop(op.k, fn, r.Hi-r.Lo, va.Shift(r.Lo), vb.Shift(r.Lo), vo.Shift(r.Lo))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParallelConstruct is Construct split across partitions. On error every
// result already produced is released.
func (op *Operation) ParallelConstruct(ctx context.Context, p Parallelism, a, b []*geometry.Geometry) ([]*geometry.Geometry, error) {
	fn, ok := op.fn.(kernel.ConstructorFunc)
	if !ok {
		return nil, op.wrongShape(ShapeConstructor)
	}
	n, err := broadcastLen(op.Name, len(a), len(b))
	if err != nil {
		return nil, err
	}
	out := make([]*geometry.Geometry, n)
	va, vb, vo := operand(a, n), operand(b, n), Contiguous(out)
	err = run(ctx, op.Name, p.plan(n), func(r Range) error {
		return ConstructorLoop(op.k, fn, r.Hi-r.Lo, va.Shift(r.Lo), vb.Shift(r.Lo), vo.Shift(r.Lo))
	})
	if err != nil {
		geometry.ReleaseAll(out)
		return nil, err
	}
	return out, nil
}
