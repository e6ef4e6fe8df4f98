// Package session scopes access to a kernel context.
//
// A kernel is not safe to call without a context, and a context is not
// safe to share between goroutines. Bulk calls open one Session, use it
// for every element, and close it on every exit path.
package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel"
)

// Session is an open kernel context.
type Session struct {
	k    kernel.Kernel
	ctx  kernel.Context
	once sync.Once
}

// Open acquires a fresh context from k.
func Open(k kernel.Kernel) (*Session, error) {
	ctx := k.Init()
	if ctx == 0 {
		err := errors.EngineInit(k.Name())
		Logger().Error("kernel init failed", zap.String("kernel", k.Name()))
		return nil, err
	}
	Logger().Debug("session opened", zap.String("kernel", k.Name()), zap.Uint64("ctx", uint64(ctx)))
	return &Session{k: k, ctx: ctx}, nil
}

// Close releases the context. Calls after the first are no-ops.
func (s *Session) Close() {
	s.once.Do(func() {
		s.k.Finish(s.ctx)
		Logger().Debug("session closed", zap.String("kernel", s.k.Name()), zap.Uint64("ctx", uint64(s.ctx)))
	})
}

// Context returns the raw token for kernel calls.
func (s *Session) Context() kernel.Context { return s.ctx }

// Kernel returns the kernel that owns the context.
func (s *Session) Kernel() kernel.Kernel { return s.k }

// Do opens a session on k, runs fn and closes the session, also when fn
// panics.
func Do(k kernel.Kernel, fn func(s *Session) error) error {
	s, err := Open(k)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
