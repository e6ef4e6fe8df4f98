package session

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel/kerneltest"
)

func TestOpenClose(t *testing.T) {
	k := kerneltest.New()

	s, err := Open(k)
	require.NoError(t, err)
	assert.NotZero(t, s.Context())
	assert.Equal(t, k, s.Kernel())
	assert.Equal(t, 1, k.OpenSessions())

	s.Close()
	s.Close()
	inits, finishes := k.Sessions()
	assert.Equal(t, 1, inits)
	assert.Equal(t, 1, finishes, "Close must finish the context exactly once")
	assert.Empty(t, k.Violations())
}

func TestOpenFailure(t *testing.T) {
	k := kerneltest.New()
	k.FailInit = true

	s, err := Open(k)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrEngineInit), "got %v", err)
}

func TestDoClosesOnError(t *testing.T) {
	k := kerneltest.New()
	boom := stderrors.New("boom")

	err := Do(k, func(s *Session) error {
		assert.Equal(t, 1, k.OpenSessions())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, k.OpenSessions())
}

func TestDoClosesOnPanic(t *testing.T) {
	k := kerneltest.New()

	assert.Panics(t, func() {
		_ = Do(k, func(s *Session) error {
			panic("kernel exploded")
		})
	})
	assert.Equal(t, 0, k.OpenSessions())
	assert.Empty(t, k.Violations())
}

func TestDoInitFailure(t *testing.T) {
	k := kerneltest.New()
	k.FailInit = true
	called := false

	err := Do(k, func(s *Session) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, errors.ErrEngineInit)
}
