package store

import (
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel/planar"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func wkts(t *testing.T, gs []*geometry.Geometry) []string {
	t.Helper()
	out := make([]string, len(gs))
	for i, g := range gs {
		if g.IsMissing() {
			continue
		}
		w, err := g.WKT()
		require.NoError(t, err)
		out[i] = w
	}
	return out
}

func TestPutGetRoundTrip(t *testing.T) {
	k := planar.New()
	s := openMemory(t)

	a, err := geometry.FromWKT(k, "POINT (1 2)")
	require.NoError(t, err)
	b, err := geometry.FromWKT(k, "POLYGON ((0 0, 2 0, 2 2, 0 2, 0 0))")
	require.NoError(t, err)
	in := []*geometry.Geometry{a, nil, b}
	defer geometry.ReleaseAll(in)

	require.NoError(t, s.Put("parcels", in))

	out, err := s.Get(k, "parcels")
	require.NoError(t, err)
	defer geometry.ReleaseAll(out)

	require.Len(t, out, 3)
	assert.True(t, out[1].IsMissing(), "missing entries survive")
	assert.Equal(t, wkts(t, in), wkts(t, out))
}

func TestPutReplaces(t *testing.T) {
	k := planar.New()
	s := openMemory(t)

	g, err := geometry.FromWKT(k, "POINT (0 0)")
	require.NoError(t, err)
	defer g.Release()

	require.NoError(t, s.Put("d", []*geometry.Geometry{g, g}))
	require.NoError(t, s.Put("d", []*geometry.Geometry{g}))

	out, err := s.Get(k, "d")
	require.NoError(t, err)
	defer geometry.ReleaseAll(out)
	assert.Len(t, out, 1)
}

func TestEmptyDataset(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Put("empty", nil))

	out, err := s.Get(planar.New(), "empty")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListSorted(t *testing.T) {
	s := openMemory(t)
	for _, name := range []string{"roads", "buildings", "parcels"} {
		require.NoError(t, s.Put(name, nil))
	}
	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"buildings", "parcels", "roads"}, names)
}

func TestDelete(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Put("tmp", nil))
	require.NoError(t, s.Delete("tmp"))

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	err = s.Delete("tmp")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestGetUnknown(t *testing.T) {
	s := openMemory(t)
	_, err := s.Get(planar.New(), "nope")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestInvalidName(t *testing.T) {
	s := openMemory(t)
	for _, name := range []string{"", "a/b"} {
		err := s.Put(name, nil)
		assert.True(t, stderrors.Is(err, errors.ErrInvalidInput), "name %q", name)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	k := planar.New()
	dir := filepath.Join(t.TempDir(), "db")

	s, err := Open(dir)
	require.NoError(t, err)
	g, err := geometry.FromWKT(k, "LINESTRING (0 0, 1 1)")
	require.NoError(t, err)
	defer g.Release()
	require.NoError(t, s.Put("lines", []*geometry.Geometry{g}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	out, err := s.Get(k, "lines")
	require.NoError(t, err)
	defer geometry.ReleaseAll(out)
	assert.Equal(t, []string{"LINESTRING (0 0, 1 1)"}, wkts(t, out))
}

func TestDecodeRejectsCorrupt(t *testing.T) {
	_, err := deserialize([]byte("not gob"))
	assert.Error(t, err)

	data, err := serialize(&record{Geoms: make([][]byte, 2), Missing: []bool{true}})
	require.NoError(t, err)
	_, err = deserialize(data)
	assert.Error(t, err)
}
