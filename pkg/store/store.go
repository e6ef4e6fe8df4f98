// Package store persists named datasets of geometries in BadgerDB.
//
// A dataset is an ordered list of geometries saved as WKB. Missing entries
// survive a round trip.
package store

import (
	"bytes"
	"encoding/gob"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
	"github.com/chazu/geoarray/pkg/kernel"
)

const prefix = "dataset/"

// record is the stored form of one dataset.
type record struct {
	Kernel  string
	Geoms   [][]byte
	Missing []bool
}

// Store is a handle on a Badger database of datasets.
type Store struct {
	db *badger.DB
}

// Open opens the store at path. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "open "+path)
	}
	Logger().Debug("store opened", zap.String("path", path), zap.Bool("in_memory", path == ""))
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "close")
	}
	return nil
}

func key(name string) []byte { return []byte(prefix + name) }

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\n") {
		return errors.InvalidInput(errors.PhaseStore, fmt.Sprintf("invalid dataset name %q", name))
	}
	return nil
}

// Put saves gs under name, replacing any previous dataset.
func (s *Store) Put(name string, gs []*geometry.Geometry) error {
	if err := validName(name); err != nil {
		return err
	}
	rec := record{Geoms: make([][]byte, len(gs)), Missing: make([]bool, len(gs))}
	for i, g := range gs {
		if g.IsMissing() {
			rec.Missing[i] = true
			continue
		}
		if rec.Kernel == "" {
			rec.Kernel = g.Kernel().Name()
		}
		b, err := g.WKB()
		if err != nil {
			return errors.New(errors.PhaseStore, errors.KindStorage).
				Op(name).
				Cause(err).
				Detail("encode entry %d", i).
				Build()
		}
		rec.Geoms[i] = b
	}
	data, err := serialize(&rec)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "encode "+name)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(name), data)
	})
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "put "+name)
	}
	Logger().Debug("dataset saved", zap.String("name", name), zap.Int("size", len(gs)))
	return nil
}

// Get loads the dataset called name into kernel k. The caller owns the
// returned geometries.
func (s *Store) Get(k kernel.Kernel, name string) ([]*geometry.Geometry, error) {
	var rec *record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec, err = deserialize(val)
			return err
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.NotFound(errors.PhaseStore, "dataset "+name)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "get "+name)
	}
	if rec.Kernel != "" && rec.Kernel != k.Name() {
		Logger().Debug("dataset saved by another kernel", zap.String("name", name), zap.String("saved", rec.Kernel), zap.String("kernel", k.Name()))
	}

	out := make([]*geometry.Geometry, len(rec.Geoms))
	for i, b := range rec.Geoms {
		if rec.Missing[i] {
			continue
		}
		g, err := geometry.FromWKB(k, b)
		if err != nil {
			geometry.ReleaseAll(out)
			return nil, errors.New(errors.PhaseStore, errors.KindStorage).
				Op(name).
				Cause(err).
				Detail("decode entry %d", i).
				Build()
		}
		out[i] = g
	}
	return out, nil
}

// Delete removes the dataset called name.
func (s *Store) Delete(name string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(name)); err != nil {
			return err
		}
		return txn.Delete(key(name))
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.NotFound(errors.PhaseStore, "dataset "+name)
	}
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "delete "+name)
	}
	return nil
}

// List returns the dataset names in sorted order.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), prefix))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindStorage, err, "list")
	}
	sort.Strings(names)
	return names, nil
}

func serialize(rec *record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return buf.Bytes(), nil
}

func deserialize(data []byte) (*record, error) {
	var rec record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decoding dataset: %w", err)
	}
	if len(rec.Missing) != len(rec.Geoms) {
		return nil, fmt.Errorf("decoding dataset: %d entries, %d missing flags", len(rec.Geoms), len(rec.Missing))
	}
	return &rec, nil
}
