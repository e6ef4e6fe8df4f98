package geometry

import (
	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/session"
)

// FromWKT parses wkt with k and adopts the result.
func FromWKT(k kernel.Kernel, wkt string) (*Geometry, error) {
	return read(k, func(s *session.Session) kernel.Geometry {
		return k.ReadWKT(s.Context(), wkt)
	}, "WKT "+preview(wkt))
}

// FromWKB parses wkb with k and adopts the result.
func FromWKB(k kernel.Kernel, wkb []byte) (*Geometry, error) {
	return read(k, func(s *session.Session) kernel.Geometry {
		return k.ReadWKB(s.Context(), wkb)
	}, "WKB")
}

func read(k kernel.Kernel, fn func(s *session.Session) kernel.Geometry, what string) (*Geometry, error) {
	var g *Geometry
	err := session.Do(k, func(s *session.Session) error {
		p := fn(s)
		if p == 0 {
			return errors.New(errors.PhaseConstruct, errors.KindInvalidInput).
				Detail("kernel %s cannot parse %s", k.Name(), what).
				Build()
		}
		var err error
		g, err = Adopt(s, p)
		return err
	})
	return g, err
}

// WKT writes g as well-known text.
func (g *Geometry) WKT() (string, error) {
	var out string
	err := g.write(func(s *session.Session) bool {
		var ok bool
		out, ok = g.k.WriteWKT(s.Context(), g.Pointer())
		return ok
	}, "WKT")
	return out, err
}

// WKB writes g as well-known binary.
func (g *Geometry) WKB() ([]byte, error) {
	var out []byte
	err := g.write(func(s *session.Session) bool {
		var ok bool
		out, ok = g.k.WriteWKB(s.Context(), g.Pointer())
		return ok
	}, "WKB")
	return out, err
}

func (g *Geometry) write(fn func(s *session.Session) bool, format string) error {
	if g.IsMissing() {
		return errors.InvalidInput(errors.PhaseConstruct, "cannot encode a missing geometry")
	}
	return session.Do(g.k, func(s *session.Session) error {
		if !fn(s) {
			return errors.Unsupported(errors.PhaseConstruct, "kernel "+g.k.Name()+" cannot write this geometry as "+format)
		}
		return nil
	})
}

func preview(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
