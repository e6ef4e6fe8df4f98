// Package backend selects a geometry kernel by name.
package backend

import (
	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/kernel"
	"github.com/chazu/geoarray/pkg/kernel/geos"
	"github.com/chazu/geoarray/pkg/kernel/planar"
	"github.com/chazu/geoarray/pkg/kernel/sdfx"
)

// Kernel names accepted by New.
const (
	Planar = "planar"
	Sdfx   = "sdfx"
	Geos   = "geos"
)

// Names lists the selectable kernels.
func Names() []string {
	return []string{Planar, Sdfx, Geos}
}

// Options tune kernel construction.
type Options struct {
	// SdfxCells is the sampling resolution of the sdfx kernel. Zero uses
	// sdfx.DefaultCells.
	SdfxCells int
}

// New returns the kernel called name. An empty name selects planar.
func New(name string, opts Options) (kernel.Kernel, error) {
	switch name {
	case "", Planar:
		return planar.New(), nil
	case Sdfx:
		if opts.SdfxCells > 0 {
			return sdfx.NewWithCells(opts.SdfxCells), nil
		}
		return sdfx.New(), nil
	case Geos:
		k, err := geos.New()
		if err != nil {
			return nil, errors.Wrap(errors.PhaseKernel, errors.KindUnsupported, err, "kernel geos")
		}
		return k, nil
	}
	return nil, errors.New(errors.PhaseKernel, errors.KindUnsupported).
		Value(name).
		Detail("unknown kernel %q", name).
		Build()
}
