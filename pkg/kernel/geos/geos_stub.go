//go:build !geos

// Package geos provides a CGo-based geometry kernel binding to the GEOS
// reentrant C API. When the "geos" build tag is not set, this stub package
// is compiled instead, returning an error from New().
//
// Build with: go build -tags=geos
package geos

import (
	"errors"

	"github.com/chazu/geoarray/pkg/kernel"
)

// New returns an error indicating GEOS is not available.
// Build with -tags=geos to enable.
func New() (kernel.Kernel, error) {
	return nil, errors.New("geos kernel not available: build with -tags=geos")
}
