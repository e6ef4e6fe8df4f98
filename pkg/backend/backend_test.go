package backend

import (
	stderrors "errors"
	"testing"

	"github.com/chazu/geoarray/pkg/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "planar"},
		{"planar", "planar"},
		{"sdfx", "sdfx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := New(tt.name, Options{})
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.name, err)
			}
			if got := k.Name(); got != tt.want {
				t.Errorf("New(%q).Name() = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("cgal", Options{})
	if !stderrors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("New(cgal) error = %v, want unsupported", err)
	}
}

func TestNewSdfxCells(t *testing.T) {
	k, err := New(Sdfx, Options{SdfxCells: 16})
	if err != nil {
		t.Fatalf("New(sdfx) error = %v", err)
	}
	if k.Name() != "sdfx" {
		t.Fatalf("Name() = %q", k.Name())
	}
}
