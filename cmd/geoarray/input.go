package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/geoarray/pkg/errors"
	"github.com/chazu/geoarray/pkg/geometry"
)

// missingLine marks a missing entry in a WKT file, as does an empty line.
const missingLine = "NULL"

// load resolves an operand: "@name" reads a dataset from the store, "-"
// reads standard input, anything else is a file with one WKT per line.
// The caller owns the returned geometries.
func (a *App) load(src string, stdin io.Reader) ([]*geometry.Geometry, error) {
	if name, ok := strings.CutPrefix(src, "@"); ok {
		return a.store.Get(a.kernel, name)
	}
	if src == "-" {
		return a.readWKT(stdin, "stdin")
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConstruct, errors.KindNotFound, err, "open "+src)
	}
	defer f.Close()
	return a.readWKT(f, src)
}

func (a *App) readWKT(r io.Reader, name string) ([]*geometry.Geometry, error) {
	var out []*geometry.Geometry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.EqualFold(text, missingLine) {
			out = append(out, nil)
			continue
		}
		g, err := geometry.FromWKT(a.kernel, text)
		if err != nil {
			geometry.ReleaseAll(out)
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		out = append(out, g)
	}
	if err := sc.Err(); err != nil {
		geometry.ReleaseAll(out)
		return nil, errors.Wrap(errors.PhaseConstruct, errors.KindInvalidInput, err, "read "+name)
	}
	return out, nil
}
