// Package universe resolves index baskets into a scan universe.
package universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/newthinker/bigthing/internal/core"
)

// Provider lists the constituents of a named basket.
type Provider interface {
	ListConstituents(ctx context.Context, basket string) ([]string, error)
}

// Static serves baskets from configuration.
type Static map[string][]string

func (s Static) ListConstituents(_ context.Context, basket string) ([]string, error) {
	syms, ok := s[basket]
	if !ok {
		return nil, core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("basket %q", basket))
	}
	return syms, nil
}

// File reads <Dir>/<basket>.txt, one symbol per line. Blank lines and lines
// starting with # are ignored.
type File struct {
	Dir string
}

func (f File) ListConstituents(ctx context.Context, basket string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.Dir, basket+".txt")
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open basket %s: %w", basket, err)
	}
	defer fh.Close()

	var syms []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		syms = append(syms, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read basket %s: %w", basket, err)
	}
	return syms, nil
}

// Chain tries each provider in turn and returns the first answer.
type Chain []Provider

func (c Chain) ListConstituents(ctx context.Context, basket string) ([]string, error) {
	var lastErr error
	for _, p := range c {
		syms, err := p.ListConstituents(ctx, basket)
		if err == nil {
			return syms, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = core.WrapError(core.ErrSymbolNotFound, fmt.Errorf("basket %q", basket))
	}
	return nil, lastErr
}

// Build unions the baskets, drops excluded symbols and returns the rest
// upper-cased and sorted.
func Build(ctx context.Context, p Provider, baskets []string, exclude []string) ([]string, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, s := range exclude {
		skip[normalize(s)] = struct{}{}
	}

	seen := make(map[string]struct{})
	for _, b := range baskets {
		syms, err := p.ListConstituents(ctx, b)
		if err != nil {
			return nil, err
		}
		for _, s := range syms {
			s = normalize(s)
			if s == "" {
				continue
			}
			if _, ok := skip[s]; ok {
				continue
			}
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
