// Package directory answers which user names the UI may pick from.
package directory

import (
	"context"
	"sort"
	"strings"
)

// NameSource yields the names already present in stored records.
type NameSource interface {
	Names(ctx context.Context) ([]string, error)
}

// Directory returns a configured list when one is set and falls back to the
// names found in the record store otherwise.
type Directory struct {
	static []string
	source NameSource
}

func New(static []string, source NameSource) *Directory {
	return &Directory{static: Normalize(static), source: source}
}

// Normalize trims, drops empty entries and removes duplicates while keeping
// the configured order.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (d *Directory) Users(ctx context.Context) ([]string, error) {
	if len(d.static) > 0 {
		out := make([]string, len(d.static))
		copy(out, d.static)
		return out, nil
	}
	if d.source == nil {
		return []string{}, nil
	}
	names, err := d.source.Names(ctx)
	if err != nil {
		return nil, err
	}
	names = Normalize(names)
	sort.Strings(names)
	return names, nil
}
