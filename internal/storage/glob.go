package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const globMeta = "*?[{\\"

// Glob lists the objects matching pattern.Key, sorted by key.
//
// A pattern without glob characters names either a single object or a
// directory; a directory expands to every visible object below it.
// Objects whose base name starts with "_" or "." are never returned,
// which skips markers such as _SUCCESS.
func Glob(ctx context.Context, s Store, pattern Path) ([]Object, error) {
	if !doublestar.ValidatePattern(pattern.Key) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern.Key)
	}

	var (
		objs []Object
		err  error
	)
	if !strings.ContainsAny(pattern.Key, globMeta) {
		objs, err = globLiteral(ctx, s, pattern)
	} else {
		objs, err = globPattern(ctx, s, pattern)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(objs, func(i, j int) bool { return objs[i].Path.Key < objs[j].Path.Key })
	return objs, nil
}

func globPattern(ctx context.Context, s Store, pattern Path) ([]Object, error) {
	listed, err := s.List(ctx, pattern.WithKey(literalPrefix(pattern.Key)))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}

	var out []Object
	for _, obj := range listed {
		if hidden(obj.Path.Key) {
			continue
		}
		ok, err := doublestar.Match(pattern.Key, obj.Path.Key)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", pattern, err)
		}
		if ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func globLiteral(ctx context.Context, s Store, p Path) ([]Object, error) {
	obj, err := s.Stat(ctx, p)
	if err == nil {
		return []Object{obj}, nil
	}

	listed, lerr := s.List(ctx, p.Dir())
	if lerr != nil {
		return nil, fmt.Errorf("list %s: %w", p, lerr)
	}
	var out []Object
	for _, o := range listed {
		if !hidden(o.Path.Key) {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return out, nil
}

// literalPrefix returns the part of the pattern before the directory that
// holds the first glob character.
func literalPrefix(pattern string) string {
	i := strings.IndexAny(pattern, globMeta)
	if i < 0 {
		return pattern
	}
	j := strings.LastIndex(pattern[:i], "/")
	if j < 0 {
		return ""
	}
	return pattern[:j+1]
}

func hidden(key string) bool {
	base := path.Base(key)
	return strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".")
}
