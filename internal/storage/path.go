package storage

import (
	"fmt"
	"path"
	"strings"
)

// Kinds of backing store a Path can resolve to.
const (
	KindS3    = "s3"
	KindLocal = "file"
)

// Path addresses an object or a prefix in a store.
// Keys always use forward slashes, for local paths too.
type Path struct {
	Scheme string
	Bucket string
	Key    string
}

// ParsePath parses s3://, s3a://, s3n://, file:// URIs and bare local paths.
func ParsePath(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Path{}, fmt.Errorf("empty path")
	}

	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return Path{Scheme: KindLocal, Key: strings.ReplaceAll(raw, "\\", "/")}, nil
	}

	switch scheme {
	case "s3", "s3a", "s3n":
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Path{}, fmt.Errorf("missing bucket in %q", raw)
		}
		return Path{Scheme: scheme, Bucket: bucket, Key: key}, nil
	case "file":
		return Path{Scheme: KindLocal, Key: rest}, nil
	default:
		return Path{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
}

// MustParsePath is ParsePath for literals known to be valid.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Kind reports which store serves this path.
func (p Path) Kind() string {
	switch p.Scheme {
	case "s3", "s3a", "s3n":
		return KindS3
	default:
		return KindLocal
	}
}

func (p Path) String() string {
	if p.Kind() == KindLocal {
		return p.Key
	}
	return p.Scheme + "://" + p.Bucket + "/" + p.Key
}

// Join appends slash separated elements to the key.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{p.Key}, elem...)
	joined := path.Join(parts...)
	if p.Key == "" && strings.HasPrefix(joined, "/") && p.Kind() == KindS3 {
		joined = strings.TrimPrefix(joined, "/")
	}
	p.Key = joined
	return p
}

// WithKey returns a copy of p addressing key in the same bucket.
func (p Path) WithKey(key string) Path {
	p.Key = key
	return p
}

// Dir returns the key with a trailing slash, suitable as a listing prefix
// that does not match sibling keys sharing the same leading characters.
func (p Path) Dir() Path {
	if p.Key != "" && !strings.HasSuffix(p.Key, "/") {
		p.Key += "/"
	}
	return p
}

// Base returns the last element of the key.
func (p Path) Base() string {
	return path.Base(p.Key)
}
