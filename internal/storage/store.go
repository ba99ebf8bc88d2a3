// Package storage is the object storage layer the engine reads raw datasets
// from and writes tables to. S3 (and S3 compatible endpoints) are served by
// S3Store, local directories by LocalStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNotFound          = errors.New("object not found")
	ErrUnsupportedScheme = errors.New("unsupported path scheme")
)

// Object is a listed or stat'ed object.
type Object struct {
	Path Path
	Size int64
}

// Store is the subset of object storage the job needs.
type Store interface {
	// List returns every object whose key starts with prefix.Key.
	List(ctx context.Context, prefix Path) ([]Object, error)
	Open(ctx context.Context, p Path) (io.ReadCloser, error)
	Stat(ctx context.Context, p Path) (Object, error)
	// Put writes body to p, replacing any existing object.
	Put(ctx context.Context, p Path, body io.ReadSeeker, metadata map[string]string) error
	Delete(ctx context.Context, p Path) error
	// DeletePrefix removes everything under the directory p and returns
	// the number of objects removed.
	DeletePrefix(ctx context.Context, p Path) (int, error)
}

// Mux routes paths to the store registered for their kind.
type Mux struct {
	stores map[string]Store
}

func NewMux() *Mux {
	return &Mux{stores: make(map[string]Store)}
}

// Register binds a store to a path kind (KindS3 or KindLocal).
func (m *Mux) Register(kind string, s Store) {
	m.stores[kind] = s
}

// Resolve returns the store serving p.
func (m *Mux) Resolve(p Path) (Store, error) {
	s, ok := m.stores[p.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: no store registered for %s", ErrUnsupportedScheme, p)
	}
	return s, nil
}

// CheckWritable checks that dir is writable by writing and removing a marker object.
func CheckWritable(ctx context.Context, s Store, dir Path) error {
	marker := dir.Join(".etl-connection-test")
	if err := s.Put(ctx, marker, strings.NewReader("connection test"), nil); err != nil {
		return fmt.Errorf("write marker %s: %w", marker, err)
	}
	if err := s.Delete(ctx, marker); err != nil {
		return fmt.Errorf("remove marker %s: %w", marker, err)
	}
	return nil
}
