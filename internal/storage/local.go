package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStore serves local file system paths. Keys are file paths with
// forward slashes.
type LocalStore struct{}

func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

func (l *LocalStore) List(ctx context.Context, prefix Path) ([]Object, error) {
	root := prefix.Key
	if !strings.HasSuffix(root, "/") {
		root = path.Dir(root)
	}
	if root == "" {
		root = "."
	}

	var out []Object
	err := filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key := filepath.ToSlash(p)
		if root == "." {
			key = strings.TrimPrefix(key, "./")
		}
		if !strings.HasPrefix(key, strings.TrimPrefix(prefix.Key, "./")) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Object{Path: prefix.WithKey(key), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return out, nil
}

func (l *LocalStore) Open(_ context.Context, p Path) (io.ReadCloser, error) {
	f, err := os.Open(filepath.FromSlash(p.Key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l *LocalStore) Stat(_ context.Context, p Path) (Object, error) {
	info, err := os.Stat(filepath.FromSlash(p.Key))
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return Object{}, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if err != nil {
		return Object{}, err
	}
	return Object{Path: p, Size: info.Size()}, nil
}

func (l *LocalStore) Put(_ context.Context, p Path, body io.ReadSeeker, _ map[string]string) error {
	name := filepath.FromSlash(p.Key)
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", p, err)
	}
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", p, err)
	}
	return f.Close()
}

func (l *LocalStore) Delete(_ context.Context, p Path) error {
	err := os.Remove(filepath.FromSlash(p.Key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) DeletePrefix(ctx context.Context, p Path) (int, error) {
	if strings.Trim(p.Key, "/.") == "" {
		return 0, fmt.Errorf("refusing to delete root directory %q", p.Key)
	}
	objs, err := l.List(ctx, p.Dir())
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(filepath.FromSlash(strings.TrimSuffix(p.Key, "/"))); err != nil {
		return 0, fmt.Errorf("remove %s: %w", p, err)
	}
	return len(objs), nil
}
