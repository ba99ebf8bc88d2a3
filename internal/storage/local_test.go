package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func TestLocalStore_PutOpenStat(t *testing.T) {
	ctx := context.Background()
	root := filepath.ToSlash(t.TempDir())
	s := NewLocalStore()

	p := MustParsePath(root).Join("nested", "dir", "file.txt")
	require.NoError(t, s.Put(ctx, p, strings.NewReader("hello"), nil))

	obj, err := s.Stat(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)

	rc, err := s.Open(ctx, p)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestLocalStore_MissingObjects(t *testing.T) {
	ctx := context.Background()
	root := MustParsePath(filepath.ToSlash(t.TempDir()))
	s := NewLocalStore()

	_, err := s.Open(ctx, root.Join("nope"))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Stat(ctx, root)
	require.ErrorIs(t, err, ErrNotFound, "directories are not objects")

	objs, err := s.List(ctx, root.Join("does", "not", "exist").Dir())
	require.NoError(t, err)
	assert.Empty(t, objs)

	require.NoError(t, s.Delete(ctx, root.Join("nope")))
}

func TestLocalStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	dir := filepath.ToSlash(t.TempDir())
	writeFiles(t, dir, map[string]string{
		"songs.parquet/year=2000/part-0.parquet": "x",
		"songs.parquet/_SUCCESS":                 "",
		"songs.parquet_old/part-0.parquet":       "x",
	})
	s := NewLocalStore()

	n, err := s.DeletePrefix(ctx, MustParsePath(dir).Join("songs.parquet"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = os.Stat(filepath.Join(dir, "songs.parquet"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "songs.parquet_old", "part-0.parquet"))
	assert.NoError(t, err)
}

func TestLocalStore_DeletePrefixRefusesRoot(t *testing.T) {
	_, err := NewLocalStore().DeletePrefix(context.Background(), MustParsePath("/"))
	require.Error(t, err)
}

func TestGlob(t *testing.T) {
	ctx := context.Background()
	dir := filepath.ToSlash(t.TempDir())
	writeFiles(t, dir, map[string]string{
		"song-data/A/A/A/TRAAAAW128F429D538.json": "{}",
		"song-data/A/A/A/TRAAABD128F429CF47.json": "{}",
		"song-data/A/A/B/TRAABJL12903CDCF1A.json": "{}",
		"song-data/A/A/A/notes.txt":               "",
		"log_data/2018/11/2018-11-01-events.json": "{}",
		"log_data/2018/11/2018-11-02-events.json": "{}",
		"log_data/2018/11/_SUCCESS":               "",
		"log_data/2018/11/.hidden.json":           "{}",
	})
	s := NewLocalStore()
	root := MustParsePath(dir)

	songs, err := Glob(ctx, s, root.Join("song-data/A/A/A/*.json"))
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.True(t, strings.HasSuffix(songs[0].Path.Key, "TRAAAAW128F429D538.json"))
	assert.True(t, strings.HasSuffix(songs[1].Path.Key, "TRAAABD128F429CF47.json"))

	logs, err := Glob(ctx, s, root.Join("log_data/*/*/*.json"))
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	all, err := Glob(ctx, s, root.Join("log_data"))
	require.NoError(t, err)
	assert.Len(t, all, 2, "directory expands to visible objects")

	none, err := Glob(ctx, s, root.Join("song-data/Z/*.json"))
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = Glob(ctx, s, root.Join("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLiteralPrefix(t *testing.T) {
	assert.Equal(t, "song-data/A/A/A/", literalPrefix("song-data/A/A/A/*.json"))
	assert.Equal(t, "log_data/", literalPrefix("log_data/*/*/*.json"))
	assert.Equal(t, "", literalPrefix("*.json"))
	assert.Equal(t, "a/b", literalPrefix("a/b"))
}

func TestMux_Resolve(t *testing.T) {
	m := NewMux()
	local := NewLocalStore()
	m.Register(KindLocal, local)

	got, err := m.Resolve(MustParsePath("/tmp/x"))
	require.NoError(t, err)
	assert.Same(t, local, got)

	_, err = m.Resolve(MustParsePath("s3a://bucket/x"))
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}
