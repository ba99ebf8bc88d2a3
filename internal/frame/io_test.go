package frame

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(WithWorkers(3), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// readParquet returns the rows of a Parquet file as maps keyed by column
// name, with nulls as nil.
func readParquet(t *testing.T, path string) []map[string]any {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	if n == 0 {
		return nil
	}
	objs, err := pr.ReadByNumber(n)
	require.NoError(t, err)

	b, err := json.Marshal(objs)
	require.NoError(t, err)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		out[i] = make(map[string]any, len(r))
		for k, v := range r {
			out[i][strings.ToLower(k)] = v
		}
	}
	return out
}

var eventSchema = NewSchema(
	Field("ts", TypeLong),
	Field("userId", TypeString),
	FieldFrom("first_name", "firstName", TypeString),
	Field("length", TypeDouble),
	Field("registered", TypeBoolean),
)

func TestDecodeRecords(t *testing.T) {
	input := `{"ts": 1541121934796, "userId": "39", "firstName": "Walter", "length": 217.3, "registered": true}
{"ts": 1541122241796, "userId": 8, "firstName": "Kaylee", "length": "n/a"}
[{"ts": 1}, {"ts": 2, "userId": null}]`

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec, corrupt, err := decodeRecords(strings.NewReader(input), eventSchema, mem)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(4), rec.NumRows())
	assert.Equal(t, 2, rec.Column(1).NullN(), "userId is missing or null in the last two records")

	rows := recordRows(rec)
	require.Len(t, rows, 4)
	assert.Equal(t, Row{int64(1541121934796), "39", "Walter", 217.3, true}, rows[0])
	assert.Equal(t, Row{int64(1541122241796), "8", "Kaylee", nil, nil}, rows[1])
	assert.Equal(t, Row{int64(2), nil, nil, nil, nil}, rows[3])
	assert.Equal(t, 1, corrupt, "only the unparseable length counts")
}

func TestDecodeRecords_Malformed(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	_, _, err := decodeRecords(strings.NewReader(`{"ts": 1}{"ts": `), eventSchema, mem)
	require.ErrorContains(t, err, "malformed json document 1")

	_, _, err = decodeRecords(strings.NewReader(`42`), eventSchema, mem)
	require.Error(t, err)
}

func TestReadJSON_ReleasesArrowBuffers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in/a.json"), `{"ts": 1, "userId": "a", "firstName": "Ada", "length": 1.5, "registered": false}`)
	writeFile(t, filepath.Join(dir, "in/b.json"), `{"ts": 2}`)

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	s, err := NewSession(WithTempDir(t.TempDir()), WithAllocator(mem))
	require.NoError(t, err)
	defer s.Close()

	f, err := s.ReadJSON(context.Background(), storage.MustParsePath(filepath.ToSlash(dir)).Join("in/*.json"), eventSchema)
	require.NoError(t, err)
	mem.AssertSize(t, 0)

	assert.Equal(t, []Row{
		{int64(1), "a", "Ada", 1.5, false},
		{int64(2), nil, nil, nil, nil},
	}, f.Rows())
}

func TestReadJSON_OrdersByObjectKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "log_data/2018/11/b.json"), `{"ts": 3, "userId": "c"}`)
	writeFile(t, filepath.Join(dir, "log_data/2018/11/a.json"), "{\"ts\": 1, \"userId\": \"a\"}\n{\"ts\": 2, \"userId\": \"b\"}\n")
	writeFile(t, filepath.Join(dir, "log_data/2018/12/c.json"), `{"ts": 4, "userId": "d"}`)
	writeFile(t, filepath.Join(dir, "log_data/2018/11/_SUCCESS"), ``)

	s := newTestSession(t)
	root := storage.MustParsePath(filepath.ToSlash(dir))
	f, err := s.ReadJSON(context.Background(), root.Join("log_data/*/*/*.json"), eventSchema)
	require.NoError(t, err)

	ts, err := f.Column("ts")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, ts)

	m := s.Metrics()
	assert.Equal(t, int64(3), m.ObjectsRead)
	assert.Equal(t, int64(4), m.RecordsRead)
	assert.Greater(t, m.BytesRead, int64(0))
}

func TestReadJSON_NoMatchesIsEmpty(t *testing.T) {
	s := newTestSession(t)
	root := storage.MustParsePath(filepath.ToSlash(t.TempDir()))

	f, err := s.ReadJSON(context.Background(), root.Join("song-data/*.json"), eventSchema)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Count())
	assert.Equal(t, eventSchema.Names(), f.Schema().Names())
}

func TestReadJSON_MalformedFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in/bad.json"), `{"ts": `)

	s := newTestSession(t)
	_, err := s.ReadJSON(context.Background(), storage.MustParsePath(filepath.ToSlash(dir)).Join("in/*.json"), eventSchema)
	require.ErrorContains(t, err, "bad.json")
}

var trackSchema = NewSchema(
	Field("song_id", TypeString),
	Field("artist_id", TypeString),
	Field("title", TypeString),
	Field("year", TypeLong),
	Field("duration", TypeDouble),
)

func tracks(t *testing.T) *Frame {
	t.Helper()
	f, err := New(trackSchema, []Row{
		{"S1", "AR1", "Intro", int64(2004), 120.5},
		{"S2", "AR2", "Outro", int64(0), nil},
		{"S3", "AR1", "Bridge", int64(2004), 99.0},
		{"S4", "AR/3", "Slash", nil, 10.0},
	})
	require.NoError(t, err)
	return f
}

func TestWriteParquet_Partitioned(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dest := storage.MustParsePath(filepath.ToSlash(dir)).Join("songs.parquet")
	s := newTestSession(t)

	res, err := s.WriteParquet(ctx, tracks(t), dest, WriteOptions{PartitionBy: []string{"year", "artist_id"}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Rows)
	assert.Equal(t, 3, res.Partitions)
	assert.Greater(t, res.Bytes, int64(0))

	base := filepath.Join(dir, "songs.parquet")
	assert.FileExists(t, filepath.Join(base, "_SUCCESS"))
	assert.FileExists(t, filepath.Join(base, "year=0", "artist_id=AR2", "part-00000.snappy.parquet"))
	assert.FileExists(t, filepath.Join(base, "year=2004", "artist_id=AR1", "part-00001.snappy.parquet"))
	assert.FileExists(t, filepath.Join(base, "year="+DefaultPartitionName, "artist_id=AR%2F3", "part-00002.snappy.parquet"))

	rows := readParquet(t, filepath.Join(base, "year=2004", "artist_id=AR1", "part-00001.snappy.parquet"))
	require.Len(t, rows, 2)
	assert.Equal(t, "S1", rows[0]["song_id"])
	assert.Equal(t, "Bridge", rows[1]["title"])
	assert.NotContains(t, rows[0], "year", "partition columns are not stored in data files")

	nullDuration := readParquet(t, filepath.Join(base, "year=0", "artist_id=AR2", "part-00000.snappy.parquet"))
	require.Len(t, nullDuration, 1)
	assert.Nil(t, nullDuration[0]["duration"])

	m := s.Metrics()
	assert.Equal(t, int64(3), m.FilesWritten)
	assert.Equal(t, int64(4), m.RowsWritten)
}

func TestWriteParquet_OverwriteReplacesPreviousOutput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stale := filepath.Join(dir, "out.parquet", "year=1999", "part-00000.snappy.parquet")
	writeFile(t, stale, "old")
	sibling := filepath.Join(dir, "out.parquet_keep", "file")
	writeFile(t, sibling, "keep")

	s := newTestSession(t)
	dest := storage.MustParsePath(filepath.ToSlash(dir)).Join("out.parquet")
	_, err := s.WriteParquet(ctx, tracks(t), dest, WriteOptions{})
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, sibling)
	rows := readParquet(t, filepath.Join(dir, "out.parquet", "part-00000.snappy.parquet"))
	assert.Len(t, rows, 4)
}

func TestWriteParquet_EmptyFrameWritesSchemaOnlyFile(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t)
	dest := storage.MustParsePath(filepath.ToSlash(dir)).Join("empty.parquet")

	res, err := s.WriteParquet(context.Background(), Empty(trackSchema), dest, WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Empty(t, readParquet(t, filepath.Join(dir, "empty.parquet", "part-00000.snappy.parquet")))
}

func TestWriteParquet_RejectsBadPartitioning(t *testing.T) {
	s := newTestSession(t)
	dest := storage.MustParsePath(filepath.ToSlash(t.TempDir())).Join("x.parquet")
	f, err := tracks(t).Select(Col("year"))
	require.NoError(t, err)

	_, err = s.WriteParquet(context.Background(), f, dest, WriteOptions{PartitionBy: []string{"year"}})
	require.ErrorContains(t, err, "all columns")

	_, err = s.WriteParquet(context.Background(), tracks(t), dest, WriteOptions{PartitionBy: []string{"nope"}})
	require.ErrorIs(t, err, ErrColumnNotFound)

	_, err = s.WriteParquet(context.Background(), tracks(t), dest, WriteOptions{PartitionBy: []string{"year", "year"}})
	require.Error(t, err)
}

func TestWriteParquet_Deterministic(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := newTestSession(t)
	dest := storage.MustParsePath(filepath.ToSlash(dir)).Join("t.parquet")
	file := filepath.Join(dir, "t.parquet", "year=2004", "artist_id=AR1", "part-00001.snappy.parquet")

	_, err := s.WriteParquet(ctx, tracks(t), dest, WriteOptions{PartitionBy: []string{"year", "artist_id"}})
	require.NoError(t, err)
	first, err := os.ReadFile(file)
	require.NoError(t, err)

	_, err = s.WriteParquet(ctx, tracks(t), dest, WriteOptions{PartitionBy: []string{"year", "artist_id"}})
	require.NoError(t, err)
	second, err := os.ReadFile(file)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEscapePathName(t *testing.T) {
	for in, want := range map[string]string{
		"AR1":        "AR1",
		"a/b":        "a%2Fb",
		"x=y:z":      "x%3Dy%3Az",
		"100%":       "100%25",
		"tab\there":  "tab%09here",
		"plain text": "plain text",
	} {
		assert.Equal(t, want, escapePathName(in), in)
	}
}

func TestParquetSchema(t *testing.T) {
	got, err := parquetSchema([]arrow.Field{Field("a", TypeString), Field("b", TypeInteger)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Tag":"name=spark_schema, repetitiontype=REQUIRED","Fields":[
		{"Tag":"name=a, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"},
		{"Tag":"name=b, type=INT32, repetitiontype=OPTIONAL"}]}`, got)
}

func TestSession_UDFRegistry(t *testing.T) {
	s := newTestSession(t)
	s.RegisterUDF("double_it", TypeLong, func(v any) (any, error) { return v.(int64) * 2, nil })

	c, err := s.CallUDF("double_it", Col("id"))
	require.NoError(t, err)
	out, err := people(t).Select(c)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Rows()[0][0])
	assert.Equal(t, "double_it(id)", out.Schema().Field(0).Name)

	_, err = s.CallUDF("nope", Col("id"))
	require.ErrorIs(t, err, ErrUDFNotRegistered)
}
