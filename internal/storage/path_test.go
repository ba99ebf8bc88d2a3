package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw  string
		want Path
		kind string
	}{
		{"s3a://udacity-dend/", Path{Scheme: "s3a", Bucket: "udacity-dend", Key: ""}, KindS3},
		{"s3://bucket/a/b.json", Path{Scheme: "s3", Bucket: "bucket", Key: "a/b.json"}, KindS3},
		{"s3n://bucket", Path{Scheme: "s3n", Bucket: "bucket"}, KindS3},
		{"file:///tmp/data", Path{Scheme: KindLocal, Key: "/tmp/data"}, KindLocal},
		{"./data/out", Path{Scheme: KindLocal, Key: "./data/out"}, KindLocal},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePath(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, got.Kind())
		})
	}
}

func TestParsePath_Errors(t *testing.T) {
	_, err := ParsePath("")
	require.Error(t, err)

	_, err = ParsePath("s3a:///key")
	require.Error(t, err)

	_, err = ParsePath("gs://bucket/key")
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestPath_Join(t *testing.T) {
	in := MustParsePath("s3a://udacity-dend/")
	assert.Equal(t, "s3a://udacity-dend/song-data/A/A/A/*.json", in.Join("song-data/A/A/A/*.json").String())

	out := MustParsePath("/tmp/out")
	assert.Equal(t, "/tmp/out/songs.parquet/year=2018", out.Join("songs.parquet", "year=2018").String())
}

func TestPath_Dir(t *testing.T) {
	assert.Equal(t, "a/b/", MustParsePath("s3://x/a/b").Dir().Key)
	assert.Equal(t, "a/b/", MustParsePath("s3://x/a/b/").Dir().Key)
	assert.Equal(t, "", MustParsePath("s3://x/").Dir().Key)
}
