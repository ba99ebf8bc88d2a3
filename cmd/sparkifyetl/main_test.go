package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/config"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		InputData:   t.TempDir(),
		OutputData:  t.TempDir(),
		Timezone:    "America/Los_Angeles",
		Workers:     2,
		TempDir:     t.TempDir(),
		Compression: "SNAPPY",
		StatsPath:   filepath.Join(t.TempDir(), "etl_stats.json"),
		LogLevel:    "info",
		JobTimeout:  time.Minute,
	}
}

func TestNewSession_LocalOnly(t *testing.T) {
	cfg := localConfig(t)

	sess, err := newSession(cfg, zap.NewNop())
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, "America/Los_Angeles", sess.Location().String())
	_, err = sess.Store(storage.MustParsePath("s3://bucket/key"))
	require.Error(t, err, "no s3 store without s3 locations")
}

func TestNewSession_RegistersS3(t *testing.T) {
	cfg := localConfig(t)
	cfg.OutputData = "s3a://project4-dend/"
	cfg.AWS = config.AWSConfig{AccessKeyID: "AKIAEXAMPLE", SecretAccessKey: "secret", Region: "us-west-2"}

	sess, err := newSession(cfg, zap.NewNop())
	require.NoError(t, err)
	defer sess.Close()

	st, err := sess.Store(storage.MustParsePath(cfg.OutputData))
	require.NoError(t, err)
	assert.IsType(t, &storage.S3Store{}, st)
}

func TestRunJob_EmptyLocalInput(t *testing.T) {
	cfg := localConfig(t)

	require.NoError(t, runJob(context.Background(), cfg, zap.NewNop()))
	assert.FileExists(t, cfg.StatsPath)
	assert.FileExists(t, filepath.Join(cfg.OutputData, "songs.parquet", "_SUCCESS"))

	entries, err := os.ReadDir(cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory is removed")
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"extra"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))
	require.Error(t, cmd.Execute())
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
