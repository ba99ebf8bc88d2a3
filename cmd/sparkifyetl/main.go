// Command sparkifyetl loads the Sparkify song and event log datasets and
// writes the songs, artists, users, time and songplays tables as
// partitioned Parquet.
//
// Settings are read from dl.yaml in the working directory, with
// environment variable overrides (see internal/config).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/config"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/etl"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/logger"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sparkifyetl",
		Short: "Build the Sparkify data lake tables",
		Long: `Build the Sparkify star schema from the raw datasets.

The command will:
  1. Read song metadata and write the songs and artists tables
  2. Read the event logs and write the users, time and songplays tables
  3. Write run statistics to stats_path

Every output table is overwritten.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log, err := logger.New(level, zap.String("run_id", uuid.NewString()))
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := runJob(ctx, cfg, log); err != nil {
		log.Error("pipeline failed", zap.Error(err))
		return err
	}
	log.Info("ETL pipeline completed successfully")
	return nil
}

func runJob(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("starting sparkifyetl", cfg.LogFields()...)

	input, err := cfg.InputPath()
	if err != nil {
		return err
	}
	output, err := cfg.OutputPath()
	if err != nil {
		return err
	}

	sess, err := newSession(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("cleanup failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
	defer cancel()

	_, err = etl.Run(ctx, sess, etl.Options{
		Input:     input,
		Output:    output,
		Preflight: !cfg.SkipPreflight,
		StatsPath: cfg.StatsPath,
	})
	return err
}

// newSession builds the engine session from cfg. An S3 store is only
// created when a location needs one.
func newSession(cfg *config.Config, log *zap.Logger) (*frame.Session, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	codec, err := cfg.CompressionCodec()
	if err != nil {
		return nil, err
	}

	opts := []frame.Option{
		frame.WithLogger(log),
		frame.WithWorkers(cfg.Workers),
		frame.WithTempDir(cfg.TempDir),
		frame.WithLocation(loc),
		frame.WithCompression(codec),
	}
	if cfg.UsesS3() {
		s3Store, err := storage.NewS3Store(cfg.S3Config(), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		opts = append(opts, frame.WithStore(storage.KindS3, s3Store))
	}
	return frame.NewSession(opts...)
}
