// Package etl builds the Sparkify star schema (songs, artists, users, time
// and songplays) from the raw song and event log datasets.
package etl

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// Options configures one run.
type Options struct {
	Input  storage.Path
	Output storage.Path
	// Preflight writes and deletes a marker object under Output before any
	// input is read.
	Preflight bool
	// StatsPath, if set, receives the run statistics as JSON.
	StatsPath string
}

// Run processes the song data and then the log data. Tables already
// written stay in place when a later step fails.
func Run(ctx context.Context, s *frame.Session, opts Options) (ETLStats, error) {
	log := s.Logger()
	start := time.Now()

	log.Info("starting ETL pipeline",
		zap.String("input", opts.Input.String()),
		zap.String("output", opts.Output.String()))

	if opts.Preflight {
		st, err := s.Store(opts.Output)
		if err != nil {
			return ETLStats{}, err
		}
		if err := storage.CheckWritable(ctx, st, opts.Output); err != nil {
			return ETLStats{}, fmt.Errorf("output not writable: %w", err)
		}
		log.Info("output access verified", zap.String("output", opts.Output.String()))
	}

	var tables []TableResult
	songs, err := ProcessSongData(ctx, s, opts.Input, opts.Output)
	tables = append(tables, songs...)
	if err != nil {
		return NewETLStats(start, time.Since(start), s.Metrics(), tables), fmt.Errorf("process song data: %w", err)
	}

	logs, err := ProcessLogData(ctx, s, opts.Input, opts.Output)
	tables = append(tables, logs...)
	if err != nil {
		return NewETLStats(start, time.Since(start), s.Metrics(), tables), fmt.Errorf("process log data: %w", err)
	}

	duration := time.Since(start)
	stats := NewETLStats(start, duration, s.Metrics(), tables)
	log.Info("ETL pipeline completed",
		zap.Duration("duration", duration),
		zap.Int64("objects_read", stats.ObjectsRead),
		zap.Int64("rows_written", stats.RowsWritten),
		zap.Int64("files_written", stats.FilesWritten))

	if opts.StatsPath != "" {
		if err := WriteStats(opts.StatsPath, stats); err != nil {
			log.Warn("stats not written", zap.Error(err))
		} else {
			log.Info("wrote stats", zap.String("path", opts.StatsPath))
		}
	}
	return stats, nil
}
