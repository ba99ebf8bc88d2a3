package etl

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
)

// TableStats describes one written table.
type TableStats struct {
	Path       string `json:"path"`
	Rows       int64  `json:"rows"`
	Partitions int    `json:"partitions"`
	Files      int    `json:"files"`
	Bytes      int64  `json:"bytes"`
}

// ETLStats holds the performance metrics of one run.
type ETLStats struct {
	StartedAt               time.Time             `json:"started_at"`
	TotalExecutionTime      string                `json:"total_execution_time"`
	ObjectsRead             int64                 `json:"objects_read"`
	RecordsRead             int64                 `json:"records_read"`
	CorruptValues           int64                 `json:"corrupt_values"`
	TotalBytesProcessed     int64                 `json:"total_bytes_processed"`
	FilesWritten            int64                 `json:"files_written"`
	RowsWritten             int64                 `json:"rows_written"`
	BytesWritten            int64                 `json:"bytes_written"`
	ProcessingThroughputGBs float64               `json:"processing_throughput_gb_per_sec"`
	Tables                  map[string]TableStats `json:"tables"`
}

// NewETLStats assembles run statistics from the session counters and the
// per table results.
func NewETLStats(start time.Time, duration time.Duration, m frame.Metrics, tables []TableResult) ETLStats {
	stats := ETLStats{
		StartedAt:           start.UTC(),
		TotalExecutionTime:  duration.String(),
		ObjectsRead:         m.ObjectsRead,
		RecordsRead:         m.RecordsRead,
		CorruptValues:       m.CorruptValue,
		TotalBytesProcessed: m.BytesRead,
		FilesWritten:        m.FilesWritten,
		RowsWritten:         m.RowsWritten,
		BytesWritten:        m.BytesWritten,
		Tables:              make(map[string]TableStats, len(tables)),
	}
	if duration.Seconds() > 0 {
		stats.ProcessingThroughputGBs = float64(m.BytesRead+m.BytesWritten) / 1e9 / duration.Seconds()
	}
	for _, t := range tables {
		stats.Tables[t.Name] = TableStats{
			Path:       t.Path.String(),
			Rows:       t.Rows,
			Partitions: t.Partitions,
			Files:      t.Files,
			Bytes:      t.Bytes,
		}
	}
	return stats
}

// WriteStats writes stats as indented JSON to path.
func WriteStats(path string, stats ETLStats) error {
	statsJSON, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize stats: %w", err)
	}
	if err := os.WriteFile(path, statsJSON, 0o644); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return nil
}
