package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// TableResult is the outcome of writing one output table.
type TableResult struct {
	Name string
	Path storage.Path
	frame.WriteResult
}

// SongsTable projects song records onto the songs dimension, one row per
// song_id.
func SongsTable(songs *frame.Frame) (*frame.Frame, error) {
	t, err := songs.Select(frame.Cols("song_id", "artist_id", "title", "year", "duration")...)
	if err != nil {
		return nil, fmt.Errorf("songs table: %w", err)
	}
	return t.DropDuplicates("song_id")
}

// ArtistsTable projects song records onto the artists dimension, one row
// per artist_id.
func ArtistsTable(songs *frame.Frame) (*frame.Frame, error) {
	t, err := songs.Select(
		frame.Col("artist_id"),
		frame.Col("artist_name").As("name"),
		frame.Col("artist_location").As("location"),
		frame.Col("artist_latitude").As("latitude"),
		frame.Col("artist_longitude").As("longitude"),
	)
	if err != nil {
		return nil, fmt.Errorf("artists table: %w", err)
	}
	return t.DropDuplicates("artist_id")
}

// ReadSongData loads the song dataset subset under input.
func ReadSongData(ctx context.Context, s *frame.Session, input storage.Path) (*frame.Frame, error) {
	return s.ReadJSON(ctx, input.Join(SongDataPattern), SongSchema)
}

// ProcessSongData builds the songs and artists tables from the song
// dataset and overwrites them under output.
func ProcessSongData(ctx context.Context, s *frame.Session, input, output storage.Path) ([]TableResult, error) {
	log := s.Logger().With(zap.String("builder", "songs"))

	df, err := ReadSongData(ctx, s, input)
	if err != nil {
		return nil, err
	}
	log.Info("loaded song data", zap.Int("records", df.Count()))

	songs, err := SongsTable(df)
	if err != nil {
		return nil, err
	}
	songsRes, err := writeTable(ctx, s, songs, output, SongsPath, "year", "artist_id")
	if err != nil {
		return nil, err
	}

	artists, err := ArtistsTable(df)
	if err != nil {
		return nil, err
	}
	artistsRes, err := writeTable(ctx, s, artists, output, ArtistsPath)
	if err != nil {
		return []TableResult{songsRes}, err
	}

	return []TableResult{songsRes, artistsRes}, nil
}

// writeTable overwrites output/dir with t, partitioned by partitionBy.
func writeTable(ctx context.Context, s *frame.Session, t *frame.Frame, output storage.Path, dir string, partitionBy ...string) (TableResult, error) {
	dest := output.Join(dir)
	res, err := s.WriteParquet(ctx, t, dest, frame.WriteOptions{PartitionBy: partitionBy})
	if err != nil {
		return TableResult{}, fmt.Errorf("failed to write %s: %w", dir, err)
	}
	s.Logger().Info("table written",
		zap.String("table", dir),
		zap.Int64("rows", res.Rows),
		zap.Int("files", res.Files),
		zap.Int64("bytes", res.Bytes))
	return TableResult{Name: dir, Path: dest, WriteResult: res}, nil
}
