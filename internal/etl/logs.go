package etl

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/storage"
)

// UsersTable projects events onto the users dimension, one row per userId.
func UsersTable(logs *frame.Frame) (*frame.Frame, error) {
	t, err := logs.Select(frame.Cols("userId", "first_name", "last_name", "gender", "level")...)
	if err != nil {
		return nil, fmt.Errorf("users table: %w", err)
	}
	return t.DropDuplicates("userId")
}

// WithEventTime adds the epoch second (timestamp) and local wall clock
// (datetime) columns derived from ts, using the functions RegisterUDFs
// put on s.
func WithEventTime(s *frame.Session, logs *frame.Frame) (*frame.Frame, error) {
	timestamp, err := s.CallUDF(UDFTimestamp, frame.Col("ts"))
	if err != nil {
		return nil, fmt.Errorf("derive timestamp: %w", err)
	}
	df, err := logs.WithColumn("timestamp", timestamp)
	if err != nil {
		return nil, fmt.Errorf("derive timestamp: %w", err)
	}

	datetime, err := s.CallUDF(UDFDatetime, frame.Col("timestamp"))
	if err != nil {
		return nil, fmt.Errorf("derive datetime: %w", err)
	}
	df, err = df.WithColumn("datetime", datetime)
	if err != nil {
		return nil, fmt.Errorf("derive datetime: %w", err)
	}
	return df, nil
}

// TimeTable decomposes each distinct event datetime into calendar parts.
// events must carry the datetime column added by WithEventTime.
func TimeTable(events *frame.Frame) (*frame.Frame, error) {
	dt := frame.Col("datetime")
	t, err := events.Select(
		dt.As("start_time"),
		frame.Hour(dt).As("hour"),
		frame.DayOfMonth(dt).As("day"),
		frame.WeekOfYear(dt).As("week"),
		frame.Month(dt).As("month"),
		frame.Year(dt).As("year"),
	)
	if err != nil {
		return nil, fmt.Errorf("time table: %w", err)
	}
	return t.DropDuplicates("start_time")
}

// SongplaysTable joins events to songs on song title and projects the
// fact columns. Events without a matching title are dropped. start_time is
// the event's local datetime, the key of the time table. year is the
// matched song's release year and month the event's month.
func SongplaysTable(events, songs *frame.Frame) (*frame.Frame, error) {
	played, err := events.Filter(frame.IsNotNull(frame.Col("song")))
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}
	joined, err := played.Join(songs, "song", "title")
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}

	dt := frame.Col("datetime")
	t, err := joined.Select(
		songplayIDColumn(
			frame.Col("ts"),
			frame.Col("userId"),
			frame.Col("sessionId"),
			frame.Col("itemInSession"),
			frame.Col("song_id"),
		).As("songplay_id"),
		dt.As("start_time"),
		frame.Col("userId").As("user_id"),
		frame.Col("level"),
		frame.Col("song_id"),
		frame.Col("artist_id"),
		frame.Col("sessionId").As("session_id"),
		frame.Col("location"),
		frame.Col("userAgent").As("user_agent"),
		frame.Col("year"),
		frame.Month(dt).As("month"),
	)
	if err != nil {
		return nil, fmt.Errorf("songplays table: %w", err)
	}
	return t, nil
}

// ReadLogData loads every event log under input.
func ReadLogData(ctx context.Context, s *frame.Session, input storage.Path) (*frame.Frame, error) {
	return s.ReadJSON(ctx, input.Join(LogDataPattern), LogSchema)
}

// ProcessLogData builds the users, time and songplays tables and
// overwrites them under output. Tables are written in that order; a failure
// leaves the tables already written in place.
func ProcessLogData(ctx context.Context, s *frame.Session, input, output storage.Path) ([]TableResult, error) {
	log := s.Logger().With(zap.String("builder", "logs"))
	var results []TableResult

	df, err := ReadLogData(ctx, s, input)
	if err != nil {
		return nil, err
	}
	log.Info("loaded log data", zap.Int("records", df.Count()))

	users, err := UsersTable(df)
	if err != nil {
		return results, err
	}
	res, err := writeTable(ctx, s, users, output, UsersPath)
	if err != nil {
		return results, err
	}
	results = append(results, res)

	RegisterUDFs(s)
	events, err := WithEventTime(s, df)
	if err != nil {
		return results, err
	}

	timeTable, err := TimeTable(events)
	if err != nil {
		return results, err
	}
	res, err = writeTable(ctx, s, timeTable, output, TimePath, "year", "month")
	if err != nil {
		return results, err
	}
	results = append(results, res)

	songs, err := ReadSongData(ctx, s, input)
	if err != nil {
		return results, err
	}
	songplays, err := SongplaysTable(events, songs)
	if err != nil {
		return results, err
	}
	log.Info("matched song plays", zap.Int("events", events.Count()), zap.Int("songplays", songplays.Count()))

	res, err = writeTable(ctx, s, songplays, output, SongplaysPath, "year", "month")
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}
