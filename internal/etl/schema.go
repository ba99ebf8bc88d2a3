package etl

import (
	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
)

// Input globs, relative to the input location.
const (
	// SongDataPattern reads only the A/A/A slice of the song dataset.
	SongDataPattern = "song-data/A/A/A/*.json"
	LogDataPattern  = "log_data/*/*/*.json"
)

// Output table directories, relative to the output location.
const (
	SongsPath     = "songs.parquet"
	ArtistsPath   = "artists.parquet"
	UsersPath     = "users.parquet"
	TimePath      = "time.parquet"
	SongplaysPath = "songplays.parquet"
)

// SongSchema is the shape of one song metadata record.
var SongSchema = frame.NewSchema(
	frame.Field("song_id", frame.TypeString),
	frame.Field("artist_id", frame.TypeString),
	frame.Field("title", frame.TypeString),
	frame.Field("year", frame.TypeLong),
	frame.Field("duration", frame.TypeDouble),
	frame.Field("num_songs", frame.TypeLong),
	frame.Field("artist_name", frame.TypeString),
	frame.Field("artist_location", frame.TypeString),
	frame.Field("artist_latitude", frame.TypeDouble),
	frame.Field("artist_longitude", frame.TypeDouble),
)

// LogSchema is the shape of one application event. The name columns are
// camel case in the raw logs.
var LogSchema = frame.NewSchema(
	frame.Field("ts", frame.TypeLong),
	frame.Field("userId", frame.TypeString),
	frame.FieldFrom("first_name", "firstName", frame.TypeString),
	frame.FieldFrom("last_name", "lastName", frame.TypeString),
	frame.Field("gender", frame.TypeString),
	frame.Field("level", frame.TypeString),
	frame.Field("sessionId", frame.TypeLong),
	frame.Field("itemInSession", frame.TypeLong),
	frame.Field("location", frame.TypeString),
	frame.Field("userAgent", frame.TypeString),
	frame.Field("song", frame.TypeString),
	frame.Field("artist", frame.TypeString),
	frame.Field("length", frame.TypeDouble),
	frame.Field("page", frame.TypeString),
	frame.Field("auth", frame.TypeString),
	frame.Field("method", frame.TypeString),
	frame.Field("status", frame.TypeLong),
	frame.Field("registration", frame.TypeDouble),
)
