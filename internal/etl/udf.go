package etl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/somayah530/Udacity-DEND-Project-4-Data-Lake/internal/frame"
)

var songplayNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("sparkify.songplays"))

// EpochSeconds converts a millisecond epoch value to whole seconds. The
// division is integer division, truncating toward zero.
func EpochSeconds(ms int64) int64 {
	return ms / 1000
}

// LocalDatetime renders an epoch second as wall clock time in loc.
func LocalDatetime(sec int64, loc *time.Location) string {
	return time.Unix(sec, 0).In(loc).Format(frame.TimestampLayout)
}

// SongplayID derives a stable identifier for one songplay from the event
// and the matched song. Reruns over the same input produce the same ids.
func SongplayID(ts int64, userID string, sessionID, itemInSession int64, songID string) string {
	key := strings.Join([]string{
		strconv.FormatInt(ts, 10),
		userID,
		strconv.FormatInt(sessionID, 10),
		strconv.FormatInt(itemInSession, 10),
		songID,
	}, "|")
	return uuid.NewSHA1(songplayNamespace, []byte(key)).String()
}

// Names of the functions RegisterUDFs adds to a session.
const (
	UDFTimestamp = "get_timestamp"
	UDFDatetime  = "get_datetime"
)

// RegisterUDFs registers the event time functions on s. get_timestamp
// turns a millisecond epoch into epoch seconds; get_datetime renders epoch
// seconds as wall clock time in the session's zone.
func RegisterUDFs(s *frame.Session) {
	loc := s.Location()
	s.RegisterUDF(UDFTimestamp, frame.TypeLong, func(v any) (any, error) {
		ms, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: want long, got %T", frame.ErrTypeMismatch, v)
		}
		return EpochSeconds(ms), nil
	})
	s.RegisterUDF(UDFDatetime, frame.TypeString, func(v any) (any, error) {
		sec, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: want long, got %T", frame.ErrTypeMismatch, v)
		}
		return LocalDatetime(sec, loc), nil
	})
}

var songplayIDColumn = frame.UDFN("songplay_id", frame.TypeString, func(args []any) (any, error) {
	ts, _ := args[0].(int64)
	userID, _ := args[1].(string)
	sessionID, _ := args[2].(int64)
	item, _ := args[3].(int64)
	songID, _ := args[4].(string)
	return SongplayID(ts, userID, sessionID, item, songID), nil
})
