package conflict

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrTimestampParse = errors.New("unparsable timestamp")

// layouts are tried in order after the epoch-millis form.
var layouts = []struct {
	layout string
	loc    *time.Location
}{
	{"2006-01-02T15:04:05.000Z07:00", nil},
	{time.RFC3339Nano, nil},
	{"2006-01-02T15:04:05Z", nil},
	{"2006-01-02T15:04:05", time.UTC},
}

// ParseTimestamp turns an updated_at value into an instant. Accepted forms:
// milliseconds since the epoch, ISO-8601 with fractional seconds and offset,
// ISO-8601 with offset or Z, and a local date-time without zone read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrTimestampParse)
	}

	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}

	for _, l := range layouts {
		var (
			t   time.Time
			err error
		)
		if l.loc != nil {
			t, err = time.ParseInLocation(l.layout, s, l.loc)
		} else {
			t, err = time.Parse(l.layout, s)
		}
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampParse, s)
}

func isDigits(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
