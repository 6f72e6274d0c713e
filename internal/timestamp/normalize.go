package timestamp

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"
)

// ErrUnparsable is returned by Parse when no layout or pattern matches.
var ErrUnparsable = errors.New("timestamp: unparsable")

// layouts are tried in order by the direct-parse step. Layouts without a
// zone are interpreted in the Normalizer's Location.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006 15:04:05",
	"January 2, 2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"2 January 2006",
}

// numericDate matches M/D/YYYY or M-D-YYYY with optional H:M:S parts.
var numericDate = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})[T\s]?(\d{1,2})?:?(\d{1,2})?:?(\d{1,2})?`)

// Parse converts raw into an instant without any fallback. Zone-less values
// are read in loc (UTC when nil).
func Parse(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	if t, ok := parseNumeric(raw, loc); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsable, raw)
}

// parseNumeric applies the month/day/year pattern. The result must be a
// real calendar date and clock time; overflowing values such as month 13
// or day 40 are rejected rather than rolled over.
func parseNumeric(raw string, loc *time.Location) (time.Time, bool) {
	m := numericDate.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}
	num := func(s string) int {
		if s == "" {
			return 0
		}
		v, _ := strconv.Atoi(s)
		return v
	}
	month, day, year := num(m[1]), num(m[2]), num(m[3])
	hour, minute, sec := num(m[4]), num(m[5]), num(m[6])

	if month < 1 || month > 12 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Normalizer resolves raw timestamps with a processing-time fallback.
// The zero value is usable: UTC, time.Now and slog.Default().
type Normalizer struct {
	// Location applies to timestamps that carry no zone.
	Location *time.Location

	// Now supplies the fallback instant. Injectable for deterministic tests.
	Now func() time.Time

	Logger *slog.Logger
}

// Normalize returns the instant for raw. fallback is true when raw could not
// be parsed and the processing time was used instead.
func (n *Normalizer) Normalize(assetID, raw string) (ts time.Time, fallback bool) {
	t, err := Parse(raw, n.Location)
	if err == nil {
		return t, false
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	log := n.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Warn("timestamp: unparsable, using processing time",
		"asset", assetID, "raw", raw)
	return now(), true
}
