package timestamp

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestParse_Layouts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"date only", "2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339 zulu", "2024-03-05T10:20:30Z", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"rfc3339 offset", "2024-03-05T10:20:30+02:00", time.Date(2024, 3, 5, 8, 20, 30, 0, time.UTC)},
		{"space separated", "2024-03-05 10:20:30", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
		{"no seconds", "2024-03-05T10:20", time.Date(2024, 3, 5, 10, 20, 0, 0, time.UTC)},
		{"slashes iso order", "2024/03/05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"english month", "Mar 5, 2024", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"rfc1123", "Tue, 05 Mar 2024 10:20:30 GMT", time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw, nil)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.raw, err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("Parse(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestParse_NumericPatternIsMonthFirst(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"01/02/2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"1-2-2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"12/25/2024 10:30", time.Date(2024, 12, 25, 10, 30, 0, 0, time.UTC)},
		{"12/25/2024T10:30:15", time.Date(2024, 12, 25, 10, 30, 15, 0, time.UTC)},
		{"02/29/2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := Parse(tc.raw, nil)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("Parse(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParse_RejectsInvalidCalendarDates(t *testing.T) {
	for _, raw := range []string{"13/40/2024", "02/30/2023", "25/12/2024", "12/25/2024 25:00", "not a date", ""} {
		if _, err := Parse(raw, nil); !errors.Is(err, ErrUnparsable) {
			t.Errorf("Parse(%q): got %v, want ErrUnparsable", raw, err)
		}
	}
}

func TestParse_UsesLocationForZonelessValues(t *testing.T) {
	loc := time.FixedZone("plant", 3*3600)
	got, err := Parse("2024-01-01 12:00:00", loc)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}
}

func TestNormalize_FallsBackToNow(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	n := &Normalizer{
		Now:    func() time.Time { return now },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	got, fallback := n.Normalize("A1", "13/40/2024")
	if !fallback {
		t.Error("fallback: got false, want true")
	}
	if !got.Equal(now) {
		t.Errorf("got %v, want %v", got, now)
	}

	got, fallback = n.Normalize("A1", "2024-01-01")
	if fallback {
		t.Error("fallback: got true for a valid date")
	}
	if got.Year() != 2024 {
		t.Errorf("year: got %d", got.Year())
	}
}

func TestNormalizer_ZeroValue(t *testing.T) {
	var n Normalizer
	before := time.Now()
	got, fallback := n.Normalize("A1", "garbage")
	if !fallback || got.Before(before) {
		t.Errorf("zero Normalizer: got %v fallback=%v", got, fallback)
	}
}
