package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/obsidianstack/assetrisk/pkg/types"
)

// Canonical column names.
const (
	ColAssetID        = "asset_id"
	ColTimestamp      = "timestamp"
	ColTemperature    = "temperature"
	ColVibrationLevel = "vibration_level"
	ColPressure       = "pressure"
	ColRuntimeHours   = "runtime_hours"
	ColFailureEvent   = "failure_event"
	ColLocation       = "location"
)

// RequiredColumns are the header names every input must carry, in
// canonical order.
var RequiredColumns = []string{
	ColAssetID,
	ColTimestamp,
	ColTemperature,
	ColVibrationLevel,
	ColPressure,
	ColRuntimeHours,
	ColLocation,
}

// Result is the output of Parse.
type Result struct {
	// Records holds every valid row, in input order.
	Records []types.RawRecord

	// Skipped holds every dropped row, in input order.
	Skipped []types.SkippedRow

	// HasFailureEvent reports whether the optional failure_event column
	// was present in the header.
	HasFailureEvent bool

	warnings *multierror.Error
}

// Warnings returns the per-row problems combined into one error, or nil
// when no row was skipped.
func (r *Result) Warnings() error {
	return r.warnings.ErrorOrNil()
}

// columns holds header-derived positions. failureEvent is -1 when absent.
type columns struct {
	assetID, timestamp, temperature, vibration, pressure, runtime, location int
	failureEvent                                                            int
	width                                                                   int
}

// minFields is the smallest field count a row may have and still be mapped.
func (c columns) minFields() int {
	if c.failureEvent < 0 {
		return c.width - 1
	}
	return c.width
}

// Parse splits text into a header and data rows and returns the valid
// records. log may be nil, in which case slog.Default() is used.
func Parse(text string, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}

	lines := splitLines(text)
	if len(lines) < 2 {
		return nil, &MalformedInputError{Lines: len(lines)}
	}

	header, err := splitFields(lines[0])
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", &MalformedInputError{Lines: len(lines)})
	}
	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	res := &Result{HasFailureEvent: cols.failureEvent >= 0}
	for i := 1; i < len(lines); i++ {
		rowNum := i + 1
		line := lines[i]

		rec, reason := parseRow(line, cols)
		if reason != "" {
			log.Warn("ingest: skipping row", "row", rowNum, "reason", reason, "line", line)
			res.Skipped = append(res.Skipped, types.SkippedRow{Row: rowNum, Line: line, Reason: reason})
			res.warnings = multierror.Append(res.warnings, &RowError{Row: rowNum, Line: line, Reason: reason})
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if len(res.Records) == 0 {
		return nil, &NoValidDataError{Skipped: len(res.Skipped)}
	}
	return res, nil
}

// splitLines trims surrounding whitespace from text and returns its lines
// with any trailing carriage returns removed.
func splitLines(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// splitFields splits one line on commas. Quoted fields are honoured, so a
// quoted location may contain a comma. A line with an unbalanced quote is
// split on every comma, with the stray quote kept in its field.
func splitFields(line string) ([]string, error) {
	if strings.Count(line, `"`)%2 == 1 {
		return strings.Split(line, ","), nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []string{""}, nil
	}
	return rec, err
}

// NormalizeHeader folds a header cell to its canonical form: trimmed,
// lower-cased, with whitespace runs replaced by "_".
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), "_"))
}

func mapHeader(header []string) (columns, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeHeader(h)
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := pos[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return columns{}, &MissingColumnsError{Missing: missing}
	}

	fe, ok := pos[ColFailureEvent]
	if !ok {
		fe = -1
	}
	return columns{
		assetID:      pos[ColAssetID],
		timestamp:    pos[ColTimestamp],
		temperature:  pos[ColTemperature],
		vibration:    pos[ColVibrationLevel],
		pressure:     pos[ColPressure],
		runtime:      pos[ColRuntimeHours],
		location:     pos[ColLocation],
		failureEvent: fe,
		width:        len(header),
	}, nil
}

// parseRow maps one data line onto a RawRecord. A non-empty reason means the
// row must be skipped.
func parseRow(line string, c columns) (types.RawRecord, string) {
	values, err := splitFields(line)
	if err != nil {
		return types.RawRecord{}, fmt.Sprintf("unreadable row: %v", err)
	}
	if len(values) < c.minFields() {
		return types.RawRecord{}, fmt.Sprintf("expected at least %d values, got %d", c.minFields(), len(values))
	}

	field := func(i int) string {
		if i < 0 || i >= len(values) {
			return ""
		}
		return strings.TrimSpace(values[i])
	}

	rec := types.RawRecord{
		AssetID:   field(c.assetID),
		Timestamp: field(c.timestamp),
		Location:  field(c.location),
	}

	var problems []string
	if rec.AssetID == "" {
		problems = append(problems, "missing asset_id")
	}
	if rec.Timestamp == "" {
		problems = append(problems, "missing timestamp")
	}
	if rec.Location == "" {
		problems = append(problems, "missing location")
	}

	var ok bool
	if rec.Temperature, ok = parseFloat(field(c.temperature)); !ok {
		problems = append(problems, "non-numeric temperature")
	}
	if rec.VibrationLevel, ok = parseFloat(field(c.vibration)); !ok {
		problems = append(problems, "non-numeric vibration_level")
	}
	if rec.Pressure, ok = parseFloat(field(c.pressure)); !ok {
		problems = append(problems, "non-numeric pressure")
	}
	if rec.RuntimeHours, ok = parseInt(field(c.runtime)); !ok {
		problems = append(problems, "non-numeric runtime_hours")
	}

	if len(problems) > 0 {
		return types.RawRecord{}, strings.Join(problems, "; ")
	}

	if fe := field(c.failureEvent); fe != "" {
		if v, ok := parseInt(fe); ok {
			rec.FailureEvent = &v
		}
	}
	return rec, ""
}

// parseFloat accepts finite decimal numbers only; "NaN" and "Inf" are rejected.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseInt accepts integers and, for values such as "8000.0", truncates a
// finite decimal toward zero.
func parseInt(s string) (int, bool) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, ok := parseFloat(s)
	if !ok || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Trunc(f)), true
}
