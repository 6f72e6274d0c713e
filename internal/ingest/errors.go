package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below.
var (
	ErrMalformedInput = errors.New("ingest: malformed input")
	ErrMissingColumns = errors.New("ingest: missing required columns")
	ErrNoValidData    = errors.New("ingest: no valid data rows")
)

// MalformedInputError is returned when the input lacks a header or data rows.
type MalformedInputError struct {
	Lines int
}

func (e *MalformedInputError) Error() string {
	return "CSV file must contain a header row and at least one data row."
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// MissingColumnsError lists the required header columns that were not found,
// in canonical column order.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV header is missing one or more required fields: %s.",
		strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// NoValidDataError is returned when every data row was skipped.
type NoValidDataError struct {
	Skipped int
}

func (e *NoValidDataError) Error() string {
	return fmt.Sprintf("No valid data rows found in the CSV file after parsing (%d skipped). "+
		"Check CSV format and content.", e.Skipped)
}

func (e *NoValidDataError) Unwrap() error { return ErrNoValidData }

// RowError describes why a single row was skipped.
type RowError struct {
	Row    int
	Line   string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}
