// Package ingest turns raw comma-delimited sensor text into validated
// RawRecords.
//
// Parse maps columns by header name, so column order is irrelevant. Header
// names are case-folded and internal whitespace becomes "_". The required
// columns are asset_id, timestamp, temperature, vibration_level, pressure,
// runtime_hours and location; failure_event is optional.
//
// Whole-batch failures are returned as *MalformedInputError,
// *MissingColumnsError or *NoValidDataError, each of which also matches the
// corresponding Err* sentinel via errors.Is. Bad rows never abort a batch:
// they are logged, recorded in Result.Skipped and folded into
// Result.Warnings().
package ingest
