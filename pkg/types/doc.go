// Package types defines the records and summaries that flow through the
// scoring pipeline and out to the API, CLI and dashboard clients.
//
// RawRecord is one validated input row. ScoredRecord extends it with the
// normalised timestamp, failure probability, health tier and suggested action.
// ProcessedDataset is the only value handed to presentation code.
package types
