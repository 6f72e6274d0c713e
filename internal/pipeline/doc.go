// Package pipeline sequences one batch through parsing, timestamp
// normalization, scoring, classification and aggregation.
//
// A batch either yields a complete ProcessedDataset or one of the fatal
// ingest errors; nothing partial is ever returned. A Pipeline holds only
// configuration, so one value may serve concurrent Process calls.
package pipeline
