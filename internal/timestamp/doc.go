// Package timestamp normalises free-form reading timestamps.
//
// Normalize never fails. It tries, in order: a set of ISO-8601, RFC and
// common English layouts; a numeric M/D/YYYY pattern with optional time
// parts (first group is the month); and finally the processing time, with a
// warning that names the asset and the raw value.
package timestamp
