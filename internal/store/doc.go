// Package store keeps processed datasets in process memory, keyed by a
// generated UUID. Entries expire after a TTL; a background goroutine (Run)
// evicts them. Nothing is written to disk.
package store
