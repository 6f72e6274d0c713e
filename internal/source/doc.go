// Package source reads the CSV text of a batch from a local file, stdin or
// an http(s) URL.
//
// Remote fetches authenticate according to config.AuthConfig; secrets are
// resolved from the environment at request time.
package source
