// Package auth provides the HTTP middleware that enforces API-key
// authentication on the REST API and WebSocket endpoints.
package auth
