// Package config loads assetrisk configuration from a YAML file.
//
// Sections:
//   - server  — HTTP port, upload limit, dataset TTL, API-key auth, NATS publisher
//   - scoring — base risk strategy (fixed or seeded random), worker count, timezone
//   - source  — default CSV location and the credentials used to fetch it
//   - alerts  — KPI alert rules and webhook targets
//   - log     — slog level
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file whenever it is written.
package config
