// Package compute derives failure risk, health tiers and fleet statistics
// from validated sensor records.
//
// score.go holds the pure Score(RawRecord, base) function: a base term plus
// additive feature bands for temperature, vibration, pressure and runtime,
// clamped to [0.01, 0.99]. The base term comes from an injectable
// BaseRiskSource so runs can be reproduced.
//
// classify.go maps a probability to a tier (Healthy <0.3, Degrading
// 0.3–0.7 inclusive, Critical >0.7) and a tier to its suggested action.
//
// aggregate.go folds scored records into a KPISummary. breakdown.go and
// query.go provide the per-location, histogram, quantile and table views
// used by the API.
package compute
