// Package telemetry counts pipeline activity with go-metrics and exposes
// it in the Prometheus text format.
package telemetry
