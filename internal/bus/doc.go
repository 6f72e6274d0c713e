// Package bus publishes dataset events to NATS so downstream services
// (maintenance planners, historians) can react to new risk scores.
//
// A nil *Publisher is valid and drops every event, which is how the server
// runs when no NATS URL is configured.
package bus
