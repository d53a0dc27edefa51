// Package sinks implements progress consumers: structured logging,
// Prometheus stage counters, bus publishing, and the in-memory sweep status
// served by the API.
package sinks
