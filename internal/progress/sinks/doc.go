// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors and an in-memory tally for the status endpoint.
package sinks
