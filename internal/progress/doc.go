// Package progress carries crawl and rank milestones from the workers to
// whoever is watching: logs, Prometheus, the status endpoint. Emit never
// blocks; a background goroutine batches events and fans them out to sinks.
package progress
