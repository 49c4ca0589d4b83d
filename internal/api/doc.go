// Package api hosts the optional status server. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs and /v1/runs/{run_id} for crawl and rank progress tallies.
//   - GET /v1/ranks/latest for the last persisted rank run.
package api
