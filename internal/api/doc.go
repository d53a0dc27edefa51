// Package api hosts the HTTP server, middleware, and REST handlers for
// operators. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sweeps to run a sweep synchronously.
//   - GET /v1/reports, /v1/reports/latest and /v1/reports/{report_id} for
//     persisted reports.
//   - GET /v1/sweeps/status and /v1/zones for live state and the catalogue.
package api
