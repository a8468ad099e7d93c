// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/plans to run a plan over a bucket range.
//   - GET /v1/robots/summary and /v1/robots/rules for the parsed robots
//     policy in text and JSON form.
package api
