// Package api hosts the HTTP server, middleware, and REST handlers behind the
// operator dashboard. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/quotes and /v1/tags for browsing stored rows.
//   - GET /v1/runs to list crawl runs, POST /v1/runs to trigger one.
package api
