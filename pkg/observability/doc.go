// Package observability binds the fetch engine's lifecycle hooks to Prometheus
// collectors and structured logs.
package observability
