// Package metrics declares the Prometheus collectors of the engine and the
// listeners and middleware that feed them. Collectors register with the
// default registry on import and are served by promhttp at /metrics.
package metrics
