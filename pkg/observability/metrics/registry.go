// Package metrics provides Prometheus collectors for repository operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry gathers the repository metrics for export.
// It includes the repository and cache collectors and Go runtime metrics by default.
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with default collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(repositoryOperationDuration)
	reg.MustRegister(repositoryOperationsTotal)
	reg.MustRegister(cacheResultsTotal)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry: reg,
	}
}

// WriteToTextfile writes every gathered metric to path in the text exposition
// format, for node-exporter style textfile collection from one-shot commands.
func (r *Registry) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
