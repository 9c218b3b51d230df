package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// SetupPrometheus builds the service registry: Go runtime and process collectors,
// a planbuilder_build_info gauge carrying the running version, plus extra.
func SetupPrometheus(version string, extra ...prometheus.Collector) *prometheus.Registry {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if version == "" {
		version = "unknown"
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "planbuilder_build_info",
		Help:        "Running planbuilder version.",
		ConstLabels: prometheus.Labels{"version": version},
	})
	buildInfo.Set(1)
	promRegistry.MustRegister(buildInfo)

	promRegistry.MustRegister(extra...)
	return promRegistry
}
