// Package metrics holds Prometheus instruments for configuration startup.
// All collectors are registered with the global registry, so exposing
// promhttp.Handler() anywhere in the process is enough to publish them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels for ConfigResolutions.
const (
	ResultOK         = "ok"
	ResultParse      = "parse_error"
	ResultValidation = "validation_error"
	ResultSecret     = "secret_error"
	ResultLoad       = "load_error"
)

var (
	ConfigResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_resolutions_total",
			Help: "Configuration resolutions by result.",
		}, []string{"result"})

	DirectiveApplications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "runtime_directive_applications_total",
			Help: "Cumulative number of runtime directive applications.",
		})

	MemoryLimitBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtime_memory_limit_bytes",
			Help: "Soft memory ceiling set by the runtime directives.",
		})

	DebugMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "runtime_debug_mode",
			Help: "1 when diagnostic output is enabled, 0 otherwise.",
		})
)

func init() {
	prometheus.MustRegister(
		ConfigResolutions,
		DirectiveApplications,
		MemoryLimitBytes,
		DebugMode,
	)
}
