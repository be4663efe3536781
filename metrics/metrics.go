// ABOUTME: Prometheus instrumentation for log operations, CRM errors and processors
// ABOUTME: Uses a private registry so several recorders can coexist in tests
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
)

// Recorder collects callbridge metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	remote     *prometheus.CounterVec
	processors *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbridge",
			Name:      "log_operations_total",
			Help:      "Log operations handled, by operation, platform and outcome.",
		}, []string{"operation", "platform", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callbridge",
			Name:      "log_operation_duration_seconds",
			Help:      "Time spent handling log operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "platform"}),
		remote: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbridge",
			Name:      "crm_errors_total",
			Help:      "Errors returned by CRM connectors, by platform and status code.",
		}, []string{"platform", "status"}),
		processors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbridge",
			Name:      "processor_runs_total",
			Help:      "Pass-through processor invocations, by stage, mode and outcome.",
		}, []string{"stage", "mode", "outcome"}),
	}
	r.registry.MustRegister(r.operations, r.duration, r.remote, r.processors)
	return r
}

// ObserveOperation records one finished handler operation.
func (r *Recorder) ObserveOperation(operation, platform, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, platform, outcome).Inc()
	r.duration.WithLabelValues(operation, platform).Observe(elapsed.Seconds())
}

// RemoteError counts a failed CRM call. Status 0 means the status was unknown.
func (r *Recorder) RemoteError(platform string, status int) {
	if r == nil {
		return
	}
	r.remote.WithLabelValues(platform, strconv.Itoa(status)).Inc()
}

func (r *Recorder) ProcessorRun(stage, mode, outcome string) {
	if r == nil {
		return
	}
	r.processors.WithLabelValues(stage, mode, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
