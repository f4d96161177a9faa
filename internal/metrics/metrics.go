package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	// Authentication metrics
	loginTotal  *prometheus.CounterVec
	unwrapTotal *prometheus.CounterVec

	// Engine metrics
	engineRequestTotal    *prometheus.CounterVec
	engineRequestDuration *prometheus.HistogramVec

	// Resolution metrics
	resourceReadTotal *prometheus.CounterVec
	cacheLookupTotal  *prometheus.CounterVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Recorder records client metrics. The zero value is usable; nothing is
// recorded until InitMetrics has run.
type Recorder struct{}

// New creates a new Recorder.
func New() *Recorder {
	return &Recorder{}
}

// InitMetrics registers all collectors with the default Prometheus registry.
// It is safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		loginTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsvault_login_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"method", "status"},
		)

		unwrapTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsvault_unwrap_total",
				Help: "Total number of response-wrapping token unwraps",
			},
			[]string{"status"},
		)

		engineRequestTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsvault_engine_requests_total",
				Help: "Total number of secret engine requests",
			},
			[]string{"operation", "status"},
		)

		engineRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dsvault_engine_request_duration_seconds",
				Help:    "Duration of secret engine requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		)

		resourceReadTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsvault_resource_reads_total",
				Help: "Total number of resource URI reads by engine kind",
			},
			[]string{"engine", "status"},
		)

		cacheLookupTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dsvault_config_cache_lookups_total",
				Help: "Total number of configuration value lookups by cache result",
			},
			[]string{"result"},
		)

		metricsRegistered.Store(true)
	})
}

// Status maps an error to a status label.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordLogin records an authentication attempt.
func (m *Recorder) RecordLogin(method string, err error) {
	if !metricsRegistered.Load() || loginTotal == nil {
		return
	}
	loginTotal.WithLabelValues(method, Status(err)).Inc()
}

// RecordUnwrap records an unwrap call.
func (m *Recorder) RecordUnwrap(err error) {
	if !metricsRegistered.Load() || unwrapTotal == nil {
		return
	}
	unwrapTotal.WithLabelValues(Status(err)).Inc()
}

// RecordEngineRequest records a single engine call and its latency.
func (m *Recorder) RecordEngineRequest(operation string, err error, durationSeconds float64) {
	if !metricsRegistered.Load() {
		return
	}

	if engineRequestTotal != nil {
		engineRequestTotal.WithLabelValues(operation, Status(err)).Inc()
	}

	if engineRequestDuration != nil {
		engineRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
	}
}

// RecordResourceRead records a dispatched resource read.
func (m *Recorder) RecordResourceRead(engine string, err error) {
	if !metricsRegistered.Load() || resourceReadTotal == nil {
		return
	}
	resourceReadTotal.WithLabelValues(engine, Status(err)).Inc()
}

// RecordCacheLookup records a configuration cache hit or miss.
func (m *Recorder) RecordCacheLookup(hit bool) {
	if !metricsRegistered.Load() || cacheLookupTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupTotal.WithLabelValues(result).Inc()
}

// GetLoginTotal returns the login counter for testing.
func GetLoginTotal() *prometheus.CounterVec {
	return loginTotal
}

// GetUnwrapTotal returns the unwrap counter for testing.
func GetUnwrapTotal() *prometheus.CounterVec {
	return unwrapTotal
}

// GetEngineRequestTotal returns the engine request counter for testing.
func GetEngineRequestTotal() *prometheus.CounterVec {
	return engineRequestTotal
}

// GetEngineRequestDuration returns the engine latency histogram for testing.
func GetEngineRequestDuration() *prometheus.HistogramVec {
	return engineRequestDuration
}

// GetResourceReadTotal returns the resource read counter for testing.
func GetResourceReadTotal() *prometheus.CounterVec {
	return resourceReadTotal
}

// GetCacheLookupTotal returns the cache lookup counter for testing.
func GetCacheLookupTotal() *prometheus.CounterVec {
	return cacheLookupTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered.Load()
}
