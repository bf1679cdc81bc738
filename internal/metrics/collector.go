// Package metrics exposes Prometheus counters for flow handoffs, execution
// status changes and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/internal/engine"
	"github.com/rendis/flowbridge/pkg/schema"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "flowbridge"

// Collector owns a private registry and the flowbridge metric vectors.
type Collector struct {
	registry *prometheus.Registry

	Handoffs            *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector under namespace ("" means DefaultNamespace).
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoffs_total",
			Help:      "Flow launches and resumes by outcome",
		}, []string{"op", "flow", "outcome"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_transitions_total",
			Help:      "Execution status transitions",
		}, []string{"from", "to"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(c.Handoffs, c.Transitions, c.HTTPRequestsTotal, c.HTTPRequestDuration)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHandoff counts a launch or resume. Failed calls are labelled with
// their error code.
func (c *Collector) ObserveHandoff(op, flowID string, res *bridge.HandoffResult, err error) {
	outcome := schema.OutcomePaused
	switch {
	case err != nil:
		outcome = schema.CodeOf(err)
		if outcome == "" {
			outcome = schema.OutcomeError
		}
	case res.Ended:
		outcome = schema.OutcomeEnded
	}
	c.Handoffs.WithLabelValues(op, flowID, outcome).Inc()
}

// InstrumentFSM counts every valid status transition of fsm.
func (c *Collector) InstrumentFSM(fsm *engine.ExecutionFSM) {
	for from, targets := range engine.ValidExecutionTransitions {
		for _, to := range targets {
			fsm.OnAfter(from, to, func(from, to string) error {
				c.Transitions.WithLabelValues(from, to).Inc()
				return nil
			})
		}
	}
}

// Middleware records request counts and durations.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

var _ bridge.HandoffObserver = (*Collector)(nil)
