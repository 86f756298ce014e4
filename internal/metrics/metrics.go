// Package metrics exposes Prometheus instrumentation for the dialer agent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"levlyfy/internal/calls"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dialer"

type Metrics struct {
	reg *prometheus.Registry

	transitions        *prometheus.CounterVec
	droppedTransitions prometheus.Counter
	talkTime           prometheus.Histogram
	callOutcomes       *prometheus.CounterVec

	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Call-session state transitions.",
		}, []string{"from", "to"}),
		droppedTransitions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_dropped_total",
			Help:      "Transitions dropped because observers fell behind.",
		}),
		talkTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_talk_seconds",
			Help:      "Time spent connected per call.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		callOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Finished call sessions by outcome.",
		}, []string{"direction", "outcome"}), // outcome: answered, unanswered, failed
		backendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests to the backend REST API.",
		}, []string{"method", "path", "status_code"}),
		backendDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend REST API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status_code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry is exposed for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observer counts transitions and records call outcomes.
func (m *Metrics) Observer() calls.Observer {
	return calls.ObserverFunc(func(t calls.Transition) {
		if t.Tick || t.From == t.To {
			return
		}
		m.transitions.WithLabelValues(string(t.From), string(t.To)).Inc()

		if !t.From.Active() || t.To.Active() {
			return
		}
		dir := string(t.Snapshot.Direction)
		if dir == "" {
			dir = string(calls.DirectionOutbound)
		}
		switch {
		case t.From == calls.StateConnected:
			m.talkTime.Observe(float64(t.TalkSeconds))
			m.callOutcomes.WithLabelValues(dir, "answered").Inc()
		case t.To == calls.StateError:
			m.callOutcomes.WithLabelValues(dir, "failed").Inc()
		default:
			m.callOutcomes.WithLabelValues(dir, "unanswered").Inc()
		}
	})
}

// DroppedTransition is wired to the coordinator's OnDrop hook.
func (m *Metrics) DroppedTransition() { m.droppedTransitions.Inc() }

// ObserveBackend matches apiclient.ObserveFunc.
func (m *Metrics) ObserveBackend(method, path string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.backendRequests.WithLabelValues(method, path, code).Inc()
	m.backendDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// Middleware records request counts and latency per route pattern.
// Streams are counted but kept out of the latency histogram.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := c.Writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		if c.Writer.Header().Get("Content-Type") != "text/event-stream" && !c.IsWebsocket() {
			m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		}
	}
}
