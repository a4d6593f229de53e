package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dispatch collects counters for the notification pipeline. A nil
// *Dispatch is valid and records nothing.
type Dispatch struct {
	registry *prometheus.Registry
	messages *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	batches  *prometheus.CounterVec
}

// New registers the dispatch collectors on a fresh registry
func New() *Dispatch {
	d := &Dispatch{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edunotify_messages_total",
			Help: "Messages attempted, by backend and resulting status",
		}, []string{"backend", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "edunotify_gateway_latency_seconds",
			Help:    "Gateway call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"backend"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "edunotify_batches_total",
			Help: "Dispatch batches completed, by template code",
		}, []string{"template"}),
	}
	d.registry.MustRegister(d.messages, d.latency, d.batches)
	return d
}

// ObserveSend records one gateway call
func (d *Dispatch) ObserveSend(backend string, ok bool, elapsed time.Duration) {
	if d == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	d.messages.WithLabelValues(backend, status).Inc()
	d.latency.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// BatchCompleted records one finished batch
func (d *Dispatch) BatchCompleted(templateCode string) {
	if d == nil {
		return
	}
	d.batches.WithLabelValues(templateCode).Inc()
}

// Handler serves the registry in the Prometheus text format
func (d *Dispatch) Handler() http.Handler {
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}
