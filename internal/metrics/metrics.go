// Package metrics exposes the FUSE operation counters MetricHandle
// recorded in the teacher's cmd/mount.go (ops.go's per-op Prometheus
// counters, serverCfg.MetricHandle), generalized from GCS-call
// accounting to fsadapt's own operation set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder counts completed fsadapt operations and times them,
// registered against its own private registry so concurrent test
// mounts never collide on Prometheus's global default registerer.
type Recorder struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New builds a Recorder with an empty, private registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mikufs_fuse_ops_total",
			Help: "Completed FUSE operations by name.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mikufs_fuse_op_errors_total",
			Help: "FUSE operations that returned a non-nil errno.",
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mikufs_fuse_op_duration_seconds",
			Help:    "FUSE operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(r.ops, r.errors, r.latency)
	return r
}

// Inc records one completed call to op, counting it as an error when
// err is non-nil.
func (r *Recorder) Inc(op string, err error) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op).Inc()
	if err != nil {
		r.errors.WithLabelValues(op).Inc()
	}
}

// Observe records op's wall-clock duration in seconds.
func (r *Recorder) Observe(op string, seconds float64) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Handler serves the registry's current metrics in the Prometheus
// exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
