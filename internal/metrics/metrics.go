package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// Recorder exports ledger outcomes as Prometheus series on its own registry.
type Recorder struct {
	registry  *prometheus.Registry
	committed *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	replayed  *prometheus.CounterVec
	retried   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "movements_committed_total",
			Help:      "Movements committed, by kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "movements_rejected_total",
			Help:      "Movements rejected, by kind and reason.",
		}, []string{"kind", "reason"}),
		replayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "movements_replayed_total",
			Help:      "Idempotent replays of already committed movements.",
		}, []string{"kind"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "commit_retries_total",
			Help:      "Commit attempts repeated after a conflict.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "commit_duration_seconds",
			Help:      "Time from lock acquisition to durable commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		r.committed, r.rejected, r.replayed, r.retried, r.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) MovementCommitted(kind domain.MovementKind, elapsed time.Duration) {
	r.committed.WithLabelValues(string(kind)).Inc()
	r.latency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (r *Recorder) MovementRejected(kind domain.MovementKind, reason string) {
	r.rejected.WithLabelValues(string(kind), reason).Inc()
}

func (r *Recorder) MovementReplayed(kind domain.MovementKind) {
	r.replayed.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) CommitRetried(kind domain.MovementKind) {
	r.retried.WithLabelValues(string(kind)).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
