package harvest

import (
	"github.com/haierkeys/harvester-service/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus counters for harvest runs. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	files    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	running  prometheus.Gauge
}

// NewMetrics registers the harvest collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "run",
			Name:      "total",
			Help:      "Finished harvest runs by protocol, trigger and terminal state.",
		}, []string{"protocol", "trigger", "state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "harvester",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall time of harvest runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"protocol", "state"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "delivery",
			Name:      "files_total",
			Help:      "Data files delivered to the output sink.",
		}, []string{"protocol"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "delivery",
			Name:      "bytes_total",
			Help:      "Bytes read from remote sources.",
		}, []string{"protocol"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "harvester",
			Subsystem: "run",
			Name:      "running",
			Help:      "Harvest runs currently in progress.",
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.duration, m.files, m.bytes, m.running} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) runFinished(run *domain.HarvestRun) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.runs.WithLabelValues(string(run.Protocol), string(run.Trigger), string(run.State)).Inc()
	m.duration.WithLabelValues(string(run.Protocol), string(run.State)).
		Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
}

func (m *Metrics) fileDelivered(p domain.Protocol, n int64) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(string(p)).Inc()
	m.bytes.WithLabelValues(string(p)).Add(float64(n))
}
