package prover

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/epoch-prover/metrics"
)

type poolMetrics struct {
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	queued      prometheus.Gauge
	running     prometheus.Gauge
}

func newPoolMetrics(reg *metrics.ComponentRegistry) *poolMetrics {
	return &poolMetrics{
		jobsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_total",
			Help: "Circuit jobs run by the pool, by kind and outcome",
		}, []string{"kind", "outcome"}),
		jobDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time spent proving a circuit job",
			Buckets: metrics.ProvingBuckets,
		}, []string{"kind"}),
		queued: reg.NewGauge(prometheus.GaugeOpts{
			Name: "queued_jobs",
			Help: "Jobs waiting for a free worker",
		}),
		running: reg.NewGauge(prometheus.GaugeOpts{
			Name: "running_jobs",
			Help: "Jobs currently being proven",
		}),
	}
}
