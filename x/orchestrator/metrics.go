package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/compose-network/epoch-prover/metrics"
)

type orchestratorMetrics struct {
	jobsRequested *prometheus.CounterVec
	jobsSettled   *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	scopeFailures *prometheus.CounterVec
	epochs        *prometheus.CounterVec
	activeEpochs  prometheus.Gauge
	epochDuration prometheus.Histogram
}

func newMetrics(reg *metrics.ComponentRegistry) *orchestratorMetrics {
	return &orchestratorMetrics{
		jobsRequested: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_requested_total",
			Help: "Circuit jobs requested from the prover, by kind",
		}, []string{"kind"}),
		jobsSettled: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_settled_total",
			Help: "Circuit jobs settled, by kind and outcome (ready, failed, discarded)",
		}, []string{"kind", "outcome"}),
		jobDuration: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Time from job request to result",
			Buckets: metrics.ProvingBuckets,
		}, []string{"kind"}),
		scopeFailures: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "scope_failures_total",
			Help: "Scopes settled as failed, by level",
		}, []string{"level"}),
		epochs: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "epochs_total",
			Help: "Finalized epochs by outcome",
		}, []string{"outcome"}),
		activeEpochs: reg.NewGauge(prometheus.GaugeOpts{
			Name: "active_epochs",
			Help: "1 while an epoch is open",
		}),
		epochDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "epoch_duration_seconds",
			Help:    "Time from epoch start to finalization",
			Buckets: metrics.ProvingBuckets,
		}),
	}
}
