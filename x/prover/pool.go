package prover

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/compose-network/epoch-prover/metrics"
	"github.com/compose-network/epoch-prover/x/circuits"
)

// Pool runs jobs on a backend with at most `workers` in flight. Callers
// beyond that block in Prove until a worker frees up or ctx ends.
type Pool struct {
	backend Prover
	workers int
	sem     *semaphore.Weighted
	metrics *poolMetrics
	log     zerolog.Logger

	queued    atomic.Int64
	running   atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64

	mu     sync.Mutex
	byKind map[circuits.JobKind]uint64
}

func NewPool(backend Prover, workers int, log zerolog.Logger) *Pool {
	return NewPoolWithMetrics(backend, workers, metrics.NewComponentRegistry("prover", "pool"), log)
}

// NewPoolWithMetrics is NewPool with an explicit metrics registry.
func NewPoolWithMetrics(backend Prover, workers int, reg *metrics.ComponentRegistry, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		backend: backend,
		workers: workers,
		sem:     semaphore.NewWeighted(int64(workers)),
		metrics: newPoolMetrics(reg),
		log:     log.With().Str("component", "prover-pool").Logger(),
		byKind:  make(map[circuits.JobKind]uint64),
	}
	p.log.Info().Int("workers", workers).Msg("Prover pool initialized")
	return p
}

func (p *Pool) Prove(ctx context.Context, job circuits.Job) (circuits.Result, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	p.metrics.queued.Set(float64(p.queued.Add(1)))
	err := p.sem.Acquire(ctx, 1)
	p.metrics.queued.Set(float64(p.queued.Add(-1)))
	if err != nil {
		return circuits.Result{}, err
	}
	defer p.sem.Release(1)

	p.metrics.running.Set(float64(p.running.Add(1)))
	defer func() { p.metrics.running.Set(float64(p.running.Add(-1))) }()

	log := p.log.With().Str("job_id", job.ID).Stringer("kind", job.Kind).Logger()
	log.Debug().Msg("Proving job")

	start := time.Now()
	res, err := p.backend.Prove(ctx, job)
	elapsed := time.Since(start)
	p.metrics.jobDuration.WithLabelValues(job.Kind.String()).Observe(elapsed.Seconds())

	if err != nil {
		p.failed.Add(1)
		p.metrics.jobsTotal.WithLabelValues(job.Kind.String(), "failed").Inc()
		log.Debug().Err(err).Dur("elapsed", elapsed).Msg("Job failed")
		return circuits.Result{}, err
	}

	p.completed.Add(1)
	p.metrics.jobsTotal.WithLabelValues(job.Kind.String(), "completed").Inc()
	p.mu.Lock()
	p.byKind[job.Kind]++
	p.mu.Unlock()
	log.Debug().Dur("elapsed", elapsed).Stringer("proof", res.Proof).Msg("Job proven")
	return res, nil
}

// GetStats returns pool counters for the stats endpoint.
func (p *Pool) GetStats() map[string]interface{} {
	p.mu.Lock()
	byKind := make(map[string]uint64, len(p.byKind))
	for k, n := range p.byKind {
		byKind[k.String()] = n
	}
	p.mu.Unlock()

	return map[string]interface{}{
		"workers":   p.workers,
		"queued":    p.queued.Load(),
		"running":   p.running.Load(),
		"completed": p.completed.Load(),
		"failed":    p.failed.Load(),
		"by_kind":   byKind,
	}
}

var _ Prover = (*Pool)(nil)
