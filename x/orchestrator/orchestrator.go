// Package orchestrator drives the proving of an epoch. Callers feed it
// checkpoints, blocks and transactions as they are sequenced; it requests
// every circuit job of the epoch's proof tree from a prover as soon as the
// job's inputs are ready, and aggregates the results into one epoch proof.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/metrics"
	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/prover"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

// Orchestrator proves one epoch at a time. All methods are safe for
// concurrent use; SetBlockCompleted and FinalizeEpoch block until the
// scope they wait on settles.
type Orchestrator struct {
	cfg     Config
	prover  prover.Prover
	store   worldstate.Store
	metrics *orchestratorMetrics
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	epoch *epochState // nil while idle

	jobsRequested uint64
	jobsReady     uint64
	jobsFailed    uint64
	jobsDiscarded uint64
	epochsProven  uint64
	epochsFailed  uint64
}

func New(cfg Config, p prover.Prover, store worldstate.Store, log zerolog.Logger) (*Orchestrator, error) {
	return NewWithMetrics(cfg, p, store, metrics.NewComponentRegistry("prover", "orchestrator"), log)
}

// NewWithMetrics is New with an explicit metrics registry.
func NewWithMetrics(cfg Config, p prover.Prover, store worldstate.Store, reg *metrics.ComponentRegistry,
	log zerolog.Logger,
) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	if p == nil {
		return nil, errors.New("prover is required")
	}
	if store == nil {
		return nil, errors.New("world state store is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:     cfg,
		prover:  p,
		store:   store,
		metrics: newMetrics(reg),
		log:     log.With().Str("component", "orchestrator").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Stop cancels every in-flight job and wakes blocked callers.
func (o *Orchestrator) Stop() {
	o.cancel()
	o.wg.Wait()
}

// StartNewEpoch opens a new epoch of checkpointCount checkpoints and forks
// the world state it is built on.
func (o *Orchestrator) StartNewEpoch(ctx context.Context, number uint64, checkpointCount int,
	challenges circuits.BlobChallenges,
) error {
	const op = "start new epoch"
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.epoch != nil {
		return stateError(op, "epoch %d is still open", o.epoch.number)
	}
	if checkpointCount < 1 || checkpointCount > o.cfg.MaxEpochDuration {
		return stateError(op, "checkpoint count %d outside [1, %d]", checkpointCount, o.cfg.MaxEpochDuration)
	}
	fork, err := o.store.Fork(ctx)
	if err != nil {
		return fmt.Errorf("fork world state: %w", err)
	}

	o.epoch = newEpochState(number, checkpointCount, o.cfg.BaseParityPerCheckpoint(), challenges, fork)
	o.metrics.activeEpochs.Set(1)
	o.log.Info().
		Uint64("epoch", number).
		Int("checkpoints", checkpointCount).
		Msg("Started epoch")
	return nil
}

// StartNewCheckpoint opens checkpoint index of the current epoch and
// requests the base parity proofs of its L1 to L2 messages.
func (o *Orchestrator) StartNewCheckpoint(ctx context.Context, index int, constants circuits.CheckpointConstants,
	l1ToL2Messages []common.Hash, blockCount int, previousHeader *circuits.BlockHeader,
) error {
	const op = "start new checkpoint"
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.epoch
	switch {
	case e == nil:
		return stateError(op, "no epoch is open")
	case e.failed():
		return stateError(op, "epoch %d already failed", e.number)
	case index != len(e.checkpoints):
		return stateError(op, "checkpoint %d is not next, expected %d", index, len(e.checkpoints))
	case index >= e.checkpointCount:
		return stateError(op, "epoch %d declared %d checkpoints", e.number, e.checkpointCount)
	case len(l1ToL2Messages) > o.cfg.MessagesPerCheckpoint:
		return stateError(op, "%d messages exceed the %d per checkpoint", len(l1ToL2Messages), o.cfg.MessagesPerCheckpoint)
	case blockCount < 1 || blockCount > o.cfg.MaxBlocksPerCheckpoint:
		return stateError(op, "block count %d outside [1, %d]", blockCount, o.cfg.MaxBlocksPerCheckpoint)
	}
	if prev := e.currentCheckpoint(); prev != nil && !prev.full() {
		return stateError(op, "checkpoint %d has %d of %d blocks", prev.index, len(prev.blocks), prev.blockCount)
	}
	if e.constants != nil && !e.constants.SameEpochConstants(constants) {
		return stateError(op, "checkpoint %d constants do not match the epoch", index)
	}
	if previousHeader != nil && e.lastBlock != nil && previousHeader.Number() != e.lastBlock.number {
		return stateError(op, "previous header is block %d, last block is %d", previousHeader.Number(), e.lastBlock.number)
	}

	if e.constants == nil {
		c := constants
		e.constants = &c
	}
	msgs := padMessages(l1ToL2Messages, o.cfg.MessagesPerCheckpoint)
	cp := newCheckpointState(e, index, constants, msgs, blockCount, previousHeader)
	e.checkpoints = append(e.checkpoints, cp)
	if len(e.checkpoints) == e.checkpointCount {
		e.await()
	}

	o.log.Info().
		Uint64("epoch", e.number).
		Int("checkpoint", index).
		Int("blocks", blockCount).
		Int("messages", len(l1ToL2Messages)).
		Msg("Started checkpoint")
	o.dispatchBaseParity(e, cp)
	return nil
}

// StartNewBlock opens the next block of the current checkpoint.
func (o *Orchestrator) StartNewBlock(ctx context.Context, number, timestamp uint64, txCount int) error {
	const op = "start new block"
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.epoch
	if e == nil {
		return stateError(op, "no epoch is open")
	}
	cp := e.currentCheckpoint()
	switch {
	case cp == nil:
		return stateError(op, "no checkpoint is open")
	case cp.full():
		return stateError(op, "checkpoint %d already has its %d blocks", cp.index, cp.blockCount)
	case cp.settled():
		return stateError(op, "checkpoint %d is %s", cp.index, cp.phase)
	case txCount < 0 || txCount > o.cfg.MaxTxsPerBlock:
		return stateError(op, "tx count %d outside [0, %d]", txCount, o.cfg.MaxTxsPerBlock)
	}
	if want, ok := o.nextBlockNumber(e, cp); ok && number != want {
		return stateError(op, "block %d is not next, expected %d", number, want)
	}

	b := newBlockState(cp, len(cp.blocks), number, timestamp, txCount)
	if e.lastBlock != nil {
		b.prev = e.lastBlock
		e.lastBlock.next = b
	}
	cp.blocks = append(cp.blocks, b)
	e.blocks[number] = b
	e.lastBlock = b
	if cp.full() {
		cp.await()
	}

	o.log.Debug().
		Uint64("block", number).
		Int("checkpoint", cp.index).
		Int("txs", txCount).
		Msg("Started block")
	if txCount == 0 && b.txTree != nil {
		o.dispatchLeaf(e, b, 0, circuits.KindEmptyTxBaseRollup, circuits.PaddingTx(number))
	}
	return nil
}

func (o *Orchestrator) nextBlockNumber(e *epochState, cp *checkpointState) (uint64, bool) {
	if e.lastBlock != nil {
		return e.lastBlock.number + 1, true
	}
	if cp.previousHeader != nil {
		return cp.previousHeader.Number() + 1, true
	}
	return 0, false
}

// AddTxs requests the base rollup of every tx, in order, and returns once
// the requests are issued. All txs must belong to the same open block.
func (o *Orchestrator) AddTxs(ctx context.Context, txs []circuits.Tx) error {
	const op = "add txs"
	if len(txs) == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.epoch
	if e == nil {
		return stateError(op, "no epoch is open")
	}
	number := txs[0].BlockNumber
	for i := range txs {
		if txs[i].BlockNumber != number {
			return stateError(op, "txs span blocks %d and %d", number, txs[i].BlockNumber)
		}
	}
	b, ok := e.blocks[number]
	switch {
	case !ok:
		return stateError(op, "block %d is not open", number)
	case b.failed():
		return b.err()
	case b.completed:
		return stateError(op, "block %d is already completed", number)
	case len(b.txs)+len(txs) > b.txCount:
		return stateError(op, "block %d declared %d txs, got %d", number, b.txCount, len(b.txs)+len(txs))
	}

	for _, tx := range txs {
		i := len(b.txs)
		b.txs = append(b.txs, tx)
		o.dispatchLeaf(e, b, i, tx.BaseKind(), tx)
	}
	return nil
}

// SetBlockCompleted closes a block: it builds the block header on top of
// the previous block's, requests the block root and waits for it. When
// expected is set, the built header must hash to the same value.
func (o *Orchestrator) SetBlockCompleted(ctx context.Context, number uint64, expected *circuits.BlockHeader,
) (*circuits.BlockHeader, error) {
	const op = "set block completed"
	o.mu.Lock()

	e := o.epoch
	if e == nil {
		o.mu.Unlock()
		return nil, stateError(op, "no epoch is open")
	}
	b, ok := e.blocks[number]
	switch {
	case !ok:
		o.mu.Unlock()
		return nil, stateError(op, "block %d is not open", number)
	case b.failed():
		o.mu.Unlock()
		return nil, b.err()
	case b.completed:
		o.mu.Unlock()
		return nil, stateError(op, "block %d is already completed", number)
	case len(b.txs) < b.txCount:
		o.mu.Unlock()
		return nil, stateError(op, "block %d has %d of %d txs", number, len(b.txs), b.txCount)
	}
	b.completed = true
	b.expected = expected
	b.await()

	// Headers are built in block order.
	for !e.failed() && b.prev != nil && b.prev.header == nil {
		prev := b.prev
		o.mu.Unlock()
		var err error
		select {
		case <-prev.headerDone:
		case <-prev.done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-o.ctx.Done():
			err = o.ctx.Err()
		}
		o.mu.Lock()
		if o.epoch != e {
			o.mu.Unlock()
			return nil, stateError(op, "epoch %d was finalized", e.number)
		}
		if err != nil {
			// Leave the block open so the call can be retried.
			if b.header == nil && !b.settled() {
				b.completed = false
				b.expected = nil
			}
			o.mu.Unlock()
			return nil, err
		}
	}

	if !e.failed() && !b.settled() && b.header == nil {
		if err := o.buildBlockHeader(e, b); err != nil {
			o.failBlock(e, b, newJobFailure(b.id, b.rootKind(), err))
		} else {
			o.onHeaderBuilt(e, b)
		}
	}
	done := b.done
	o.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-o.ctx.Done():
		return nil, o.ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if b.failed() {
		return nil, b.err()
	}
	return b.header, nil
}

// FinalizeEpoch waits for the epoch proof and closes the epoch, whether it
// succeeded or failed. A healthy epoch must have every block completed. If
// ctx ends first the epoch stays open.
func (o *Orchestrator) FinalizeEpoch(ctx context.Context) (*EpochProof, error) {
	const op = "finalize epoch"
	o.mu.Lock()
	e := o.epoch
	switch {
	case e == nil:
		o.mu.Unlock()
		return nil, stateError(op, "no epoch is open")
	case !e.failed() && !e.fullyOpened():
		o.mu.Unlock()
		return nil, stateError(op, "epoch %d has unopened checkpoints or blocks", e.number)
	case !e.failed() && !e.fullyCompleted():
		o.mu.Unlock()
		return nil, stateError(op, "epoch %d has blocks that are not completed", e.number)
	}
	e.await()
	done := e.done
	o.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-o.ctx.Done():
		return nil, o.ctx.Err()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != e {
		return nil, stateError(op, "epoch %d was already finalized", e.number)
	}
	o.epoch = nil
	o.metrics.activeEpochs.Set(0)
	o.metrics.epochDuration.Observe(time.Since(e.startedAt).Seconds())
	defer e.fork.Close()

	if e.failed() {
		o.epochsFailed++
		o.metrics.epochs.WithLabelValues("failed").Inc()
		return nil, e.err()
	}
	if o.cfg.PersistProvenState {
		if err := e.fork.Persist(); err != nil {
			o.epochsFailed++
			o.metrics.epochs.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("persist epoch %d state: %w", e.number, err)
		}
	}
	o.epochsProven++
	o.metrics.epochs.WithLabelValues("proven").Inc()
	o.log.Info().
		Uint64("epoch", e.number).
		Str("proof", e.proof.Proof.String()).
		Msg("Finalized epoch")
	return e.proof, nil
}

// dispatch requests the job for s and arranges for its outcome to be fed
// back under the lock. A slot is requested at most once. onReady may
// reject the result, which then fails the slot's scope through onFail.
func (o *Orchestrator) dispatch(e *epochState, s *slot, kind circuits.JobKind, inputs circuits.Inputs,
	onReady func(circuits.Result) error, onFail func(*JobFailure),
) {
	if e.failed() || !s.begin(kind) {
		return
	}
	job := circuits.Job{
		ID:          fmt.Sprintf("%s/%s", s.id, kind),
		EpochNumber: e.number,
		Kind:        kind,
		Inputs:      inputs,
	}
	e.pendingJobs++
	o.jobsRequested++
	o.metrics.jobsRequested.WithLabelValues(kind.String()).Inc()
	o.log.Debug().Str("job_id", job.ID).Stringer("kind", kind).Msg("Requested job")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		start := time.Now()
		res, err := o.prover.Prove(o.ctx, job)
		if err == nil {
			err = checkResult(job, res)
		}
		o.metrics.jobDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())

		o.mu.Lock()
		defer o.mu.Unlock()
		e.pendingJobs--
		log := o.log.With().Str("job_id", job.ID).Stringer("kind", kind).Logger()

		if o.epoch != e || e.failed() {
			o.jobsDiscarded++
			o.metrics.jobsSettled.WithLabelValues(kind.String(), "discarded").Inc()
			if err != nil {
				log.Warn().Err(err).Msg("Superseded job failure")
			} else {
				log.Debug().Msg("Discarded result of abandoned job")
			}
			return
		}
		if err != nil {
			o.jobsFailed++
			o.metrics.jobsSettled.WithLabelValues(kind.String(), "failed").Inc()
			log.Error().Err(err).Msg("Job failed")
			f := newJobFailure(s.id, kind, err)
			s.fail(f)
			onFail(f)
			return
		}
		o.jobsReady++
		o.metrics.jobsSettled.WithLabelValues(kind.String(), "ready").Inc()
		log.Debug().Str("proof", res.Proof.String()).Msg("Job ready")
		s.complete(res)
		if err := onReady(res); err != nil {
			log.Error().Err(err).Msg("Rejected job result")
			onFail(newJobFailure(s.id, kind, err))
		}
	}()
}

// checkResult makes sure a result carries the outputs its kind produces.
func checkResult(job circuits.Job, res circuits.Result) error {
	if res.Kind != job.Kind {
		return fmt.Errorf("prover returned a %s result for a %s job", res.Kind, job.Kind)
	}
	out := res.Outputs
	var ok bool
	switch k := job.Kind; {
	case k.IsTxBase(), k == circuits.KindTxMergeRollup:
		ok = out.Tx != nil
	case k.IsBlockRoot(), k == circuits.KindBlockMergeRollup:
		ok = out.Block != nil
	case k.IsCheckpointRoot(), k == circuits.KindCheckpointMergeRollup, k == circuits.KindCheckpointPaddingRollup:
		ok = out.Checkpoint != nil
	case k == circuits.KindBaseParity, k == circuits.KindRootParity:
		ok = out.Parity != nil
	case k == circuits.KindRootRollup:
		ok = out.Epoch != nil
	}
	if !ok {
		return fmt.Errorf("%s result has no outputs", job.Kind)
	}
	return nil
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Active              bool   `json:"active"`
	EpochNumber         uint64 `json:"epoch_number,omitempty"`
	Phase               string `json:"phase,omitempty"`
	CheckpointsDeclared int    `json:"checkpoints_declared,omitempty"`
	CheckpointsOpened   int    `json:"checkpoints_opened,omitempty"`
	CheckpointsProven   int    `json:"checkpoints_proven,omitempty"`
	BlocksOpened        int    `json:"blocks_opened,omitempty"`
	BlocksProven        int    `json:"blocks_proven,omitempty"`
	PendingJobs         int    `json:"pending_jobs,omitempty"`
	Failure             string `json:"failure,omitempty"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	e := o.epoch
	if e == nil {
		return Status{}
	}
	st := Status{
		Active:              true,
		EpochNumber:         e.number,
		Phase:               e.phase.String(),
		CheckpointsDeclared: e.checkpointCount,
		CheckpointsOpened:   len(e.checkpoints),
		BlocksOpened:        len(e.blocks),
		PendingJobs:         e.pendingJobs,
	}
	for _, cp := range e.checkpoints {
		if cp.phase == PhaseSucceeded {
			st.CheckpointsProven++
		}
		for _, b := range cp.blocks {
			if b.phase == PhaseSucceeded {
				st.BlocksProven++
			}
		}
	}
	if e.failure != nil {
		st.Failure = e.err().Error()
	}
	return st
}

func (o *Orchestrator) GetStats() map[string]interface{} {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats := map[string]interface{}{
		"jobs_requested": o.jobsRequested,
		"jobs_ready":     o.jobsReady,
		"jobs_failed":    o.jobsFailed,
		"jobs_discarded": o.jobsDiscarded,
		"epochs_proven":  o.epochsProven,
		"epochs_failed":  o.epochsFailed,
		"active":         o.epoch != nil,
	}
	if e := o.epoch; e != nil {
		stats["epoch"] = e.number
		stats["epoch_phase"] = e.phase.String()
		stats["pending_jobs"] = e.pendingJobs
	}
	return stats
}
