package orchestrator

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

// EpochProof is the result of a successfully proven epoch.
type EpochProof struct {
	EpochNumber  uint64                      `json:"epoch_number"`
	PublicInputs circuits.EpochPublicInputs  `json:"public_inputs"`
	Proof        circuits.ProofBytes         `json:"proof"`
	Headers      []circuits.CheckpointHeader `json:"checkpoint_headers"`
	// BlobFieldsTotal is the number of blob fields across all checkpoints.
	BlobFieldsTotal uint64 `json:"blob_fields_total"`
}

type epochState struct {
	scope

	number          uint64
	checkpointCount int
	challenges      circuits.BlobChallenges
	startedAt       time.Time

	checkpoints []*checkpointState
	cpTree      *mergeTree
	parity      *paritySubtree
	padding     *slot
	rootRollup  *slot

	fork worldstate.Fork
	// blocks indexes every opened block by number.
	blocks     map[uint64]*blockState
	lastBlock  *blockState
	lastHeader *circuits.BlockHeader
	// constants of the first checkpoint; later checkpoints must agree.
	constants *circuits.CheckpointConstants

	proof       *EpochProof
	pendingJobs int
}

func newEpochState(number uint64, checkpointCount, parityPerCheckpoint int, challenges circuits.BlobChallenges,
	fork worldstate.Fork,
) *epochState {
	id := fmt.Sprintf("epoch-%d", number)
	return &epochState{
		scope:           newScope(id, LevelEpoch),
		number:          number,
		checkpointCount: checkpointCount,
		challenges:      challenges,
		startedAt:       time.Now(),
		cpTree:          newMergeTree(id+"/checkpoints", checkpointCount),
		parity:          newParitySubtree(id, checkpointCount, parityPerCheckpoint),
		padding:         newSlot(id+"/padding", 0),
		rootRollup:      newSlot(id+"/root", 0),
		fork:            fork,
		blocks:          make(map[uint64]*blockState),
	}
}

func (e *epochState) currentCheckpoint() *checkpointState {
	if len(e.checkpoints) == 0 {
		return nil
	}
	return e.checkpoints[len(e.checkpoints)-1]
}

// fullyOpened reports whether every declared checkpoint and block exists.
func (e *epochState) fullyOpened() bool {
	if len(e.checkpoints) < e.checkpointCount {
		return false
	}
	for _, cp := range e.checkpoints {
		if !cp.full() {
			return false
		}
	}
	return true
}

// fullyCompleted reports whether every declared block has all its txs and
// was passed to SetBlockCompleted.
func (e *epochState) fullyCompleted() bool {
	if !e.fullyOpened() {
		return false
	}
	for _, cp := range e.checkpoints {
		for _, b := range cp.blocks {
			if !b.completed || len(b.txs) < b.txCount {
				return false
			}
		}
	}
	return true
}

func (e *epochState) needsPadding() bool {
	return e.checkpointCount == 1
}

func (o *Orchestrator) advanceEpoch(e *epochState) {
	if e.failed() {
		return
	}
	for _, step := range e.cpTree.readyMerges() {
		in := &circuits.CheckpointMergeInputs{
			Left:  *step.left.result.Outputs.Checkpoint,
			Right: *step.right.result.Outputs.Checkpoint,
		}
		o.dispatch(e, step.parent, circuits.KindCheckpointMergeRollup, circuits.Inputs{CheckpointMerge: in},
			func(circuits.Result) error {
				o.advanceEpoch(e)
				return nil
			},
			func(f *JobFailure) { o.failEpoch(e, f) })
	}
	o.maybeSchedulePadding(e)
	o.maybeScheduleRootRollup(e)
}

// maybeSchedulePadding proves the empty right-hand checkpoint a
// single-checkpoint epoch needs for its root rollup.
func (o *Orchestrator) maybeSchedulePadding(e *epochState) {
	if e.failed() || !e.needsPadding() || e.padding.status != StatusEmpty || !e.cpTree.topReady() {
		return
	}
	archive := e.cpTree.topResults()[0].Outputs.Checkpoint.NewArchive
	in := &circuits.CheckpointPaddingInputs{Archive: archive}
	o.dispatch(e, e.padding, circuits.KindCheckpointPaddingRollup, circuits.Inputs{CheckpointPadding: in},
		func(circuits.Result) error {
			o.maybeScheduleRootRollup(e)
			return nil
		},
		func(f *JobFailure) { o.failEpoch(e, f) })
}

func (o *Orchestrator) maybeScheduleRootRollup(e *epochState) {
	switch {
	case e.failed(), e.rootRollup.status != StatusEmpty:
		return
	case len(e.checkpoints) < e.checkpointCount, !e.cpTree.topReady(), !e.parity.root.ready():
		return
	case e.needsPadding() && !e.padding.ready():
		return
	}

	top := e.cpTree.topResults()
	left := *top[0].Outputs.Checkpoint
	var right circuits.CheckpointRollupOutputs
	if e.needsPadding() {
		right = *e.padding.result.Outputs.Checkpoint
	} else {
		right = *top[1].Outputs.Checkpoint
	}
	c := e.constants
	in := &circuits.RootRollupInputs{
		Left:             left,
		Right:            right,
		Parity:           *e.parity.root.result.Outputs.Parity,
		ChainID:          c.ChainID,
		Version:          c.Version,
		VkTreeRoot:       c.VkTreeRoot,
		ProverID:         c.ProverID,
		Challenges:       e.challenges,
		MaxEpochDuration: o.cfg.MaxEpochDuration,
	}
	o.dispatch(e, e.rootRollup, circuits.KindRootRollup, circuits.Inputs{RootRollup: in},
		func(res circuits.Result) error { return o.rootRollupReady(e, res) },
		func(f *JobFailure) { o.failEpoch(e, f) })
}

func (o *Orchestrator) rootRollupReady(e *epochState, res circuits.Result) error {
	pub := res.Outputs.Epoch
	if len(pub.CheckpointHeaderHashes) != o.cfg.MaxEpochDuration {
		return structuralError(HeaderMismatch, "root rollup returned %d header hashes, want %d",
			len(pub.CheckpointHeaderHashes), o.cfg.MaxEpochDuration)
	}
	proof := &EpochProof{
		EpochNumber:  e.number,
		PublicInputs: *pub,
		Proof:        res.Proof.Clone(),
		Headers:      make([]circuits.CheckpointHeader, len(e.checkpoints)),
	}
	for i, h := range pub.CheckpointHeaderHashes {
		var want common.Hash
		if i < len(e.checkpoints) {
			cp := e.checkpoints[i]
			want = cp.header.Hash()
			proof.Headers[i] = *cp.header
			proof.BlobFieldsTotal += cp.numBlobFields
		}
		if h != want {
			return structuralError(HeaderMismatch, "root rollup header hash %d is %s, want %s",
				i, h.TerminalString(), want.TerminalString())
		}
	}
	e.proof = proof
	e.succeed()
	o.log.Info().
		Uint64("epoch", e.number).
		Int("checkpoints", len(e.checkpoints)).
		Str("end_archive", pub.EndArchiveRoot.TerminalString()).
		Dur("elapsed", time.Since(e.startedAt)).
		Msg("Epoch proven")
	return nil
}

func (o *Orchestrator) failBlock(e *epochState, b *blockState, f *JobFailure) {
	if b.failWith(f) {
		o.metrics.scopeFailures.WithLabelValues(LevelBlock.String()).Inc()
	}
	o.failCheckpoint(e, b.cp, f)
}

func (o *Orchestrator) failCheckpoint(e *epochState, cp *checkpointState, f *JobFailure) {
	if cp.failWith(f) {
		o.metrics.scopeFailures.WithLabelValues(LevelCheckpoint.String()).Inc()
	}
	o.failEpoch(e, f)
}

// failEpoch records the first failure of the epoch and settles every scope
// still open below it with the same record, so no caller is left waiting.
func (o *Orchestrator) failEpoch(e *epochState, f *JobFailure) {
	if !e.failWith(f) {
		o.log.Warn().
			Uint64("epoch", e.number).
			Str("scope", f.Scope).
			Stringer("kind", f.Kind).
			Str("error", f.Message).
			Msg("Superseded failure")
		return
	}
	o.metrics.scopeFailures.WithLabelValues(LevelEpoch.String()).Inc()
	o.log.Error().
		Uint64("epoch", e.number).
		Str("scope", f.Scope).
		Stringer("kind", f.Kind).
		Str("error", f.Message).
		Msg("Epoch proving failed")

	for _, cp := range e.checkpoints {
		for _, b := range cp.blocks {
			b.failWith(f)
		}
		cp.failWith(f)
	}
}
