package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/prover"
)

func TestOrchestrator_ProvesEpoch(t *testing.T) {
	p := newFakeProver()
	o, _ := newTestOrchestrator(t, p, testConfig())

	run := runEpoch(t, o, wideEpoch(1))
	require.NoError(t, run.feedErr)
	require.NoError(t, run.err)
	require.NotNil(t, run.proof)

	pub := run.proof.PublicInputs
	assert.Equal(t, 3, pub.NumCheckpoints())
	require.Len(t, run.proof.Headers, 3)
	for i, h := range run.proof.Headers {
		assert.Equal(t, h.Hash(), pub.CheckpointHeaderHashes[i])
	}
	assert.Equal(t, uint64(1337), pub.ChainID)
	assert.NotEmpty(t, run.proof.Proof)
	assert.Len(t, run.headers, 6)

	for _, kind := range circuits.AllKinds() {
		if kind == circuits.KindCheckpointPaddingRollup {
			continue
		}
		assert.Positive(t, p.callCount(kind), "kind %s was never requested", kind)
	}
	assert.Zero(t, p.callCount(circuits.KindCheckpointPaddingRollup))
	assert.Equal(t, Status{}, o.Status())
}

func TestOrchestrator_HeaderHashesPaddedToMaxEpochDuration(t *testing.T) {
	p := newFakeProver()
	o, _ := newTestOrchestrator(t, p, testConfig())

	run := runEpoch(t, o, singleCheckpointEpoch(7))
	require.NoError(t, run.err)

	pub := run.proof.PublicInputs
	require.Len(t, pub.CheckpointHeaderHashes, DefaultMaxEpochDuration)
	require.Len(t, pub.Fees, DefaultMaxEpochDuration)
	assert.Equal(t, run.proof.Headers[0].Hash(), pub.CheckpointHeaderHashes[0])
	for i := 1; i < DefaultMaxEpochDuration; i++ {
		assert.Equal(t, common.Hash{}, pub.CheckpointHeaderHashes[i], "entry %d", i)
		assert.True(t, pub.Fees[i].IsEmpty(), "fee entry %d", i)
	}
	assert.Equal(t, 1, p.callCount(circuits.KindCheckpointPaddingRollup))
	assert.Equal(t, testConstants(700).FeeRecipient, pub.Fees[0].Recipient)
	assert.Equal(t, uint64(30), pub.Fees[0].Value.Uint64())
}

func TestOrchestrator_DeterministicUnderRandomDelays(t *testing.T) {
	var first *EpochProof
	for seed := uint64(1); seed <= 4; seed++ {
		p := newFakeProver().withDelays(seed, 2*time.Millisecond)
		o, _ := newTestOrchestrator(t, p, testConfig())

		run := runEpoch(t, o, wideEpoch(3))
		require.NoError(t, run.err, "seed %d", seed)
		if first == nil {
			first = run.proof
			continue
		}
		assert.Equal(t, first.PublicInputs, run.proof.PublicInputs, "seed %d", seed)
		assert.Equal(t, first.Proof, run.proof.Proof, "seed %d", seed)
		assert.Equal(t, first.Headers, run.proof.Headers, "seed %d", seed)
	}
}

func TestOrchestrator_FourCheckpointsOfOneTx(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())

	run := runEpoch(t, o, epochPlan{
		number:     4,
		firstBlock: 10,
		messages:   2,
		blocks:     [][]int{{1}, {1}, {1}, {1}},
	})
	require.NoError(t, run.err)

	pub := run.proof.PublicInputs
	assert.Equal(t, 4, pub.NumCheckpoints())
	require.Len(t, run.proof.Headers, 4)
	for i := range 4 {
		assert.Equal(t, run.proof.Headers[i].Hash(), pub.CheckpointHeaderHashes[i])
		assert.Equal(t, uint64(400+i), run.proof.Headers[i].SlotNumber)
	}
	for i := 4; i < len(pub.CheckpointHeaderHashes); i++ {
		assert.Equal(t, common.Hash{}, pub.CheckpointHeaderHashes[i])
	}
}

func TestOrchestrator_EmptyBlockWithoutMessages(t *testing.T) {
	p := newFakeProver()
	o, _ := newTestOrchestrator(t, p, testConfig())

	run := runEpoch(t, o, epochPlan{number: 1, firstBlock: 1, blocks: [][]int{{0}}})
	require.NoError(t, run.err)

	h := run.headers[0]
	assert.Equal(t, common.Hash{}, h.ContentCommitment)
	assert.True(t, h.TotalFees.IsZero())
	assert.Equal(t, uint64(1), run.proof.BlobFieldsTotal)
	assert.Equal(t, 1, p.callCount(circuits.KindBlockRootEmptyTxFirstRollup))
	assert.Zero(t, p.callCount(circuits.KindEmptyTxBaseRollup))
	assert.Equal(t, 2, p.callCount(circuits.KindBaseParity))
}

func TestOrchestrator_FailFast(t *testing.T) {
	tests := []struct {
		kind circuits.JobKind
		plan epochPlan
	}{
		{circuits.KindPrivateTxBaseRollup, wideEpoch(1)},
		{circuits.KindPublicTxBaseRollup, wideEpoch(1)},
		{circuits.KindEmptyTxBaseRollup, wideEpoch(1)},
		{circuits.KindTxMergeRollup, wideEpoch(1)},
		{circuits.KindBlockRootEmptyTxFirstRollup, wideEpoch(1)},
		{circuits.KindBlockRootSingleTxFirstRollup, wideEpoch(1)},
		{circuits.KindBlockRootFirstRollup, wideEpoch(1)},
		{circuits.KindBlockRootRollup, wideEpoch(1)},
		{circuits.KindBlockMergeRollup, wideEpoch(1)},
		{circuits.KindCheckpointRootSingleBlockRollup, wideEpoch(1)},
		{circuits.KindCheckpointRootRollup, wideEpoch(1)},
		{circuits.KindCheckpointMergeRollup, wideEpoch(1)},
		{circuits.KindCheckpointPaddingRollup, singleCheckpointEpoch(1)},
		{circuits.KindRootRollup, wideEpoch(1)},
		{circuits.KindBaseParity, wideEpoch(1)},
		{circuits.KindRootParity, wideEpoch(1)},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			o, _ := newTestOrchestrator(t, newFakeProver(tt.kind), testConfig())

			run := runEpoch(t, o, tt.plan)
			require.Error(t, run.err)
			assert.Nil(t, run.proof)

			var scopeErr *ScopeError
			require.ErrorAs(t, run.err, &scopeErr)
			assert.Equal(t, LevelEpoch, scopeErr.Level)
			var failure *JobFailure
			require.ErrorAs(t, run.err, &failure)
			assert.Equal(t, tt.kind, failure.Kind)
			assert.Equal(t, "Epoch proving failed: forced "+tt.kind.String()+" failure", run.err.Error())

			// The orchestrator is idle again.
			assert.Equal(t, Status{}, o.Status())
		})
	}
}

func TestOrchestrator_BlockFailureSurfacesAtSetBlockCompleted(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(circuits.KindPublicTxBaseRollup), testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 1, 100, 2))
	require.NoError(t, o.AddTxs(ctx, makeTxs(1, 2)))

	_, err := o.SetBlockCompleted(ctx, 1, nil)
	require.Error(t, err)
	assert.Equal(t, "Block proving failed: forced public-tx-base-rollup failure", err.Error())
	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, LevelBlock, scopeErr.Level)

	_, err = o.FinalizeEpoch(ctx)
	assert.EqualError(t, err, "Epoch proving failed: forced public-tx-base-rollup failure")
}

func TestOrchestrator_ConsecutiveEpochs(t *testing.T) {
	cfg := testConfig()
	p := newFakeProver()
	o, _ := newTestOrchestrator(t, p, cfg)

	first := runEpoch(t, o, wideEpoch(1))
	require.NoError(t, first.err)

	// The second epoch continues from the first one's archive.
	plan := singleCheckpointEpoch(2)
	plan.firstBlock = 7
	plan.previousHeader = first.headers[len(first.headers)-1]
	second := runEpoch(t, o, plan)
	require.NoError(t, second.err)
	assert.Equal(t, first.proof.PublicInputs.EndArchiveRoot, second.proof.PublicInputs.PreviousArchiveRoot)
	assert.NotEqual(t, first.proof.PublicInputs.EndArchiveRoot, second.proof.PublicInputs.EndArchiveRoot)

	// A failed epoch leaves nothing behind.
	p.mu.Lock()
	p.fail[circuits.KindRootRollup] = true
	p.mu.Unlock()
	failedPlan := singleCheckpointEpoch(3)
	failedPlan.firstBlock = 8
	failed := runEpoch(t, o, failedPlan)
	require.Error(t, failed.err)

	p.mu.Lock()
	delete(p.fail, circuits.KindRootRollup)
	p.mu.Unlock()
	retry := runEpoch(t, o, failedPlan)
	require.NoError(t, retry.err)
	assert.Equal(t, second.proof.PublicInputs.EndArchiveRoot, retry.proof.PublicInputs.PreviousArchiveRoot)
	assert.Equal(t, failed.headers, retry.headers)
}

func TestOrchestrator_PreviousHeaderMustBeArchiveTip(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())

	first := runEpoch(t, o, singleCheckpointEpoch(1))
	require.NoError(t, first.err)

	forged := *first.headers[0]
	forged.Global.Timestamp++
	plan := singleCheckpointEpoch(2)
	plan.firstBlock = 2
	plan.previousHeader = &forged

	run := runEpoch(t, o, plan)
	require.Error(t, run.feedErr)
	var structural *StructuralError
	require.ErrorAs(t, run.feedErr, &structural)
	assert.Equal(t, HeaderMismatch, structural.Kind)
	require.Error(t, run.err)
}

func TestOrchestrator_ExpectedHeader(t *testing.T) {
	ref, _ := newTestOrchestrator(t, newFakeProver(), testConfig())
	reference := runEpoch(t, ref, singleCheckpointEpoch(1))
	require.NoError(t, reference.err)
	want := reference.headers[0]

	check := func(t *testing.T, expected *circuits.BlockHeader) error {
		o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())
		ctx := t.Context()
		require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{Z: seedHash(1, 1), Gamma: seedHash(1, 2)}))
		require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(100), makeMessages(0, 1), 1, nil))
		require.NoError(t, o.StartNewBlock(ctx, 1, 1_700_000_012, 2))
		require.NoError(t, o.AddTxs(ctx, makeTxs(1, 2)))
		got, err := o.SetBlockCompleted(ctx, 1, expected)
		if err == nil {
			assert.Equal(t, expected.Hash(), got.Hash())
		}
		return err
	}

	t.Run("match", func(t *testing.T) {
		require.NoError(t, check(t, want))
	})
	t.Run("mismatch", func(t *testing.T) {
		bad := *want
		bad.TotalManaUsed++
		err := check(t, &bad)
		var structural *StructuralError
		require.ErrorAs(t, err, &structural)
		assert.Equal(t, HeaderMismatch, structural.Kind)
		assert.Contains(t, err.Error(), "Block proving failed: header mismatch")
	})
}

func TestOrchestrator_BlobCapacityExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBlobFieldsPerCheckpoint = 12
	o, _ := newTestOrchestrator(t, newFakeProver(), cfg)

	run := runEpoch(t, o, epochPlan{number: 1, firstBlock: 1, blocks: [][]int{{1, 1}}})
	var structural *StructuralError
	require.ErrorAs(t, run.feedErr, &structural)
	assert.Equal(t, BlobCapacityExceeded, structural.Kind)
	require.ErrorAs(t, run.err, &structural)
	assert.Len(t, run.headers, 1)
}

func TestOrchestrator_ConcurrentBlockCompletion(t *testing.T) {
	p := newFakeProver().withDelays(9, time.Millisecond)
	o, _ := newTestOrchestrator(t, p, testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), makeMessages(0, 2), 4, nil))
	for n := uint64(1); n <= 4; n++ {
		require.NoError(t, o.StartNewBlock(ctx, n, 100+n, int(n)))
		require.NoError(t, o.AddTxs(ctx, makeTxs(n, int(n))))
	}

	headers := make([]*circuits.BlockHeader, 4)
	var g errgroup.Group
	for n := uint64(4); n >= 1; n-- {
		g.Go(func() error {
			h, err := o.SetBlockCompleted(ctx, n, nil)
			headers[n-1] = h
			return err
		})
	}
	require.NoError(t, g.Wait())

	for i := 1; i < len(headers); i++ {
		assert.Equal(t, headers[i-1].Number()+1, headers[i].Number())
		assert.Equal(t, headers[i-1].LastArchive.NextIndex+1, headers[i].LastArchive.NextIndex)
	}

	proof, err := o.FinalizeEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, proof.PublicInputs.NumCheckpoints())
}

func TestOrchestrator_SequencingErrors(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())
	ctx := t.Context()
	isState := func(t *testing.T, err error) {
		t.Helper()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOrchestratorState)
	}

	_, err := o.FinalizeEpoch(ctx)
	isState(t, err)
	isState(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 1, nil))
	isState(t, o.StartNewBlock(ctx, 1, 1, 0))
	isState(t, o.StartNewEpoch(ctx, 1, 0, circuits.BlobChallenges{}))
	isState(t, o.StartNewEpoch(ctx, 1, DefaultMaxEpochDuration+1, circuits.BlobChallenges{}))
	assert.Equal(t, Status{}, o.Status())

	require.NoError(t, o.StartNewEpoch(ctx, 1, 2, circuits.BlobChallenges{}))
	isState(t, o.StartNewEpoch(ctx, 2, 1, circuits.BlobChallenges{}))
	isState(t, o.StartNewCheckpoint(ctx, 1, testConstants(1), nil, 1, nil))
	isState(t, o.StartNewBlock(ctx, 1, 1, 0))
	isState(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), makeMessages(0, 5), 1, nil))
	isState(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 0, nil))

	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 2, nil))
	isState(t, o.StartNewCheckpoint(ctx, 1, testConstants(2), nil, 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 5, 1, 2))
	isState(t, o.StartNewBlock(ctx, 7, 1, 0))
	isState(t, o.AddTxs(ctx, makeTxs(6, 1)))
	isState(t, o.AddTxs(ctx, makeTxs(5, 3)))
	isState(t, o.AddTxs(ctx, append(makeTxs(5, 1), makeTxs(6, 1)...)))
	_, err = o.SetBlockCompleted(ctx, 5, nil)
	isState(t, err)
	_, err = o.SetBlockCompleted(ctx, 9, nil)
	isState(t, err)
	_, err = o.FinalizeEpoch(ctx)
	isState(t, err)

	other := testConstants(2)
	other.ChainID++
	require.NoError(t, o.StartNewBlock(ctx, 6, 2, 0))
	isState(t, o.StartNewBlock(ctx, 7, 3, 0))
	isState(t, o.StartNewCheckpoint(ctx, 1, other, nil, 1, nil))

	st := o.Status()
	assert.True(t, st.Active)
	assert.Equal(t, 1, st.CheckpointsOpened)
	assert.Equal(t, 2, st.BlocksOpened)
	assert.Equal(t, PhaseOpen.String(), st.Phase)

	// The epoch still completes normally after the rejected calls.
	require.NoError(t, o.AddTxs(ctx, makeTxs(5, 2)))
	_, err = o.SetBlockCompleted(ctx, 5, nil)
	require.NoError(t, err)
	_, err = o.SetBlockCompleted(ctx, 5, nil)
	isState(t, err)
	_, err = o.SetBlockCompleted(ctx, 6, nil)
	require.NoError(t, err)
	require.NoError(t, o.StartNewCheckpoint(ctx, 1, testConstants(2), nil, 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 7, 3, 0))
	// Every block is open but block 7 is not completed.
	_, err = o.FinalizeEpoch(ctx)
	isState(t, err)
	_, err = o.SetBlockCompleted(ctx, 7, nil)
	require.NoError(t, err)
	proof, err := o.FinalizeEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, proof.PublicInputs.NumCheckpoints())
}

func TestOrchestrator_FinalizeRejectsBlockMissingTxs(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 1, 100, 2))
	require.NoError(t, o.AddTxs(ctx, makeTxs(1, 1)))

	short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err := o.FinalizeEpoch(short)
	require.ErrorIs(t, err, ErrOrchestratorState)
	assert.True(t, o.Status().Active)

	// The epoch is untouched and can still be finished.
	require.NoError(t, o.AddTxs(ctx, makeTxs(1, 2)[1:]))
	_, err = o.SetBlockCompleted(ctx, 1, nil)
	require.NoError(t, err)
	_, err = o.FinalizeEpoch(ctx)
	require.NoError(t, err)
}

func TestOrchestrator_AddTxsToFailedBlock(t *testing.T) {
	p := newFakeProver(circuits.KindBaseParity)
	p.gate = make(chan struct{})
	p.gatedKind = circuits.KindBaseParity
	o, _ := newTestOrchestrator(t, p, testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), makeMessages(0, 2), 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 1, 100, 2))
	txs := makeTxs(1, 2)
	require.NoError(t, o.AddTxs(ctx, txs[:1]))

	close(p.gate)
	require.Eventually(t, func() bool {
		return o.Status().Failure != ""
	}, time.Second, 5*time.Millisecond)

	err := o.AddTxs(ctx, txs[1:])
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOrchestratorState))
	var scopeErr *ScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, LevelBlock, scopeErr.Level)
	assert.Contains(t, err.Error(), "forced base-parity failure")

	_, err = o.FinalizeEpoch(ctx)
	require.Error(t, err)
}

func TestOrchestrator_DiscardsResultsOfFailedEpoch(t *testing.T) {
	p := newFakeProver(circuits.KindPrivateTxBaseRollup)
	p.gate = make(chan struct{})
	p.gatedKind = circuits.KindBaseParity
	o, _ := newTestOrchestrator(t, p, testConfig())

	run := runEpoch(t, o, epochPlan{number: 1, firstBlock: 1, messages: 2, blocks: [][]int{{1}}})
	require.Error(t, run.err)

	close(p.gate)
	require.Eventually(t, func() bool {
		return o.GetStats()["jobs_discarded"].(uint64) >= 2
	}, time.Second, 5*time.Millisecond)

	// Stale results never reach the next epoch.
	p.mu.Lock()
	delete(p.fail, circuits.KindPrivateTxBaseRollup)
	p.mu.Unlock()
	next := runEpoch(t, o, singleCheckpointEpoch(2))
	require.NoError(t, next.err)
}

func TestOrchestrator_RejectsMismatchedResult(t *testing.T) {
	sim := prover.NewSimulator(0, 0, zerolog.Nop())
	lying := prover.Func(func(ctx context.Context, job circuits.Job) (circuits.Result, error) {
		res, err := sim.Prove(ctx, job)
		if err == nil && job.Kind == circuits.KindTxMergeRollup {
			res.Kind = circuits.KindPrivateTxBaseRollup
		}
		return res, err
	})
	o, _ := newTestOrchestrator(t, lying, testConfig())

	run := runEpoch(t, o, epochPlan{number: 1, firstBlock: 1, blocks: [][]int{{3}}})
	require.Error(t, run.err)
	var failure *JobFailure
	require.ErrorAs(t, run.err, &failure)
	assert.Equal(t, circuits.KindTxMergeRollup, failure.Kind)
	assert.Contains(t, failure.Message, "prover returned")
}

func TestOrchestrator_StopWakesWaiters(t *testing.T) {
	p := newFakeProver()
	p.gate = make(chan struct{})
	p.gatedKind = circuits.KindBlockRootEmptyTxFirstRollup
	o, _ := newTestOrchestrator(t, p, testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 1, nil))
	require.NoError(t, o.StartNewBlock(ctx, 1, 1, 0))

	errc := make(chan error, 1)
	go func() {
		_, err := o.SetBlockCompleted(ctx, 1, nil)
		errc <- err
	}()
	require.Eventually(t, func() bool {
		return p.callCount(circuits.KindBlockRootEmptyTxFirstRollup) == 1
	}, time.Second, time.Millisecond)

	o.Stop()
	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("SetBlockCompleted did not return after Stop")
	}
}

func TestOrchestrator_ContextCancelLeavesBlockOpen(t *testing.T) {
	p := newFakeProver()
	o, _ := newTestOrchestrator(t, p, testConfig())
	ctx := t.Context()

	require.NoError(t, o.StartNewEpoch(ctx, 1, 1, circuits.BlobChallenges{}))
	require.NoError(t, o.StartNewCheckpoint(ctx, 0, testConstants(1), nil, 2, nil))
	require.NoError(t, o.StartNewBlock(ctx, 1, 1, 0))
	require.NoError(t, o.StartNewBlock(ctx, 2, 2, 0))

	// Block 2 waits for block 1's header, which never comes.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := o.SetBlockCompleted(short, 2, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = o.SetBlockCompleted(ctx, 1, nil)
	require.NoError(t, err)
	_, err = o.SetBlockCompleted(ctx, 2, nil)
	require.NoError(t, err)
	_, err = o.FinalizeEpoch(ctx)
	require.NoError(t, err)
}

func TestOrchestrator_Stats(t *testing.T) {
	o, _ := newTestOrchestrator(t, newFakeProver(), testConfig())
	run := runEpoch(t, o, singleCheckpointEpoch(1))
	require.NoError(t, run.err)

	stats := o.GetStats()
	assert.Equal(t, uint64(1), stats["epochs_proven"])
	assert.Equal(t, uint64(0), stats["epochs_failed"])
	assert.Equal(t, false, stats["active"])
	assert.Equal(t, stats["jobs_requested"], stats["jobs_ready"])
	assert.False(t, errors.Is(run.err, ErrOrchestratorState))
}
