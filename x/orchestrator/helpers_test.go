package orchestrator

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/epoch-prover/metrics"
	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/prover"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

// fakeProver proves through the simulator, failing the kinds in fail and
// sleeping a random delay below maxDelay before each job.
type fakeProver struct {
	sim *prover.Simulator

	mu       sync.Mutex
	fail     map[circuits.JobKind]bool
	rnd      *rand.Rand
	maxDelay time.Duration
	// gate, when set, holds jobs of gatedKind until it is closed.
	gate      chan struct{}
	gatedKind circuits.JobKind
	calls     map[circuits.JobKind]int
}

func newFakeProver(fail ...circuits.JobKind) *fakeProver {
	f := &fakeProver{
		sim:   prover.NewSimulator(0, 0, zerolog.Nop()),
		fail:  make(map[circuits.JobKind]bool),
		rnd:   rand.New(rand.NewPCG(1, 2)),
		calls: make(map[circuits.JobKind]int),
	}
	for _, k := range fail {
		f.fail[k] = true
	}
	return f
}

func (f *fakeProver) withDelays(seed uint64, maxDelay time.Duration) *fakeProver {
	f.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	f.maxDelay = maxDelay
	return f
}

func (f *fakeProver) Prove(ctx context.Context, job circuits.Job) (circuits.Result, error) {
	f.mu.Lock()
	f.calls[job.Kind]++
	fail := f.fail[job.Kind]
	var delay time.Duration
	if f.maxDelay > 0 {
		delay = time.Duration(f.rnd.Int64N(int64(f.maxDelay)))
	}
	var gate chan struct{}
	if f.gate != nil && job.Kind == f.gatedKind {
		gate = f.gate
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return circuits.Result{}, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return circuits.Result{}, ctx.Err()
		}
	}
	if fail {
		return circuits.Result{}, fmt.Errorf("forced %s failure", job.Kind)
	}
	return f.sim.Prove(ctx, job)
}

func (f *fakeProver) callCount(kind circuits.JobKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MessagesPerCheckpoint = 4
	cfg.MessagesPerBaseParity = 2
	return cfg
}

func newTestOrchestrator(t *testing.T, p prover.Prover, cfg Config) (*Orchestrator, *worldstate.LevelDBStore) {
	t.Helper()
	store, err := worldstate.Open(worldstate.Config{TreeHeight: 20}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newTestOrchestratorWithStore(t, p, cfg, store), store
}

func newTestOrchestratorWithStore(t *testing.T, p prover.Prover, cfg Config, store worldstate.Store) *Orchestrator {
	t.Helper()
	reg := metrics.NewComponentRegistryWith(prometheus.NewRegistry(), "prover", "orchestrator")
	o, err := NewWithMetrics(cfg, p, store, reg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(o.Stop)
	return o
}

func testConstants(slot uint64) circuits.CheckpointConstants {
	return circuits.CheckpointConstants{
		ChainID:      1337,
		Version:      1,
		VkTreeRoot:   common.HexToHash("0x0a11"),
		ProverID:     common.HexToAddress("0x00000000000000000000000000000000000000ff"),
		SlotNumber:   slot,
		Coinbase:     common.HexToAddress("0x00000000000000000000000000000000000000c0"),
		FeeRecipient: common.HexToAddress(fmt.Sprintf("0x%040x", 0xfe00+slot)),
		GasFees:      circuits.GasFees{FeePerDaGas: 1, FeePerL2Gas: 2},
	}
}

func seedHash(parts ...uint64) common.Hash {
	buf := make([]byte, 8*len(parts))
	for i, p := range parts {
		binary.BigEndian.PutUint64(buf[8*i:], p)
	}
	return crypto.Keccak256Hash(buf)
}

// makeTxs builds n txs for a block. Odd positions are public.
func makeTxs(block uint64, n int) []circuits.Tx {
	txs := make([]circuits.Tx, n)
	for i := range txs {
		k := uint64(i)
		tx := circuits.Tx{
			Hash:        seedHash(block, k),
			BlockNumber: block,
			Public:      i%2 == 1,
			Effects: circuits.TxEffects{
				NoteHashes: []common.Hash{seedHash(block, k, 1), seedHash(block, k, 2)},
				Nullifiers: []common.Hash{seedHash(block, k, 3)},
				L2ToL1Msgs: []common.Hash{seedHash(block, k, 4)},
			},
			Fee:     uint256.NewInt(10 * (k + 1)),
			GasUsed: 100 + k,
		}
		if tx.Public {
			tx.Effects.PublicDataWrites = []circuits.PublicDataWrite{{Slot: seedHash(block, k, 5), Value: seedHash(block, k, 6)}}
		}
		txs[i] = tx
	}
	return txs
}

func makeMessages(checkpoint, n int) []common.Hash {
	msgs := make([]common.Hash, n)
	for i := range msgs {
		msgs[i] = seedHash(0xbeef, uint64(checkpoint), uint64(i))
	}
	return msgs
}

// epochPlan lists the tx count of every block, grouped by checkpoint.
type epochPlan struct {
	number     uint64
	firstBlock uint64
	messages   int
	blocks     [][]int
	// previousHeader is passed to the first checkpoint.
	previousHeader *circuits.BlockHeader
}

type epochRun struct {
	proof   *EpochProof
	err     error
	headers []*circuits.BlockHeader
	// feedErr is the first error returned while feeding the epoch.
	feedErr error
}

// runEpoch feeds plan to o block by block and finalizes the epoch. Feeding
// stops at the first error; the epoch is finalized either way.
func runEpoch(t *testing.T, o *Orchestrator, plan epochPlan) epochRun {
	t.Helper()
	ctx := t.Context()
	var run epochRun

	require.NoError(t, o.StartNewEpoch(ctx, plan.number, len(plan.blocks), circuits.BlobChallenges{
		Z:     seedHash(plan.number, 1),
		Gamma: seedHash(plan.number, 2),
	}))

	number := plan.firstBlock
feed:
	for i, blocks := range plan.blocks {
		var prev *circuits.BlockHeader
		if i == 0 {
			prev = plan.previousHeader
		}
		slot := plan.number*100 + uint64(i)
		if err := o.StartNewCheckpoint(ctx, i, testConstants(slot), makeMessages(i, plan.messages), len(blocks), prev); err != nil {
			run.feedErr = err
			break
		}
		for j, n := range blocks {
			if err := o.StartNewBlock(ctx, number, 1_700_000_000+number*12+uint64(j), n); err != nil {
				run.feedErr = err
				break feed
			}
			if err := o.AddTxs(ctx, makeTxs(number, n)); err != nil {
				run.feedErr = err
				break feed
			}
			h, err := o.SetBlockCompleted(ctx, number, nil)
			if err != nil {
				run.feedErr = err
				break feed
			}
			run.headers = append(run.headers, h)
			number++
		}
	}

	run.proof, run.err = o.FinalizeEpoch(ctx)
	return run
}

// wideEpoch exercises every job kind except checkpoint padding.
func wideEpoch(number uint64) epochPlan {
	return epochPlan{
		number:     number,
		firstBlock: 1,
		messages:   3,
		blocks: [][]int{
			{3, 0, 2},
			{0},
			{1, 1},
		},
	}
}

func singleCheckpointEpoch(number uint64) epochPlan {
	return epochPlan{number: number, firstBlock: 1, messages: 1, blocks: [][]int{{2}}}
}
