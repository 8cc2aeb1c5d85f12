package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/orchestrator"
)

// Scenario is a sequence of epochs to prove, read from YAML. Each epoch
// either lists its checkpoints or asks for a generated shape.
type Scenario struct {
	Epochs []ScenarioEpoch `yaml:"epochs"`
}

type ScenarioEpoch struct {
	Number      uint64                  `yaml:"number"`
	Challenges  circuits.BlobChallenges `yaml:"challenges"`
	Checkpoints []ScenarioCheckpoint    `yaml:"checkpoints"`
	Generate    *GenerateSpec           `yaml:"generate"`
}

type ScenarioCheckpoint struct {
	Constants circuits.CheckpointConstants `yaml:"constants"`
	Messages  []common.Hash                `yaml:"messages"`
	Blocks    []ScenarioBlock              `yaml:"blocks"`
}

type ScenarioBlock struct {
	Number    uint64       `yaml:"number"`
	Timestamp uint64       `yaml:"timestamp"`
	Txs       []ScenarioTx `yaml:"txs"`
}

// ScenarioTx adds a plain integer fee to circuits.Tx.
type ScenarioTx struct {
	circuits.Tx `yaml:",inline"`
	Fee         uint64 `yaml:"fee"`
}

// GenerateSpec describes a synthetic epoch.
type GenerateSpec struct {
	Checkpoints         int    `yaml:"checkpoints"`
	BlocksPerCheckpoint int    `yaml:"blocks_per_checkpoint"`
	TxsPerBlock         int    `yaml:"txs_per_block"`
	Messages            int    `yaml:"messages"`
	FirstBlock          uint64 `yaml:"first_block"`
	ChainID             uint64 `yaml:"chain_id"`
}

func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(raw)
}

func ParseScenario(raw []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(s.Epochs) == 0 {
		return nil, errors.New("scenario has no epochs")
	}
	// Generated epochs without a first block continue the block numbering
	// of the epoch before them.
	next := uint64(1)
	for i := range s.Epochs {
		e := &s.Epochs[i]
		if len(e.Checkpoints) == 0 {
			if e.Generate == nil {
				return nil, fmt.Errorf("epoch %d has neither checkpoints nor generate", e.Number)
			}
			if e.Generate.FirstBlock == 0 {
				e.Generate.FirstBlock = next
			}
			e.Checkpoints = e.Generate.build(e.Number)
		}
		if len(e.Checkpoints) == 0 {
			return nil, fmt.Errorf("epoch %d has no checkpoints", e.Number)
		}
		for j, cp := range e.Checkpoints {
			if len(cp.Blocks) == 0 {
				return nil, fmt.Errorf("epoch %d checkpoint %d has no blocks", e.Number, j)
			}
		}
		last := e.Checkpoints[len(e.Checkpoints)-1].Blocks
		next = last[len(last)-1].Number + 1
	}
	return &s, nil
}

func synthHash(parts ...uint64) common.Hash {
	buf := make([]byte, 8*len(parts))
	for i, p := range parts {
		binary.BigEndian.PutUint64(buf[8*i:], p)
	}
	return crypto.Keccak256Hash(buf)
}

func (g *GenerateSpec) build(epoch uint64) []ScenarioCheckpoint {
	chainID := g.ChainID
	if chainID == 0 {
		chainID = 1
	}
	number := g.FirstBlock
	if number == 0 {
		number = 1
	}
	cps := make([]ScenarioCheckpoint, g.Checkpoints)
	for i := range cps {
		slot := epoch*uint64(max(g.Checkpoints, 1)) + uint64(i)
		cp := ScenarioCheckpoint{
			Constants: circuits.CheckpointConstants{
				ChainID:      chainID,
				Version:      1,
				VkTreeRoot:   synthHash(chainID, 0x766b),
				SlotNumber:   slot,
				FeeRecipient: common.BytesToAddress(synthHash(slot).Bytes()),
			},
		}
		for m := 0; m < g.Messages; m++ {
			cp.Messages = append(cp.Messages, synthHash(epoch, uint64(i), uint64(m), 0x6d))
		}
		for b := 0; b < g.BlocksPerCheckpoint; b++ {
			blk := ScenarioBlock{Number: number, Timestamp: 1_700_000_000 + 12*number}
			for k := 0; k < g.TxsPerBlock; k++ {
				n := uint64(k)
				blk.Txs = append(blk.Txs, ScenarioTx{
					Tx: circuits.Tx{
						Hash:        synthHash(number, n),
						BlockNumber: number,
						Public:      k%2 == 1,
						Effects: circuits.TxEffects{
							NoteHashes: []common.Hash{synthHash(number, n, 1)},
							Nullifiers: []common.Hash{synthHash(number, n, 2)},
						},
						GasUsed: 21_000,
					},
					Fee: 1_000 + n,
				})
			}
			cp.Blocks = append(cp.Blocks, blk)
			number++
		}
		cps[i] = cp
	}
	return cps
}

func (tx ScenarioTx) circuitTx(block uint64) circuits.Tx {
	out := tx.Tx
	out.BlockNumber = block
	out.Fee = uint256.NewInt(tx.Fee)
	return out
}

// proveEpoch feeds one scenario epoch to the orchestrator and waits for
// its proof. prev is the last block header of the previous epoch, nil for
// the first one. Blocks of a checkpoint are completed concurrently. The
// last block header built is returned alongside the proof.
func proveEpoch(ctx context.Context, o *orchestrator.Orchestrator, e ScenarioEpoch, prev *circuits.BlockHeader,
	log zerolog.Logger,
) (*orchestrator.EpochProof, *circuits.BlockHeader, error) {
	if err := o.StartNewEpoch(ctx, e.Number, len(e.Checkpoints), e.Challenges); err != nil {
		return nil, prev, err
	}

	feedErr := func() error {
		for i, cp := range e.Checkpoints {
			if err := o.StartNewCheckpoint(ctx, i, cp.Constants, cp.Messages, len(cp.Blocks), prev); err != nil {
				return err
			}
			for _, b := range cp.Blocks {
				if err := o.StartNewBlock(ctx, b.Number, b.Timestamp, len(b.Txs)); err != nil {
					return err
				}
				txs := make([]circuits.Tx, len(b.Txs))
				for k, tx := range b.Txs {
					txs[k] = tx.circuitTx(b.Number)
				}
				if err := o.AddTxs(ctx, txs); err != nil {
					return err
				}
			}
			headers := make([]*circuits.BlockHeader, len(cp.Blocks))
			g, gctx := errgroup.WithContext(ctx)
			for k, b := range cp.Blocks {
				g.Go(func() error {
					h, err := o.SetBlockCompleted(gctx, b.Number, nil)
					if err != nil {
						return err
					}
					log.Debug().Uint64("block", b.Number).Str("hash", h.Hash().TerminalString()).Msg("Block proven")
					headers[k] = h
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			prev = headers[len(headers)-1]
		}
		return nil
	}()
	if feedErr != nil {
		// A rejected call leaves the epoch as it was; there is nothing to finalize.
		if errors.Is(feedErr, orchestrator.ErrOrchestratorState) {
			return nil, prev, feedErr
		}
		log.Warn().Err(feedErr).Uint64("epoch", e.Number).Msg("Stopped feeding epoch")
	}

	proof, err := o.FinalizeEpoch(ctx)
	if err != nil {
		return nil, prev, err
	}
	return proof, prev, nil
}
