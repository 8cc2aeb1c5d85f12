package orchestrator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// checkpointState is the proving scope of one checkpoint: a run of
// consecutive blocks sharing a slot and one set of blobs.
type checkpointState struct {
	scope

	index          int
	constants      circuits.CheckpointConstants
	messages       []common.Hash // padded to MessagesPerCheckpoint
	inHash         common.Hash
	blockCount     int
	previousHeader *circuits.BlockHeader

	blocks    []*blockState
	blockTree *mergeTree
	// root is the checkpoint's leaf in the epoch's checkpoint tree.
	root *slot

	startArchive  circuits.AppendOnlySnapshot
	sponge        common.Hash
	numBlobFields uint64
	fees          *uint256.Int
	manaUsed      uint64
	blockHeaders  []*circuits.BlockHeader
	header        *circuits.CheckpointHeader
}

func newCheckpointState(e *epochState, index int, constants circuits.CheckpointConstants, messages []common.Hash,
	blockCount int, previousHeader *circuits.BlockHeader,
) *checkpointState {
	id := fmt.Sprintf("%s/checkpoint-%d", e.id, index)
	return &checkpointState{
		scope:          newScope(id, LevelCheckpoint),
		index:          index,
		constants:      constants,
		messages:       messages,
		inHash:         circuits.MerkleRoot(messages),
		blockCount:     blockCount,
		previousHeader: previousHeader,
		blockTree:      newMergeTree(id+"/blocks", blockCount),
		root:           e.cpTree.leaf(index),
		fees:           new(uint256.Int),
	}
}

func (cp *checkpointState) full() bool {
	return len(cp.blocks) == cp.blockCount
}

func (cp *checkpointState) rootKind() circuits.JobKind {
	if cp.blockCount == 1 {
		return circuits.KindCheckpointRootSingleBlockRollup
	}
	return circuits.KindCheckpointRootRollup
}

// buildHeader closes the checkpoint once every block header is built.
func (cp *checkpointState) buildHeader() {
	hashes := make([]common.Hash, len(cp.blockHeaders))
	outs := make([]common.Hash, len(cp.blockHeaders))
	for i, h := range cp.blockHeaders {
		hashes[i] = h.Hash()
		outs[i] = h.OutHash
	}
	last := cp.blocks[len(cp.blocks)-1]
	cp.header = &circuits.CheckpointHeader{
		LastArchiveRoot:  cp.startArchive.Root,
		BlockHeadersHash: circuits.WonkyRoot(hashes),
		InHash:           cp.inHash,
		OutHash:          circuits.WonkyRoot(outs),
		BlobsHash:        cp.sponge,
		SlotNumber:       cp.constants.SlotNumber,
		Timestamp:        last.timestamp,
		Coinbase:         cp.constants.Coinbase,
		FeeRecipient:     cp.constants.FeeRecipient,
		GasFees:          cp.constants.GasFees,
		TotalManaUsed:    cp.manaUsed,
		TotalFees:        new(uint256.Int).Set(cp.fees),
		NumBlobFields:    cp.numBlobFields,
	}
}

func (o *Orchestrator) advanceCheckpoint(e *epochState, cp *checkpointState) {
	if e.failed() || cp.settled() {
		return
	}
	for _, step := range cp.blockTree.readyMerges() {
		in := &circuits.BlockMergeInputs{
			Left:  *step.left.result.Outputs.Block,
			Right: *step.right.result.Outputs.Block,
		}
		o.dispatch(e, step.parent, circuits.KindBlockMergeRollup, circuits.Inputs{BlockMerge: in},
			func(circuits.Result) error {
				o.advanceCheckpoint(e, cp)
				return nil
			},
			func(f *JobFailure) { o.failCheckpoint(e, cp, f) })
	}
	o.maybeScheduleCheckpointRoot(e, cp)
}

func (o *Orchestrator) maybeScheduleCheckpointRoot(e *epochState, cp *checkpointState) {
	if e.failed() || cp.settled() || cp.header == nil || cp.root.status != StatusEmpty || !cp.blockTree.topReady() {
		return
	}
	in := &circuits.CheckpointRootInputs{Header: *cp.header}
	for _, r := range cp.blockTree.topResults() {
		in.Blocks = append(in.Blocks, *r.Outputs.Block)
	}
	o.dispatch(e, cp.root, cp.rootKind(), circuits.Inputs{CheckpointRoot: in},
		func(res circuits.Result) error { return o.checkpointRootReady(e, cp, res) },
		func(f *JobFailure) { o.failCheckpoint(e, cp, f) })
}

func (o *Orchestrator) checkpointRootReady(e *epochState, cp *checkpointState, res circuits.Result) error {
	out := res.Outputs.Checkpoint
	want := cp.header.Hash()
	if len(out.CheckpointHeaderHashes) != 1 || out.CheckpointHeaderHashes[0] != want {
		return structuralError(HeaderMismatch, "checkpoint %d root does not attest to header %s",
			cp.index, want.TerminalString())
	}
	if out.NumBlobFields != cp.numBlobFields {
		return structuralError(BlobLengthMismatch, "checkpoint %d: proof carries %d blob fields, blocks produced %d",
			cp.index, out.NumBlobFields, cp.numBlobFields)
	}
	cp.succeed()
	o.log.Info().
		Int("checkpoint", cp.index).
		Int("blocks", cp.blockCount).
		Uint64("blob_fields", cp.numBlobFields).
		Str("header", want.TerminalString()).
		Msg("Checkpoint proven")
	o.advanceEpoch(e)
	return nil
}
