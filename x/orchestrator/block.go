package orchestrator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/compose-network/epoch-prover/x/circuits"
	"github.com/compose-network/epoch-prover/x/worldstate"
)

// blockState is the proving scope of one L2 block.
type blockState struct {
	scope

	cp        *checkpointState
	index     int
	number    uint64
	timestamp uint64
	txCount   int
	txs       []circuits.Tx

	// txTree is nil for an empty first block, whose root takes no tx nodes.
	txTree *mergeTree
	// root is the block's leaf in the checkpoint's block tree.
	root *slot

	completed  bool
	expected   *circuits.BlockHeader
	header     *circuits.BlockHeader
	headerDone chan struct{}

	numBlobFields uint64
	prevArchive   circuits.AppendOnlySnapshot
	newArchive    circuits.AppendOnlySnapshot
	startSponge   common.Hash

	prev, next *blockState
}

func newBlockState(cp *checkpointState, index int, number, timestamp uint64, txCount int) *blockState {
	b := &blockState{
		scope:      newScope(fmt.Sprintf("%s/block-%d", cp.id, number), LevelBlock),
		cp:         cp,
		index:      index,
		number:     number,
		timestamp:  timestamp,
		txCount:    txCount,
		root:       cp.blockTree.leaf(index),
		headerDone: make(chan struct{}),
	}
	if n := b.leafCount(); n > 0 {
		b.txTree = newMergeTree(b.id+"/txs", n)
	}
	return b
}

func (b *blockState) isFirst() bool {
	return b.index == 0
}

func (b *blockState) isLast() bool {
	return b.index == b.cp.blockCount-1
}

// leafCount is the width of the tx tree. An empty block that is not first
// in its checkpoint still proves one padding leaf.
func (b *blockState) leafCount() int {
	switch {
	case b.txCount > 0:
		return b.txCount
	case b.isFirst():
		return 0
	default:
		return 1
	}
}

func (b *blockState) rootKind() circuits.JobKind {
	if !b.isFirst() {
		return circuits.KindBlockRootRollup
	}
	switch b.txCount {
	case 0:
		return circuits.KindBlockRootEmptyTxFirstRollup
	case 1:
		return circuits.KindBlockRootSingleTxFirstRollup
	default:
		return circuits.KindBlockRootFirstRollup
	}
}

func (b *blockState) txTreeReady() bool {
	return b.txTree == nil || b.txTree.topReady()
}

func (b *blockState) blockRootInputs() *circuits.BlockRootInputs {
	in := &circuits.BlockRootInputs{
		Header:          *b.header,
		PreviousArchive: b.prevArchive,
		NewArchive:      b.newArchive,
		StartSponge:     b.startSponge,
	}
	if b.txTree != nil {
		for _, r := range b.txTree.topResults() {
			in.Txs = append(in.Txs, *r.Outputs.Tx)
		}
	}
	return in
}

func publicDataLeaf(w circuits.PublicDataWrite) common.Hash {
	return crypto.Keccak256Hash(w.Slot.Bytes(), w.Value.Bytes())
}

func stateReference(fork worldstate.Fork) (circuits.StateReference, error) {
	var (
		ref circuits.StateReference
		err error
	)
	if ref.L1ToL2MessageTree, err = fork.Snapshot(worldstate.L1ToL2MessageTree); err != nil {
		return ref, err
	}
	if ref.NoteHashTree, err = fork.Snapshot(worldstate.NoteHashTree); err != nil {
		return ref, err
	}
	if ref.NullifierTree, err = fork.Snapshot(worldstate.NullifierTree); err != nil {
		return ref, err
	}
	ref.PublicDataTree, err = fork.Snapshot(worldstate.PublicDataTree)
	return ref, err
}

// buildBlockHeader applies the block's side effects to the epoch fork and
// derives its header. It must run in block order: the sponge and the
// archive continue from the previous block's header.
func (o *Orchestrator) buildBlockHeader(e *epochState, b *blockState) error {
	cp := b.cp
	fork := e.fork
	if b.isFirst() {
		if err := o.checkPreviousHeader(e, cp); err != nil {
			return err
		}
	}

	fork.Checkpoint()
	committed := false
	defer func() {
		if !committed {
			if err := fork.Revert(); err != nil {
				o.log.Error().Err(err).Str("block", b.id).Msg("Failed to revert world state")
			}
		}
	}()

	if b.isFirst() {
		archive, err := fork.Snapshot(worldstate.ArchiveTree)
		if err != nil {
			return fmt.Errorf("snapshot archive: %w", err)
		}
		cp.startArchive = archive
		if err := fork.AppendLeaves(worldstate.L1ToL2MessageTree, cp.messages...); err != nil {
			return fmt.Errorf("insert l1 to l2 messages: %w", err)
		}
	}

	var (
		effects  = make([]common.Hash, len(b.txs))
		outs     = make([]common.Hash, len(b.txs))
		fees     = new(uint256.Int)
		mana     uint64
		txFields uint64
	)
	for i := range b.txs {
		tx := &b.txs[i]
		if err := fork.AppendLeaves(worldstate.NoteHashTree, tx.Effects.NoteHashes...); err != nil {
			return fmt.Errorf("insert note hashes of tx %d: %w", i, err)
		}
		if err := fork.AppendLeaves(worldstate.NullifierTree, tx.Effects.Nullifiers...); err != nil {
			return fmt.Errorf("insert nullifiers of tx %d: %w", i, err)
		}
		writes := make([]common.Hash, len(tx.Effects.PublicDataWrites))
		for j, w := range tx.Effects.PublicDataWrites {
			writes[j] = publicDataLeaf(w)
		}
		if err := fork.AppendLeaves(worldstate.PublicDataTree, writes...); err != nil {
			return fmt.Errorf("insert public data of tx %d: %w", i, err)
		}
		effects[i] = tx.EffectsHash()
		outs[i] = circuits.MerkleRoot(tx.Effects.L2ToL1Msgs)
		fees.Add(fees, tx.TxFee())
		mana += tx.GasUsed
		txFields += uint64(len(tx.BlobFields()))
	}

	numFields := txFields + 1
	if total := cp.numBlobFields + numFields; total > o.cfg.MaxBlobFieldsPerCheckpoint {
		return structuralError(BlobCapacityExceeded, "block %d brings checkpoint %d to %d blob fields, capacity is %d",
			b.number, cp.index, total, o.cfg.MaxBlobFieldsPerCheckpoint)
	}

	state, err := stateReference(fork)
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}
	lastArchive, err := fork.Snapshot(worldstate.ArchiveTree)
	if err != nil {
		return fmt.Errorf("snapshot archive: %w", err)
	}
	content := circuits.WonkyRoot(effects)
	header := &circuits.BlockHeader{
		LastArchive:       lastArchive,
		State:             state,
		Global:            cp.constants.GlobalsFor(b.number, b.timestamp),
		SpongeBlobHash:    circuits.AbsorbSponge(cp.sponge, content, numFields),
		ContentCommitment: content,
		OutHash:           circuits.WonkyRoot(outs),
		TotalFees:         fees,
		TotalManaUsed:     mana,
	}
	hash := header.Hash()
	if b.expected != nil {
		if want := b.expected.Hash(); want != hash {
			return structuralError(HeaderMismatch, "block %d: expected header %s, built %s",
				b.number, want.TerminalString(), hash.TerminalString())
		}
	}

	if err := fork.AppendLeaves(worldstate.ArchiveTree, hash); err != nil {
		return fmt.Errorf("append block %d to archive: %w", b.number, err)
	}
	newArchive, err := fork.Snapshot(worldstate.ArchiveTree)
	if err != nil {
		return fmt.Errorf("snapshot archive: %w", err)
	}
	if err := fork.Commit(); err != nil {
		return fmt.Errorf("commit block %d: %w", b.number, err)
	}
	committed = true

	b.header = header
	b.prevArchive = lastArchive
	b.newArchive = newArchive
	b.startSponge = cp.sponge
	b.numBlobFields = numFields
	close(b.headerDone)

	cp.sponge = header.SpongeBlobHash
	cp.numBlobFields += numFields
	cp.fees.Add(cp.fees, fees)
	cp.manaUsed += mana
	cp.blockHeaders = append(cp.blockHeaders, header)
	e.lastHeader = header

	o.log.Debug().
		Uint64("block", b.number).
		Int("txs", len(b.txs)).
		Uint64("blob_fields", numFields).
		Str("hash", hash.TerminalString()).
		Msg("Built block header")
	return nil
}

// checkPreviousHeader verifies that the header a checkpoint claims to
// follow is the tip of the epoch's archive.
func (o *Orchestrator) checkPreviousHeader(e *epochState, cp *checkpointState) error {
	if cp.previousHeader == nil {
		return nil
	}
	claimed := cp.previousHeader.Hash()
	if e.lastHeader != nil {
		if tip := e.lastHeader.Hash(); tip != claimed {
			return structuralError(HeaderMismatch, "checkpoint %d follows header %s, last proven header is %s",
				cp.index, claimed.TerminalString(), tip.TerminalString())
		}
		return nil
	}
	archive, err := e.fork.Snapshot(worldstate.ArchiveTree)
	if err != nil {
		return fmt.Errorf("snapshot archive: %w", err)
	}
	if archive.NextIndex == 0 {
		return nil
	}
	tip, err := e.fork.Leaf(worldstate.ArchiveTree, archive.NextIndex-1)
	if err != nil {
		return fmt.Errorf("read archive tip: %w", err)
	}
	if tip != claimed {
		return structuralError(HeaderMismatch, "checkpoint %d follows header %s, archive tip is %s",
			cp.index, claimed.TerminalString(), tip.TerminalString())
	}
	return nil
}

// dispatchLeaf requests the base rollup for tree position i of the block.
func (o *Orchestrator) dispatchLeaf(e *epochState, b *blockState, i int, kind circuits.JobKind, tx circuits.Tx) {
	o.dispatch(e, b.txTree.leaf(i), kind, circuits.Inputs{BaseTx: &circuits.BaseTxInputs{Tx: tx}},
		func(circuits.Result) error {
			o.advanceBlock(e, b)
			return nil
		},
		func(f *JobFailure) { o.failBlock(e, b, f) })
}

func (o *Orchestrator) advanceBlock(e *epochState, b *blockState) {
	if e.failed() || b.settled() {
		return
	}
	if b.txTree != nil {
		for _, step := range b.txTree.readyMerges() {
			in := &circuits.TxMergeInputs{
				Left:  *step.left.result.Outputs.Tx,
				Right: *step.right.result.Outputs.Tx,
			}
			o.dispatch(e, step.parent, circuits.KindTxMergeRollup, circuits.Inputs{TxMerge: in},
				func(circuits.Result) error {
					o.advanceBlock(e, b)
					return nil
				},
				func(f *JobFailure) { o.failBlock(e, b, f) })
		}
	}
	o.maybeScheduleBlockRoot(e, b)
}

func (o *Orchestrator) maybeScheduleBlockRoot(e *epochState, b *blockState) {
	if e.failed() || b.settled() || b.header == nil || b.root.status != StatusEmpty || !b.txTreeReady() {
		return
	}
	o.dispatch(e, b.root, b.rootKind(), circuits.Inputs{BlockRoot: b.blockRootInputs()},
		func(res circuits.Result) error { return o.blockRootReady(e, b, res) },
		func(f *JobFailure) { o.failBlock(e, b, f) })
}

func (o *Orchestrator) blockRootReady(e *epochState, b *blockState, res circuits.Result) error {
	out := res.Outputs.Block
	if want := b.header.Hash(); out.BlockHeadersHash != want {
		return structuralError(HeaderMismatch, "block %d root attests to header %s, built %s",
			b.number, out.BlockHeadersHash.TerminalString(), want.TerminalString())
	}
	if out.NumBlobFields != b.numBlobFields {
		return structuralError(BlobLengthMismatch, "block %d: proof carries %d blob fields, txs produced %d",
			b.number, out.NumBlobFields, b.numBlobFields)
	}
	b.succeed()
	o.log.Debug().Uint64("block", b.number).Msg("Block proven")
	o.advanceCheckpoint(e, b.cp)
	return nil
}

// onHeaderBuilt schedules everything that was waiting on b's header.
func (o *Orchestrator) onHeaderBuilt(e *epochState, b *blockState) {
	o.maybeScheduleBlockRoot(e, b)
	if b.isLast() {
		b.cp.buildHeader()
		o.log.Debug().
			Int("checkpoint", b.cp.index).
			Str("hash", b.cp.header.Hash().TerminalString()).
			Msg("Built checkpoint header")
		o.maybeScheduleCheckpointRoot(e, b.cp)
	}
}
