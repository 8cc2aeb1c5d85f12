package circuits

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInvalidInputs is returned by Evaluate when the inputs violate a circuit
// constraint.
var ErrInvalidInputs = errors.New("invalid circuit inputs")

func invalid(kind JobKind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInputs, kind, fmt.Sprintf(format, args...))
}

// Evaluate computes the public outputs a circuit produces for the job, and
// checks the constraints the circuit enforces on its inputs. It is the
// reference used by simulated provers.
func Evaluate(job Job) (Outputs, error) {
	if err := job.Validate(); err != nil {
		return Outputs{}, err
	}
	in := job.Inputs
	switch job.Kind {
	case KindPrivateTxBaseRollup, KindPublicTxBaseRollup, KindEmptyTxBaseRollup:
		out, err := evalBaseTx(job.Kind, in.BaseTx)
		return Outputs{Tx: out}, err
	case KindTxMergeRollup:
		return Outputs{Tx: mergeTxTrees(in.TxMerge.Left, in.TxMerge.Right)}, nil
	case KindBlockRootEmptyTxFirstRollup, KindBlockRootSingleTxFirstRollup, KindBlockRootFirstRollup, KindBlockRootRollup:
		out, err := evalBlockRoot(job.Kind, in.BlockRoot)
		return Outputs{Block: out}, err
	case KindBlockMergeRollup:
		out, err := mergeBlocks(job.Kind, in.BlockMerge.Left, in.BlockMerge.Right)
		return Outputs{Block: out}, err
	case KindCheckpointRootSingleBlockRollup, KindCheckpointRootRollup:
		out, err := evalCheckpointRoot(job.Kind, in.CheckpointRoot)
		return Outputs{Checkpoint: out}, err
	case KindCheckpointMergeRollup:
		out, err := mergeCheckpoints(job.Kind, in.CheckpointMerge.Left, in.CheckpointMerge.Right)
		return Outputs{Checkpoint: out}, err
	case KindCheckpointPaddingRollup:
		a := in.CheckpointPadding.Archive
		return Outputs{Checkpoint: &CheckpointRollupOutputs{PreviousArchive: a, NewArchive: a}}, nil
	case KindRootRollup:
		out, err := evalRootRollup(in.RootRollup)
		return Outputs{Epoch: out}, err
	case KindBaseParity:
		if len(in.BaseParity.Messages) == 0 {
			return Outputs{}, invalid(job.Kind, "no messages")
		}
		return Outputs{Parity: &ParityOutputs{
			Root:       MerkleRoot(in.BaseParity.Messages),
			VkTreeRoot: in.BaseParity.VkTreeRoot,
		}}, nil
	case KindRootParity:
		out, err := evalRootParity(in.RootParity)
		return Outputs{Parity: out}, err
	}
	return Outputs{}, invalid(job.Kind, "no evaluator")
}

func evalBaseTx(kind JobKind, in *BaseTxInputs) (*TxTreeOutputs, error) {
	tx := &in.Tx
	if kind == KindEmptyTxBaseRollup {
		return &TxTreeOutputs{Fees: new(uint256.Int)}, nil
	}
	if tx.BaseKind() != kind {
		return nil, invalid(kind, "tx %s is proven by %s", tx.Hash.TerminalString(), tx.BaseKind())
	}
	return &TxTreeOutputs{
		NumTxs:        1,
		EffectsHash:   tx.EffectsHash(),
		OutHash:       MerkleRoot(tx.Effects.L2ToL1Msgs),
		NumBlobFields: uint64(len(tx.BlobFields())),
		Fees:          tx.TxFee(),
		ManaUsed:      tx.GasUsed,
	}, nil
}

func mergeTxTrees(l, r TxTreeOutputs) *TxTreeOutputs {
	return &TxTreeOutputs{
		NumTxs:        l.NumTxs + r.NumTxs,
		EffectsHash:   HashPair(l.EffectsHash, r.EffectsHash),
		OutHash:       HashPair(l.OutHash, r.OutHash),
		NumBlobFields: l.NumBlobFields + r.NumBlobFields,
		Fees:          addFees(l.Fees, r.Fees),
		ManaUsed:      l.ManaUsed + r.ManaUsed,
	}
}

// foldTop combines the top nodes of a tx tree the way the block root does.
func foldTop(top []TxTreeOutputs) TxTreeOutputs {
	switch len(top) {
	case 0:
		return TxTreeOutputs{Fees: new(uint256.Int)}
	case 1:
		return top[0]
	default:
		return *mergeTxTrees(top[0], top[1])
	}
}

func blockRootArity(kind JobKind) (lo, hi int) {
	switch kind {
	case KindBlockRootEmptyTxFirstRollup:
		return 0, 0
	case KindBlockRootSingleTxFirstRollup:
		return 1, 1
	case KindBlockRootFirstRollup:
		return 2, 2
	default:
		return 1, 2
	}
}

func evalBlockRoot(kind JobKind, in *BlockRootInputs) (*BlockRollupOutputs, error) {
	if lo, hi := blockRootArity(kind); len(in.Txs) < lo || len(in.Txs) > hi {
		return nil, invalid(kind, "expected %d..%d tx tree nodes, got %d", lo, hi, len(in.Txs))
	}
	first := kind != KindBlockRootRollup
	if first && in.StartSponge != (common.Hash{}) {
		return nil, invalid(kind, "first block of a checkpoint must start from an empty sponge")
	}

	txs := foldTop(in.Txs)
	numFields := txs.NumBlobFields + 1
	h := &in.Header
	switch {
	case h.LastArchive != in.PreviousArchive:
		return nil, invalid(kind, "header last archive does not match previous archive")
	case in.NewArchive.NextIndex != in.PreviousArchive.NextIndex+1:
		return nil, invalid(kind, "archive must grow by one leaf")
	case h.ContentCommitment != txs.EffectsHash:
		return nil, invalid(kind, "content commitment mismatch")
	case h.OutHash != txs.OutHash:
		return nil, invalid(kind, "out hash mismatch")
	case h.SpongeBlobHash != AbsorbSponge(in.StartSponge, txs.EffectsHash, numFields):
		return nil, invalid(kind, "sponge blob mismatch")
	case !feesEqual(h.TotalFees, txs.Fees):
		return nil, invalid(kind, "total fees mismatch")
	case h.TotalManaUsed != txs.ManaUsed:
		return nil, invalid(kind, "total mana used mismatch")
	}

	return &BlockRollupOutputs{
		PreviousArchive:  in.PreviousArchive,
		NewArchive:       in.NewArchive,
		StartBlockNumber: h.Number(),
		EndBlockNumber:   h.Number(),
		BlockHeadersHash: h.Hash(),
		OutHash:          txs.OutHash,
		StartSponge:      in.StartSponge,
		EndSponge:        h.SpongeBlobHash,
		NumBlobFields:    numFields,
		Fees:             addFees(txs.Fees, nil),
		ManaUsed:         txs.ManaUsed,
	}, nil
}

func mergeBlocks(kind JobKind, l, r BlockRollupOutputs) (*BlockRollupOutputs, error) {
	switch {
	case l.NewArchive != r.PreviousArchive:
		return nil, invalid(kind, "archive discontinuity between blocks %d and %d", l.EndBlockNumber, r.StartBlockNumber)
	case l.EndBlockNumber+1 != r.StartBlockNumber:
		return nil, invalid(kind, "block %d does not follow %d", r.StartBlockNumber, l.EndBlockNumber)
	case l.EndSponge != r.StartSponge:
		return nil, invalid(kind, "sponge discontinuity at block %d", r.StartBlockNumber)
	}
	return &BlockRollupOutputs{
		PreviousArchive:  l.PreviousArchive,
		NewArchive:       r.NewArchive,
		StartBlockNumber: l.StartBlockNumber,
		EndBlockNumber:   r.EndBlockNumber,
		BlockHeadersHash: HashPair(l.BlockHeadersHash, r.BlockHeadersHash),
		OutHash:          HashPair(l.OutHash, r.OutHash),
		StartSponge:      l.StartSponge,
		EndSponge:        r.EndSponge,
		NumBlobFields:    l.NumBlobFields + r.NumBlobFields,
		Fees:             addFees(l.Fees, r.Fees),
		ManaUsed:         l.ManaUsed + r.ManaUsed,
	}, nil
}

func evalCheckpointRoot(kind JobKind, in *CheckpointRootInputs) (*CheckpointRollupOutputs, error) {
	want := 2
	if kind == KindCheckpointRootSingleBlockRollup {
		want = 1
	}
	if len(in.Blocks) != want {
		return nil, invalid(kind, "expected %d block nodes, got %d", want, len(in.Blocks))
	}
	blocks := &in.Blocks[0]
	if want == 2 {
		merged, err := mergeBlocks(kind, in.Blocks[0], in.Blocks[1])
		if err != nil {
			return nil, err
		}
		blocks = merged
	}

	h := &in.Header
	switch {
	case blocks.StartSponge != (common.Hash{}):
		return nil, invalid(kind, "checkpoint sponge must start empty")
	case h.LastArchiveRoot != blocks.PreviousArchive.Root:
		return nil, invalid(kind, "last archive root mismatch")
	case h.BlockHeadersHash != blocks.BlockHeadersHash:
		return nil, invalid(kind, "block headers hash mismatch")
	case h.OutHash != blocks.OutHash:
		return nil, invalid(kind, "out hash mismatch")
	case h.BlobsHash != blocks.EndSponge:
		return nil, invalid(kind, "blobs hash mismatch")
	case h.NumBlobFields != blocks.NumBlobFields:
		return nil, invalid(kind, "blob field count mismatch: header %d, blocks %d", h.NumBlobFields, blocks.NumBlobFields)
	case !feesEqual(h.TotalFees, blocks.Fees):
		return nil, invalid(kind, "total fees mismatch")
	case h.TotalManaUsed != blocks.ManaUsed:
		return nil, invalid(kind, "total mana used mismatch")
	}

	return &CheckpointRollupOutputs{
		PreviousArchive:        blocks.PreviousArchive,
		NewArchive:             blocks.NewArchive,
		CheckpointHeaderHashes: []common.Hash{h.Hash()},
		Fees:                   []FeeRecipient{{Recipient: h.FeeRecipient, Value: addFees(blocks.Fees, nil)}},
		NumBlobFields:          blocks.NumBlobFields,
	}, nil
}

func mergeCheckpoints(kind JobKind, l, r CheckpointRollupOutputs) (*CheckpointRollupOutputs, error) {
	if l.NewArchive != r.PreviousArchive {
		return nil, invalid(kind, "archive discontinuity between checkpoints")
	}
	out := &CheckpointRollupOutputs{
		PreviousArchive: l.PreviousArchive,
		NewArchive:      r.NewArchive,
		NumBlobFields:   l.NumBlobFields + r.NumBlobFields,
	}
	out.CheckpointHeaderHashes = append(append(out.CheckpointHeaderHashes, l.CheckpointHeaderHashes...), r.CheckpointHeaderHashes...)
	out.Fees = append(append(out.Fees, l.Fees...), r.Fees...)
	return out, nil
}

func evalRootRollup(in *RootRollupInputs) (*EpochPublicInputs, error) {
	kind := KindRootRollup
	merged, err := mergeCheckpoints(kind, in.Left, in.Right)
	if err != nil {
		return nil, err
	}
	if len(merged.CheckpointHeaderHashes) == 0 {
		return nil, invalid(kind, "epoch has no checkpoints")
	}
	if len(merged.CheckpointHeaderHashes) > in.MaxEpochDuration {
		return nil, invalid(kind, "%d checkpoints exceed max epoch duration %d",
			len(merged.CheckpointHeaderHashes), in.MaxEpochDuration)
	}
	if in.Parity.VkTreeRoot != in.VkTreeRoot {
		return nil, invalid(kind, "parity vk tree root mismatch")
	}

	hashes := make([]common.Hash, in.MaxEpochDuration)
	copy(hashes, merged.CheckpointHeaderHashes)
	fees := make([]FeeRecipient, in.MaxEpochDuration)
	copy(fees, merged.Fees)
	for i := len(merged.Fees); i < len(fees); i++ {
		fees[i] = FeeRecipient{Value: new(uint256.Int)}
	}

	return &EpochPublicInputs{
		PreviousArchiveRoot:    merged.PreviousArchive.Root,
		EndArchiveRoot:         merged.NewArchive.Root,
		CheckpointHeaderHashes: hashes,
		Fees:                   fees,
		InHash:                 in.Parity.Root,
		ChainID:                in.ChainID,
		Version:                in.Version,
		VkTreeRoot:             in.VkTreeRoot,
		ProverID:               in.ProverID,
		Challenges:             in.Challenges,
	}, nil
}

func evalRootParity(in *RootParityInputs) (*ParityOutputs, error) {
	if len(in.Children) == 0 {
		return nil, invalid(KindRootParity, "no base parity children")
	}
	vk := in.Children[0].VkTreeRoot
	roots := make([]common.Hash, len(in.Children))
	for i, c := range in.Children {
		if c.VkTreeRoot != vk {
			return nil, invalid(KindRootParity, "child %d has a different vk tree root", i)
		}
		roots[i] = c.Root
	}
	return &ParityOutputs{Root: MerkleRoot(roots), VkTreeRoot: vk}, nil
}
