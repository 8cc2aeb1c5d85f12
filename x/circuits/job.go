package circuits

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type BaseTxInputs struct {
	Tx Tx `json:"tx"`
}

type TxMergeInputs struct {
	Left  TxTreeOutputs `json:"left"`
	Right TxTreeOutputs `json:"right"`
}

// BlockRootInputs close a block. Txs holds the top of the tx tree: empty for
// an empty first block, otherwise one or two nodes.
type BlockRootInputs struct {
	Header          BlockHeader        `json:"header"`
	PreviousArchive AppendOnlySnapshot `json:"previous_archive"`
	NewArchive      AppendOnlySnapshot `json:"new_archive"`
	StartSponge     common.Hash        `json:"start_sponge"`
	Txs             []TxTreeOutputs    `json:"txs"`
}

type BlockMergeInputs struct {
	Left  BlockRollupOutputs `json:"left"`
	Right BlockRollupOutputs `json:"right"`
}

// CheckpointRootInputs close a checkpoint over the top of its block tree.
type CheckpointRootInputs struct {
	Header CheckpointHeader     `json:"header"`
	Blocks []BlockRollupOutputs `json:"blocks"`
}

type CheckpointMergeInputs struct {
	Left  CheckpointRollupOutputs `json:"left"`
	Right CheckpointRollupOutputs `json:"right"`
}

type CheckpointPaddingInputs struct {
	Archive AppendOnlySnapshot `json:"archive"`
}

type RootRollupInputs struct {
	Left             CheckpointRollupOutputs `json:"left"`
	Right            CheckpointRollupOutputs `json:"right"`
	Parity           ParityOutputs           `json:"parity"`
	ChainID          uint64                  `json:"chain_id"`
	Version          uint64                  `json:"version"`
	VkTreeRoot       common.Hash             `json:"vk_tree_root"`
	ProverID         common.Address          `json:"prover_id"`
	Challenges       BlobChallenges          `json:"challenges"`
	MaxEpochDuration int                     `json:"max_epoch_duration"`
}

type BaseParityInputs struct {
	Messages   []common.Hash `json:"messages"`
	VkTreeRoot common.Hash   `json:"vk_tree_root"`
}

type RootParityInputs struct {
	Children []ParityOutputs `json:"children"`
}

// Inputs carries the private inputs of a job. Exactly one field is set,
// selected by the job kind.
type Inputs struct {
	BaseTx            *BaseTxInputs            `json:"base_tx,omitempty"`
	TxMerge           *TxMergeInputs           `json:"tx_merge,omitempty"`
	BlockRoot         *BlockRootInputs         `json:"block_root,omitempty"`
	BlockMerge        *BlockMergeInputs        `json:"block_merge,omitempty"`
	CheckpointRoot    *CheckpointRootInputs    `json:"checkpoint_root,omitempty"`
	CheckpointMerge   *CheckpointMergeInputs   `json:"checkpoint_merge,omitempty"`
	CheckpointPadding *CheckpointPaddingInputs `json:"checkpoint_padding,omitempty"`
	RootRollup        *RootRollupInputs        `json:"root_rollup,omitempty"`
	BaseParity        *BaseParityInputs        `json:"base_parity,omitempty"`
	RootParity        *RootParityInputs        `json:"root_parity,omitempty"`
}

// Job is one circuit invocation requested from the prover pool.
type Job struct {
	ID          string  `json:"id"`
	EpochNumber uint64  `json:"epoch_number"`
	Kind        JobKind `json:"kind"`
	Inputs      Inputs  `json:"inputs"`
}

// Result is the outcome of a successful job.
type Result struct {
	Kind    JobKind    `json:"kind"`
	Proof   ProofBytes `json:"proof"`
	Outputs Outputs    `json:"outputs"`
}

// Validate checks that the inputs matching the kind are present.
func (j *Job) Validate() error {
	in := j.Inputs
	var ok bool
	switch j.Kind {
	case KindPrivateTxBaseRollup, KindPublicTxBaseRollup, KindEmptyTxBaseRollup:
		ok = in.BaseTx != nil
	case KindTxMergeRollup:
		ok = in.TxMerge != nil
	case KindBlockRootEmptyTxFirstRollup, KindBlockRootSingleTxFirstRollup, KindBlockRootFirstRollup, KindBlockRootRollup:
		ok = in.BlockRoot != nil
	case KindBlockMergeRollup:
		ok = in.BlockMerge != nil
	case KindCheckpointRootSingleBlockRollup, KindCheckpointRootRollup:
		ok = in.CheckpointRoot != nil
	case KindCheckpointMergeRollup:
		ok = in.CheckpointMerge != nil
	case KindCheckpointPaddingRollup:
		ok = in.CheckpointPadding != nil
	case KindRootRollup:
		ok = in.RootRollup != nil
	case KindBaseParity:
		ok = in.BaseParity != nil
	case KindRootParity:
		ok = in.RootParity != nil
	default:
		return fmt.Errorf("unknown job kind %d", uint8(j.Kind))
	}
	if !ok {
		return fmt.Errorf("job %s: missing %s inputs", j.ID, j.Kind)
	}
	return nil
}
