package circuits

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TxTreeOutputs are the public outputs of a tx base or tx merge proof.
type TxTreeOutputs struct {
	NumTxs        uint64       `json:"num_txs"`
	EffectsHash   common.Hash  `json:"effects_hash"`
	OutHash       common.Hash  `json:"out_hash"`
	NumBlobFields uint64       `json:"num_blob_fields"`
	Fees          *uint256.Int `json:"fees"`
	ManaUsed      uint64       `json:"mana_used"`
}

// BlockRollupOutputs are the public outputs of a block root or block merge
// proof. They span a contiguous range of blocks inside one checkpoint.
type BlockRollupOutputs struct {
	PreviousArchive  AppendOnlySnapshot `json:"previous_archive"`
	NewArchive       AppendOnlySnapshot `json:"new_archive"`
	StartBlockNumber uint64             `json:"start_block_number"`
	EndBlockNumber   uint64             `json:"end_block_number"`
	BlockHeadersHash common.Hash        `json:"block_headers_hash"`
	OutHash          common.Hash        `json:"out_hash"`
	StartSponge      common.Hash        `json:"start_sponge"`
	EndSponge        common.Hash        `json:"end_sponge"`
	NumBlobFields    uint64             `json:"num_blob_fields"`
	Fees             *uint256.Int       `json:"fees"`
	ManaUsed         uint64             `json:"mana_used"`
}

// CheckpointRollupOutputs are the public outputs of a checkpoint root,
// checkpoint merge or checkpoint padding proof.
type CheckpointRollupOutputs struct {
	PreviousArchive        AppendOnlySnapshot `json:"previous_archive"`
	NewArchive             AppendOnlySnapshot `json:"new_archive"`
	CheckpointHeaderHashes []common.Hash      `json:"checkpoint_header_hashes"`
	Fees                   []FeeRecipient     `json:"fees"`
	NumBlobFields          uint64             `json:"num_blob_fields"`
}

type ParityOutputs struct {
	Root       common.Hash `json:"root"`
	VkTreeRoot common.Hash `json:"vk_tree_root"`
}

// EpochPublicInputs are the public inputs of the root rollup proof.
type EpochPublicInputs struct {
	PreviousArchiveRoot    common.Hash    `json:"previous_archive_root"`
	EndArchiveRoot         common.Hash    `json:"end_archive_root"`
	CheckpointHeaderHashes []common.Hash  `json:"checkpoint_header_hashes"`
	Fees                   []FeeRecipient `json:"fees"`
	InHash                 common.Hash    `json:"in_hash"`
	ChainID                uint64         `json:"chain_id"`
	Version                uint64         `json:"version"`
	VkTreeRoot             common.Hash    `json:"vk_tree_root"`
	ProverID               common.Address `json:"prover_id"`
	Challenges             BlobChallenges `json:"challenges"`
}

// NumCheckpoints counts the non-padding header hashes.
func (p *EpochPublicInputs) NumCheckpoints() int {
	n := 0
	for _, h := range p.CheckpointHeaderHashes {
		if h != (common.Hash{}) {
			n++
		}
	}
	return n
}

// Outputs holds the public outputs of one proof. Exactly one field is set,
// selected by the job kind.
type Outputs struct {
	Tx         *TxTreeOutputs           `json:"tx,omitempty"`
	Block      *BlockRollupOutputs      `json:"block,omitempty"`
	Checkpoint *CheckpointRollupOutputs `json:"checkpoint,omitempty"`
	Parity     *ParityOutputs           `json:"parity,omitempty"`
	Epoch      *EpochPublicInputs       `json:"epoch,omitempty"`
}

func addFees(a, b *uint256.Int) *uint256.Int {
	out := new(uint256.Int)
	if a != nil {
		out.Add(out, a)
	}
	if b != nil {
		out.Add(out, b)
	}
	return out
}

func feesEqual(a, b *uint256.Int) bool {
	if a == nil {
		a = new(uint256.Int)
	}
	if b == nil {
		b = new(uint256.Int)
	}
	return a.Eq(b)
}
