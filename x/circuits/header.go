package circuits

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// AppendOnlySnapshot is the root and size of an append-only tree.
type AppendOnlySnapshot struct {
	Root      common.Hash `json:"root"`
	NextIndex uint64      `json:"next_index"`
}

// StateReference collects the snapshots of the state trees after a block.
type StateReference struct {
	L1ToL2MessageTree AppendOnlySnapshot `json:"l1_to_l2_message_tree"`
	NoteHashTree      AppendOnlySnapshot `json:"note_hash_tree"`
	NullifierTree     AppendOnlySnapshot `json:"nullifier_tree"`
	PublicDataTree    AppendOnlySnapshot `json:"public_data_tree"`
}

type GasFees struct {
	FeePerDaGas uint64 `json:"fee_per_da_gas" yaml:"fee_per_da_gas"`
	FeePerL2Gas uint64 `json:"fee_per_l2_gas" yaml:"fee_per_l2_gas"`
}

// GlobalVariables are shared by every tx of a block.
type GlobalVariables struct {
	ChainID      uint64         `json:"chain_id"`
	Version      uint64         `json:"version"`
	BlockNumber  uint64         `json:"block_number"`
	SlotNumber   uint64         `json:"slot_number"`
	Timestamp    uint64         `json:"timestamp"`
	Coinbase     common.Address `json:"coinbase"`
	FeeRecipient common.Address `json:"fee_recipient"`
	GasFees      GasFees        `json:"gas_fees"`
}

// BlockHeader is the public commitment to a proven block.
type BlockHeader struct {
	LastArchive       AppendOnlySnapshot `json:"last_archive"`
	State             StateReference     `json:"state"`
	Global            GlobalVariables    `json:"global_variables"`
	SpongeBlobHash    common.Hash        `json:"sponge_blob_hash"`
	ContentCommitment common.Hash        `json:"content_commitment"`
	OutHash           common.Hash        `json:"out_hash"`
	TotalFees         *uint256.Int       `json:"total_fees"`
	TotalManaUsed     uint64             `json:"total_mana_used"`
}

// Hash returns keccak256(rlp(header)).
func (h *BlockHeader) Hash() common.Hash {
	return rlpHash(h)
}

// Number is a shorthand for the block number in the global variables.
func (h *BlockHeader) Number() uint64 {
	return h.Global.BlockNumber
}

// CheckpointHeader is the public commitment to a proven checkpoint.
type CheckpointHeader struct {
	LastArchiveRoot  common.Hash    `json:"last_archive_root"`
	BlockHeadersHash common.Hash    `json:"block_headers_hash"`
	InHash           common.Hash    `json:"in_hash"`
	OutHash          common.Hash    `json:"out_hash"`
	BlobsHash        common.Hash    `json:"blobs_hash"`
	SlotNumber       uint64         `json:"slot_number"`
	Timestamp        uint64         `json:"timestamp"`
	Coinbase         common.Address `json:"coinbase"`
	FeeRecipient     common.Address `json:"fee_recipient"`
	GasFees          GasFees        `json:"gas_fees"`
	TotalManaUsed    uint64         `json:"total_mana_used"`
	TotalFees        *uint256.Int   `json:"total_fees"`
	NumBlobFields    uint64         `json:"num_blob_fields"`
}

func (h *CheckpointHeader) Hash() common.Hash {
	return rlpHash(h)
}

// CheckpointConstants are the values fixed for every block of a checkpoint.
type CheckpointConstants struct {
	ChainID               uint64         `json:"chain_id"                yaml:"chain_id"`
	Version               uint64         `json:"version"                 yaml:"version"`
	VkTreeRoot            common.Hash    `json:"vk_tree_root"            yaml:"vk_tree_root"`
	ProtocolContractsHash common.Hash    `json:"protocol_contracts_hash" yaml:"protocol_contracts_hash"`
	ProverID              common.Address `json:"prover_id"               yaml:"prover_id"`
	SlotNumber            uint64         `json:"slot_number"             yaml:"slot_number"`
	Coinbase              common.Address `json:"coinbase"                yaml:"coinbase"`
	FeeRecipient          common.Address `json:"fee_recipient"           yaml:"fee_recipient"`
	GasFees               GasFees        `json:"gas_fees"                yaml:"gas_fees"`
}

// GlobalsFor derives the global variables of a block in the checkpoint.
func (c CheckpointConstants) GlobalsFor(blockNumber, timestamp uint64) GlobalVariables {
	return GlobalVariables{
		ChainID:      c.ChainID,
		Version:      c.Version,
		BlockNumber:  blockNumber,
		SlotNumber:   c.SlotNumber,
		Timestamp:    timestamp,
		Coinbase:     c.Coinbase,
		FeeRecipient: c.FeeRecipient,
		GasFees:      c.GasFees,
	}
}

// SameEpochConstants reports whether two checkpoints may share an epoch.
func (c CheckpointConstants) SameEpochConstants(o CheckpointConstants) bool {
	return c.ChainID == o.ChainID && c.Version == o.Version &&
		c.VkTreeRoot == o.VkTreeRoot && c.ProverID == o.ProverID
}

// BlobChallenges are the batched blob evaluation challenges of an epoch.
type BlobChallenges struct {
	Z     common.Hash `json:"z"     yaml:"z"`
	Gamma common.Hash `json:"gamma" yaml:"gamma"`
}

// FeeRecipient pairs a recipient with the fees it collected in a checkpoint.
type FeeRecipient struct {
	Recipient common.Address `json:"recipient"`
	Value     *uint256.Int   `json:"value"`
}

// IsEmpty reports whether the entry is epoch padding.
func (f FeeRecipient) IsEmpty() bool {
	return f.Recipient == (common.Address{}) && (f.Value == nil || f.Value.IsZero())
}
