package circuits

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PublicDataWrite is a single slot update produced by public execution.
type PublicDataWrite struct {
	Slot  common.Hash `json:"slot"  yaml:"slot"`
	Value common.Hash `json:"value" yaml:"value"`
}

// TxEffects are the side effects a processed transaction leaves on state
// and in the checkpoint blobs.
type TxEffects struct {
	NoteHashes       []common.Hash     `json:"note_hashes,omitempty"        yaml:"note_hashes"`
	Nullifiers       []common.Hash     `json:"nullifiers,omitempty"         yaml:"nullifiers"`
	PublicDataWrites []PublicDataWrite `json:"public_data_writes,omitempty" yaml:"public_data_writes"`
	L2ToL1Msgs       []common.Hash     `json:"l2_to_l1_msgs,omitempty"      yaml:"l2_to_l1_msgs"`
	LogFields        []common.Hash     `json:"log_fields,omitempty"         yaml:"log_fields"`
}

// Tx is a processed transaction ready for base rollup proving.
type Tx struct {
	Hash        common.Hash  `json:"hash"         yaml:"hash"`
	BlockNumber uint64       `json:"block_number" yaml:"block_number"`
	Public      bool         `json:"public"       yaml:"public"`
	Effects     TxEffects    `json:"effects"      yaml:"effects"`
	Fee         *uint256.Int `json:"fee"          yaml:"-"`
	GasUsed     uint64       `json:"gas_used"     yaml:"gas_used"`
}

// BaseKind picks the base rollup variant for the tx.
func (tx *Tx) BaseKind() JobKind {
	if tx.Public {
		return KindPublicTxBaseRollup
	}
	return KindPrivateTxBaseRollup
}

// TxFee returns the fee, treating a nil fee as zero.
func (tx *Tx) TxFee() *uint256.Int {
	if tx.Fee == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(tx.Fee)
}

// BlobFields encodes the tx effects as the field elements appended to the
// checkpoint blobs. The first field is a prefix carrying the section sizes.
func (tx *Tx) BlobFields() []common.Hash {
	e := tx.Effects
	fields := make([]common.Hash, 0, 3+len(e.NoteHashes)+len(e.Nullifiers)+2*len(e.PublicDataWrites)+
		len(e.L2ToL1Msgs)+len(e.LogFields))

	var prefix common.Hash
	binary.BigEndian.PutUint32(prefix[12:], uint32(len(e.NoteHashes)))
	binary.BigEndian.PutUint32(prefix[16:], uint32(len(e.Nullifiers)))
	binary.BigEndian.PutUint32(prefix[20:], uint32(len(e.PublicDataWrites)))
	binary.BigEndian.PutUint32(prefix[24:], uint32(len(e.L2ToL1Msgs)))
	binary.BigEndian.PutUint32(prefix[28:], uint32(len(e.LogFields)))

	fields = append(fields, prefix, tx.Hash, common.Hash(tx.TxFee().Bytes32()))
	fields = append(fields, e.NoteHashes...)
	fields = append(fields, e.Nullifiers...)
	for _, w := range e.PublicDataWrites {
		fields = append(fields, w.Slot, w.Value)
	}
	fields = append(fields, e.L2ToL1Msgs...)
	fields = append(fields, e.LogFields...)
	return fields
}

// EffectsHash commits to the blob fields of the tx. It is the leaf of the
// block's content commitment.
func (tx *Tx) EffectsHash() common.Hash {
	fields := tx.BlobFields()
	buf := make([]byte, 0, len(fields)*common.HashLength)
	for _, f := range fields {
		buf = append(buf, f.Bytes()...)
	}
	return crypto.Keccak256Hash(buf)
}

// TxsEffectsRoot is the content commitment of a block holding txs.
func TxsEffectsRoot(txs []Tx) common.Hash {
	leaves := make([]common.Hash, len(txs))
	for i := range txs {
		leaves[i] = txs[i].EffectsHash()
	}
	return WonkyRoot(leaves)
}

// PaddingTx is the effect-free tx proven by the empty base rollup.
func PaddingTx(blockNumber uint64) Tx {
	return Tx{BlockNumber: blockNumber, Fee: new(uint256.Int)}
}
