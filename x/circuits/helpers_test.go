package circuits

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func sampleTx(n byte, public bool, block uint64) Tx {
	return Tx{
		Hash:        common.BytesToHash([]byte{n}),
		BlockNumber: block,
		Public:      public,
		Effects: TxEffects{
			NoteHashes: []common.Hash{common.BytesToHash([]byte{n, 1})},
			Nullifiers: []common.Hash{common.BytesToHash([]byte{n, 2})},
			L2ToL1Msgs: []common.Hash{common.BytesToHash([]byte{n, 3})},
		},
		Fee:     uint256.NewInt(uint64(n) * 10),
		GasUsed: uint64(n) * 100,
	}
}

func mustEval(t *testing.T, kind JobKind, in Inputs) Outputs {
	t.Helper()
	out, err := Evaluate(Job{ID: "test", Kind: kind, Inputs: in})
	require.NoError(t, err)
	return out
}

// headerFor builds the header a block root accepts for txs.
func headerFor(txs []Tx, number uint64, prev AppendOnlySnapshot, sponge common.Hash) BlockHeader {
	fields := uint64(1)
	fees := new(uint256.Int)
	var mana uint64
	outs := make([]common.Hash, len(txs))
	for i := range txs {
		fields += uint64(len(txs[i].BlobFields()))
		fees.Add(fees, txs[i].TxFee())
		mana += txs[i].GasUsed
		outs[i] = MerkleRoot(txs[i].Effects.L2ToL1Msgs)
	}
	content := TxsEffectsRoot(txs)
	return BlockHeader{
		LastArchive:       prev,
		Global:            GlobalVariables{BlockNumber: number},
		SpongeBlobHash:    AbsorbSponge(sponge, content, fields),
		ContentCommitment: content,
		OutHash:           WonkyRoot(outs),
		TotalFees:         fees,
		TotalManaUsed:     mana,
	}
}
