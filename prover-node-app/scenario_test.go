package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/epoch-prover/prover-node-app/config"
)

const explicitScenario = `
epochs:
  - number: 3
    challenges:
      z: "0x00000000000000000000000000000000000000000000000000000000000000aa"
      gamma: "0x00000000000000000000000000000000000000000000000000000000000000bb"
    checkpoints:
      - constants:
          chain_id: 1337
          version: 1
          slot_number: 300
          fee_recipient: "0x00000000000000000000000000000000000000fe"
        messages:
          - "0x0000000000000000000000000000000000000000000000000000000000000001"
        blocks:
          - number: 1
            timestamp: 1700000000
            txs:
              - hash: "0x1000000000000000000000000000000000000000000000000000000000000000"
                public: true
                fee: 25
                gas_used: 100
                effects:
                  note_hashes:
                    - "0x2000000000000000000000000000000000000000000000000000000000000000"
                  nullifiers:
                    - "0x3000000000000000000000000000000000000000000000000000000000000000"
          - number: 2
            timestamp: 1700000012
`

func TestParseScenario_Explicit(t *testing.T) {
	s, err := ParseScenario([]byte(explicitScenario))
	require.NoError(t, err)
	require.Len(t, s.Epochs, 1)

	e := s.Epochs[0]
	assert.Equal(t, uint64(3), e.Number)
	assert.Equal(t, common.HexToHash("0xaa"), e.Challenges.Z)
	require.Len(t, e.Checkpoints, 1)

	cp := e.Checkpoints[0]
	assert.Equal(t, uint64(1337), cp.Constants.ChainID)
	assert.Equal(t, common.HexToAddress("0xfe"), cp.Constants.FeeRecipient)
	require.Len(t, cp.Blocks, 2)
	require.Len(t, cp.Blocks[0].Txs, 1)
	assert.Empty(t, cp.Blocks[1].Txs)

	tx := cp.Blocks[0].Txs[0].circuitTx(cp.Blocks[0].Number)
	assert.True(t, tx.Public)
	assert.Equal(t, uint64(1), tx.BlockNumber)
	assert.Equal(t, uint64(25), tx.Fee.Uint64())
	assert.Len(t, tx.Effects.NoteHashes, 1)
}

func TestParseScenario_GeneratedEpochsChainBlockNumbers(t *testing.T) {
	raw := `
epochs:
  - number: 1
    generate: {checkpoints: 2, blocks_per_checkpoint: 2, txs_per_block: 3, messages: 1}
  - number: 2
    generate: {checkpoints: 1, blocks_per_checkpoint: 3, txs_per_block: 0}
`
	s, err := ParseScenario([]byte(raw))
	require.NoError(t, err)
	require.Len(t, s.Epochs, 2)

	first := s.Epochs[0].Checkpoints
	require.Len(t, first, 2)
	assert.Equal(t, uint64(1), first[0].Blocks[0].Number)
	assert.Equal(t, uint64(4), first[1].Blocks[1].Number)
	assert.Len(t, first[0].Blocks[0].Txs, 3)
	assert.Len(t, first[0].Messages, 1)
	assert.Equal(t, first[0].Constants.VkTreeRoot, first[1].Constants.VkTreeRoot)
	assert.NotEqual(t, first[0].Constants.SlotNumber, first[1].Constants.SlotNumber)

	second := s.Epochs[1].Checkpoints
	require.Len(t, second, 1)
	assert.Equal(t, uint64(5), second[0].Blocks[0].Number)
	assert.Equal(t, uint64(7), second[0].Blocks[2].Number)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "no epochs", raw: "epochs: []", want: "no epochs"},
		{name: "no shape", raw: "epochs: [{number: 1}]", want: "neither checkpoints nor generate"},
		{
			name: "empty checkpoint",
			raw:  "epochs: [{number: 1, checkpoints: [{blocks: []}]}]",
			want: "has no blocks",
		},
		{name: "not yaml", raw: "epochs: [", want: "decode scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(explicitScenario), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Len(t, s.Epochs, 1)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestProveScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
epochs:
  - number: 1
    generate: {checkpoints: 2, blocks_per_checkpoint: 2, txs_per_block: 2, messages: 2}
  - number: 2
    generate: {checkpoints: 1, blocks_per_checkpoint: 1, txs_per_block: 1}
`))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Prover.Workers = 4

	proofs, err := proveScenario(t.Context(), cfg, s, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, proofs, 2)

	first, second := proofs[0], proofs[1]
	assert.Equal(t, uint64(1), first.EpochNumber)
	assert.Len(t, first.Headers, 2)
	assert.NotEmpty(t, first.Proof)
	assert.Equal(t, uint64(2), second.EpochNumber)
	require.Len(t, second.Headers, 1)

	// The second epoch starts from the archive the first one left behind.
	assert.Equal(t, first.PublicInputs.EndArchiveRoot, second.Headers[0].LastArchiveRoot)
}

func TestProveScenario_Deterministic(t *testing.T) {
	raw := []byte(`
epochs:
  - number: 5
    generate: {checkpoints: 3, blocks_per_checkpoint: 2, txs_per_block: 3, messages: 1}
`)
	run := func() string {
		s, err := ParseScenario(raw)
		require.NoError(t, err)
		proofs, err := proveScenario(t.Context(), config.Default(), s, zerolog.Nop())
		require.NoError(t, err)
		require.Len(t, proofs, 1)
		return common.Bytes2Hex(proofs[0].Proof)
	}
	assert.Equal(t, run(), run())
}
