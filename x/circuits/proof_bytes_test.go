package circuits

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

const sampleProof = "0x1fe0c4b3a95d0d88f1595e074fdcef2eb76c3aefa2c6e342615d2003a7373c8c"

func TestProofBytes_Hex(t *testing.T) {
	var p ProofBytes
	require.NoError(t, json.Unmarshal([]byte(`"`+sampleProof+`"`), &p))
	require.Len(t, p, 32)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `"`+sampleProof+`"`, string(encoded))
}

func TestProofBytes_Base64(t *testing.T) {
	raw := hexutil.MustDecode(sampleProof)
	var p ProofBytes
	require.NoError(t, json.Unmarshal([]byte(`"`+base64.StdEncoding.EncodeToString(raw)+`"`), &p))
	require.Equal(t, raw, []byte(p))
}

func TestProofBytes_Array(t *testing.T) {
	var p ProofBytes
	require.NoError(t, json.Unmarshal([]byte(`[1, 2, 255]`), &p))
	require.Equal(t, ProofBytes{1, 2, 255}, p)

	require.Error(t, json.Unmarshal([]byte(`[256]`), &p))
	require.Error(t, json.Unmarshal([]byte(`true`), &p))
}

func TestProofBytes_Empty(t *testing.T) {
	var p ProofBytes
	require.NoError(t, json.Unmarshal([]byte(`null`), &p))
	require.Nil(t, p)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	require.Equal(t, "null", string(encoded))
	require.Equal(t, "<empty>", p.String())
}

func TestProofBytes_Clone(t *testing.T) {
	p := ProofBytes(hexutil.MustDecode(sampleProof))
	clone := p.Clone()
	require.Equal(t, p, clone)
	clone[0] ^= 0xff
	require.NotEqual(t, clone[0], p[0])
	require.Equal(t, p.Hash(), ProofBytes(hexutil.MustDecode(sampleProof)).Hash())
}
