package circuits

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ProofBytes is an opaque proof payload.
//
// JSON input may be a 0x-prefixed hex string, a base64 string or an array of
// byte values. Output is always 0x-prefixed hex.
type ProofBytes []byte

var errUnsupportedProofEncoding = errors.New("unsupported proof encoding")

func (p *ProofBytes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	var (
		decoded []byte
		err     error
	)
	switch data[0] {
	case '[':
		decoded, err = decodeByteArray(data)
	case '"':
		decoded, err = decodeByteString(data)
	default:
		err = errUnsupportedProofEncoding
	}
	if err != nil {
		return err
	}
	*p = ProofBytes(decoded)
	return nil
}

func decodeByteArray(data []byte) ([]byte, error) {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("proof array must contain integers: %w", err)
	}
	buf := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("proof byte %d out of range: %d", i, v)
		}
		buf[i] = byte(v)
	}
	return buf, nil
}

func decodeByteString(data []byte) ([]byte, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("proof string invalid: %w", err)
	}
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, nil
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		decoded, err := hexutil.Decode("0x" + s[2:])
		if err != nil {
			return nil, fmt.Errorf("proof hex decode failed: %w", err)
		}
		return decoded, nil
	default:
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("proof base64 decode failed: %w", err)
		}
		return decoded, nil
	}
}

func (p ProofBytes) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(hexutil.Encode(p))
}

// Clone returns a copy of the payload.
func (p ProofBytes) Clone() ProofBytes {
	if len(p) == 0 {
		return nil
	}
	return bytes.Clone(p)
}

// Hash is the keccak256 digest of the payload, used in logs and stats.
func (p ProofBytes) Hash() common.Hash {
	return crypto.Keccak256Hash(p)
}

func (p ProofBytes) String() string {
	if len(p) == 0 {
		return "<empty>"
	}
	return fmt.Sprintf("%d bytes %s", len(p), p.Hash().TerminalString())
}
