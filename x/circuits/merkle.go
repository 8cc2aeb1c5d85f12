package circuits

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// HashPair is the node hash of every tree in the rollup: keccak256(left || right).
func HashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}

// MerkleRoot returns the root of a balanced tree over leaves, padded with
// zero hashes to the next power of two. An empty input has a zero root.
func MerkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	width := 1
	for width < len(leaves) {
		width <<= 1
	}
	level := make([]common.Hash, width)
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = HashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// WonkyLevels returns the node count of each level of the aggregation tree
// used at the tx, block and checkpoint levels. Leaves are paired left to
// right and a trailing odd node is carried up unchanged. Iteration stops
// when at most two nodes remain; those are the children of the scope root.
func WonkyLevels(leaves int) []int {
	if leaves <= 0 {
		return nil
	}
	levels := []int{leaves}
	for n := leaves; n > 2; {
		n = (n + 1) / 2
		levels = append(levels, n)
	}
	return levels
}

// WonkyTop folds leaves along WonkyLevels and returns the (at most two) top
// nodes that the scope root consumes.
func WonkyTop(leaves []common.Hash) []common.Hash {
	level := leaves
	for len(level) > 2 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, HashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return level
}

// WonkyRoot is the root over leaves with the aggregation tree shape.
func WonkyRoot(leaves []common.Hash) common.Hash {
	top := WonkyTop(leaves)
	switch len(top) {
	case 0:
		return common.Hash{}
	case 1:
		return top[0]
	default:
		return HashPair(top[0], top[1])
	}
}

// AbsorbSponge advances the running blob sponge of a checkpoint by the
// effects of one block.
func AbsorbSponge(start, effectsRoot common.Hash, numFields uint64) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], numFields)
	return crypto.Keccak256Hash(start.Bytes(), effectsRoot.Bytes(), n[:])
}

func rlpHash(v any) (h common.Hash) {
	sha := crypto.NewKeccakState()
	sha.Reset()
	_ = rlp.Encode(sha, v)
	_, _ = sha.Read(h[:])
	return h
}
