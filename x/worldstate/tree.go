package worldstate

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/epoch-prover/x/circuits"
)

var (
	zeroHashesOnce sync.Once
	zeroHashes     [MaxTreeHeight + 1]common.Hash
)

// zeroHash returns the root of an empty subtree of the given height.
func zeroHash(height int) common.Hash {
	zeroHashesOnce.Do(func() {
		for i := 1; i <= MaxTreeHeight; i++ {
			zeroHashes[i] = circuits.HashPair(zeroHashes[i-1], zeroHashes[i-1])
		}
	})
	return zeroHashes[height]
}

// frontier is an incremental Merkle tree: only the rightmost filled node of
// each level is kept, which is enough to append and to compute the root.
type frontier struct {
	Size     uint64
	Branches []common.Hash
}

func newFrontier(height int) *frontier {
	return &frontier{Branches: make([]common.Hash, height)}
}

func (f *frontier) height() int { return len(f.Branches) }

func (f *frontier) capacity() uint64 {
	if f.height() >= 64 {
		return ^uint64(0)
	}
	return uint64(1) << f.height()
}

func (f *frontier) clone() *frontier {
	return &frontier{Size: f.Size, Branches: append([]common.Hash(nil), f.Branches...)}
}

func (f *frontier) append(leaf common.Hash) error {
	if f.Size >= f.capacity() {
		return ErrTreeFull
	}
	f.Size++
	node := leaf
	size := f.Size
	for h := 0; h < f.height(); h++ {
		if size&1 == 1 {
			f.Branches[h] = node
			return nil
		}
		node = circuits.HashPair(f.Branches[h], node)
		size >>= 1
	}
	return nil
}

func (f *frontier) root() common.Hash {
	var node common.Hash
	size := f.Size
	for h := 0; h < f.height(); h++ {
		if size&1 == 1 {
			node = circuits.HashPair(f.Branches[h], node)
		} else {
			node = circuits.HashPair(node, zeroHash(h))
		}
		size >>= 1
	}
	return node
}

func (f *frontier) snapshot() circuits.AppendOnlySnapshot {
	return circuits.AppendOnlySnapshot{Root: f.root(), NextIndex: f.Size}
}
