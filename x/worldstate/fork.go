package worldstate

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/epoch-prover/x/circuits"
)

type forkCheckpoint struct {
	trees   [numTrees]*frontier
	pending [numTrees]int
}

type fork struct {
	mu          sync.Mutex
	store       *LevelDBStore
	baseVersion uint64
	base        [numTrees]uint64
	trees       [numTrees]*frontier
	pending     [numTrees][]common.Hash
	checkpoints []forkCheckpoint
	closed      bool
}

func (f *fork) AppendLeaves(tree TreeID, leaves ...common.Hash) error {
	if !tree.valid() {
		return ErrUnknownTree
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrForkClosed
	}

	t := f.trees[tree]
	if t.Size+uint64(len(leaves)) > t.capacity() || t.Size+uint64(len(leaves)) < t.Size {
		return fmt.Errorf("%w: %s cannot take %d more leaves", ErrTreeFull, tree, len(leaves))
	}
	for _, leaf := range leaves {
		if err := t.append(leaf); err != nil {
			return err
		}
	}
	f.pending[tree] = append(f.pending[tree], leaves...)
	return nil
}

func (f *fork) Snapshot(tree TreeID) (circuits.AppendOnlySnapshot, error) {
	if !tree.valid() {
		return circuits.AppendOnlySnapshot{}, ErrUnknownTree
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return circuits.AppendOnlySnapshot{}, ErrForkClosed
	}
	return f.trees[tree].snapshot(), nil
}

func (f *fork) Leaf(tree TreeID, index uint64) (common.Hash, error) {
	if !tree.valid() {
		return common.Hash{}, ErrUnknownTree
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return common.Hash{}, ErrForkClosed
	}
	base := f.base[tree]
	if index >= base {
		defer f.mu.Unlock()
		off := index - base
		if off >= uint64(len(f.pending[tree])) {
			return common.Hash{}, fmt.Errorf("%w: %s[%d]", ErrLeafNotFound, tree, index)
		}
		return f.pending[tree][off], nil
	}
	f.mu.Unlock()
	return f.store.Leaf(tree, index)
}

// Checkpoint opens a nested transaction.
func (f *fork) Checkpoint() {
	f.mu.Lock()
	defer f.mu.Unlock()

	var cp forkCheckpoint
	for t := range f.trees {
		cp.trees[t] = f.trees[t].clone()
		cp.pending[t] = len(f.pending[t])
	}
	f.checkpoints = append(f.checkpoints, cp)
}

// Commit folds the innermost transaction into its parent.
func (f *fork) Commit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.checkpoints) == 0 {
		return ErrNoCheckpoint
	}
	f.checkpoints = f.checkpoints[:len(f.checkpoints)-1]
	return nil
}

// Revert drops every write since the innermost checkpoint.
func (f *fork) Revert() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.checkpoints) == 0 {
		return ErrNoCheckpoint
	}
	cp := f.checkpoints[len(f.checkpoints)-1]
	f.checkpoints = f.checkpoints[:len(f.checkpoints)-1]
	f.trees = cp.trees
	for t := range f.pending {
		f.pending[t] = f.pending[t][:cp.pending[t]]
	}
	return nil
}

// Persist writes the fork into the base store. The fork stays usable and
// its later writes build on what was persisted.
func (f *fork) Persist() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrForkClosed
	}
	if len(f.checkpoints) > 0 {
		return ErrOpenCheckpoint
	}
	if err := f.store.apply(f.baseVersion, f.trees, f.pending, f.base); err != nil {
		return err
	}
	f.baseVersion++
	for t := range f.pending {
		f.base[t] += uint64(len(f.pending[t]))
		f.pending[t] = nil
	}
	return nil
}

func (f *fork) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.pending = [numTrees][]common.Hash{}
	f.checkpoints = nil
}
