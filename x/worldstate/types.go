package worldstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/compose-network/epoch-prover/x/circuits"
)

// TreeID names one of the append-only state trees.
type TreeID uint8

const (
	NoteHashTree TreeID = iota
	NullifierTree
	PublicDataTree
	L1ToL2MessageTree
	ArchiveTree
	numTrees
)

func (t TreeID) String() string {
	switch t {
	case NoteHashTree:
		return "note_hash"
	case NullifierTree:
		return "nullifier"
	case PublicDataTree:
		return "public_data"
	case L1ToL2MessageTree:
		return "l1_to_l2_message"
	case ArchiveTree:
		return "archive"
	default:
		return fmt.Sprintf("tree(%d)", uint8(t))
	}
}

func (t TreeID) valid() bool { return t < numTrees }

var (
	ErrUnknownTree    = errors.New("unknown tree")
	ErrLeafNotFound   = errors.New("leaf not found")
	ErrTreeFull       = errors.New("tree is full")
	ErrNoCheckpoint   = errors.New("no open checkpoint")
	ErrOpenCheckpoint = errors.New("fork has open checkpoints")
	ErrForkClosed     = errors.New("fork is closed")
	ErrStaleFork      = errors.New("store changed since fork was taken")
)

// Store is the base world state that proving runs fork from.
type Store interface {
	Fork(ctx context.Context) (Fork, error)
}

// Fork is a writable view over a Store. Writes stay in the fork until
// Persist; Checkpoint, Commit and Revert nest transactions inside it.
type Fork interface {
	AppendLeaves(tree TreeID, leaves ...common.Hash) error
	Snapshot(tree TreeID) (circuits.AppendOnlySnapshot, error)
	Leaf(tree TreeID, index uint64) (common.Hash, error)
	Checkpoint()
	Commit() error
	Revert() error
	Persist() error
	Close()
}
