package worldstate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/epoch-prover/x/circuits"
)

func newTestStore(t *testing.T, height int) *LevelDBStore {
	t.Helper()
	s, err := Open(Config{TreeHeight: height}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func hashes(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = common.BytesToHash([]byte{0xee, byte(i + 1)})
	}
	return out
}

func TestFrontier_MatchesMerkleRoot(t *testing.T) {
	for n := 0; n <= 8; n++ {
		f := newFrontier(3)
		leaves := hashes(n)
		for _, l := range leaves {
			require.NoError(t, f.append(l))
		}
		padded := make([]common.Hash, 8)
		copy(padded, leaves)
		require.Equal(t, circuits.MerkleRoot(padded), f.root(), "leaves=%d", n)
	}

	f := newFrontier(1)
	require.NoError(t, f.append(common.Hash{1}))
	require.NoError(t, f.append(common.Hash{2}))
	require.ErrorIs(t, f.append(common.Hash{3}), ErrTreeFull)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{TreeHeight: 0}.Validate())
	require.Error(t, Config{TreeHeight: MaxTreeHeight + 1}.Validate())
}

func TestFork_AppendAndSnapshot(t *testing.T) {
	s := newTestStore(t, 8)
	f, err := s.Fork(t.Context())
	require.NoError(t, err)
	defer f.Close()

	empty, err := f.Snapshot(NoteHashTree)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), empty.NextIndex)

	require.NoError(t, f.AppendLeaves(NoteHashTree, hashes(3)...))
	snap, err := f.Snapshot(NoteHashTree)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.NextIndex)
	assert.NotEqual(t, empty.Root, snap.Root)

	leaf, err := f.Leaf(NoteHashTree, 2)
	require.NoError(t, err)
	assert.Equal(t, hashes(3)[2], leaf)
	_, err = f.Leaf(NoteHashTree, 3)
	require.ErrorIs(t, err, ErrLeafNotFound)

	base, err := s.Snapshot(NoteHashTree)
	require.NoError(t, err)
	assert.Equal(t, empty, base, "fork writes must not reach the store before persist")

	require.ErrorIs(t, f.AppendLeaves(TreeID(99), common.Hash{}), ErrUnknownTree)
}

func TestFork_CheckpointRevertCommit(t *testing.T) {
	s := newTestStore(t, 8)
	f, err := s.Fork(t.Context())
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.AppendLeaves(ArchiveTree, hashes(1)...))
	before, err := f.Snapshot(ArchiveTree)
	require.NoError(t, err)

	f.Checkpoint()
	require.NoError(t, f.AppendLeaves(ArchiveTree, hashes(4)...))
	f.Checkpoint()
	require.NoError(t, f.AppendLeaves(NullifierTree, hashes(2)...))
	require.NoError(t, f.Revert())

	nulls, err := f.Snapshot(NullifierTree)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nulls.NextIndex)

	require.NoError(t, f.Revert())
	after, err := f.Snapshot(ArchiveTree)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	f.Checkpoint()
	require.NoError(t, f.AppendLeaves(ArchiveTree, hashes(2)...))
	require.NoError(t, f.Commit())
	committed, err := f.Snapshot(ArchiveTree)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), committed.NextIndex)

	require.ErrorIs(t, f.Commit(), ErrNoCheckpoint)
	require.ErrorIs(t, f.Revert(), ErrNoCheckpoint)
}

func TestFork_Persist(t *testing.T) {
	s := newTestStore(t, 8)
	f, err := s.Fork(t.Context())
	require.NoError(t, err)

	f.Checkpoint()
	require.NoError(t, f.AppendLeaves(PublicDataTree, hashes(5)...))
	require.ErrorIs(t, f.Persist(), ErrOpenCheckpoint)
	require.NoError(t, f.Commit())

	stale, err := s.Fork(t.Context())
	require.NoError(t, err)
	defer stale.Close()

	require.NoError(t, f.Persist())
	want, err := f.Snapshot(PublicDataTree)
	require.NoError(t, err)
	got, err := s.Snapshot(PublicDataTree)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	leaf, err := s.Leaf(PublicDataTree, 4)
	require.NoError(t, err)
	assert.Equal(t, hashes(5)[4], leaf)

	require.NoError(t, f.AppendLeaves(PublicDataTree, hashes(1)...))
	require.NoError(t, f.Persist())
	leaf, err = f.Leaf(PublicDataTree, 1)
	require.NoError(t, err)
	assert.Equal(t, hashes(5)[1], leaf)

	require.ErrorIs(t, stale.Persist(), ErrStaleFork)

	f.Close()
	require.ErrorIs(t, f.AppendLeaves(PublicDataTree, common.Hash{}), ErrForkClosed)
}

func TestOpen_ReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, TreeHeight: 16}

	s, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	f, err := s.Fork(t.Context())
	require.NoError(t, err)
	require.NoError(t, f.AppendLeaves(ArchiveTree, hashes(7)...))
	require.NoError(t, f.Persist())
	want, err := s.Snapshot(ArchiveTree)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(cfg, zerolog.Nop())
	require.NoError(t, err)
	got, err := reopened.Snapshot(ArchiveTree)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, reopened.Close())

	_, err = Open(Config{DataDir: dir, TreeHeight: 8}, zerolog.Nop())
	require.Error(t, err)
}
