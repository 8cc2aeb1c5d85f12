package worldstate

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/compose-network/epoch-prover/x/circuits"
)

const (
	prefixMeta byte = 'm'
	prefixLeaf byte = 'l'
)

func metaKey(tree TreeID) []byte {
	return []byte{prefixMeta, byte(tree)}
}

func leafKey(tree TreeID, index uint64) []byte {
	key := make([]byte, 10)
	key[0] = prefixLeaf
	key[1] = byte(tree)
	binary.BigEndian.PutUint64(key[2:], index)
	return key
}

// LevelDBStore persists the state trees in LevelDB.
type LevelDBStore struct {
	mu      sync.RWMutex
	db      *leveldb.DB
	trees   [numTrees]*frontier
	version uint64
	log     zerolog.Logger
}

// Open opens or creates the store. An empty DataDir uses in-memory storage.
func Open(cfg Config, log zerolog.Logger) (*LevelDBStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid world state config: %w", err)
	}

	var (
		db  *leveldb.DB
		err error
	)
	if cfg.DataDir == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(cfg.DataDir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open world state at %q: %w", cfg.DataDir, err)
	}

	s := &LevelDBStore{
		db:  db,
		log: log.With().Str("component", "world-state").Logger(),
	}
	for t := TreeID(0); t < numTrees; t++ {
		f, err := s.loadFrontier(t, cfg.TreeHeight)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.trees[t] = f
	}

	s.log.Info().
		Str("data_dir", cfg.DataDir).
		Int("tree_height", cfg.TreeHeight).
		Uint64("archive_size", s.trees[ArchiveTree].Size).
		Msg("World state opened")
	return s, nil
}

func (s *LevelDBStore) loadFrontier(tree TreeID, height int) (*frontier, error) {
	raw, err := s.db.Get(metaKey(tree), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return newFrontier(height), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s tree meta: %w", tree, err)
	}
	f := new(frontier)
	if err := rlp.DecodeBytes(raw, f); err != nil {
		return nil, fmt.Errorf("decode %s tree meta: %w", tree, err)
	}
	if f.height() != height {
		return nil, fmt.Errorf("%s tree has height %d, configured %d", tree, f.height(), height)
	}
	return f, nil
}

// Snapshot returns the committed snapshot of a tree.
func (s *LevelDBStore) Snapshot(tree TreeID) (circuits.AppendOnlySnapshot, error) {
	if !tree.valid() {
		return circuits.AppendOnlySnapshot{}, ErrUnknownTree
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trees[tree].snapshot(), nil
}

// Leaf reads a committed leaf.
func (s *LevelDBStore) Leaf(tree TreeID, index uint64) (common.Hash, error) {
	if !tree.valid() {
		return common.Hash{}, ErrUnknownTree
	}
	raw, err := s.db.Get(leafKey(tree, index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return common.Hash{}, fmt.Errorf("%w: %s[%d]", ErrLeafNotFound, tree, index)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("read %s[%d]: %w", tree, index, err)
	}
	return common.BytesToHash(raw), nil
}

// Fork returns a writable view of the current committed state.
func (s *LevelDBStore) Fork(ctx context.Context) (Fork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := &fork{store: s, baseVersion: s.version}
	for t := range s.trees {
		f.base[t] = s.trees[t].Size
		f.trees[t] = s.trees[t].clone()
	}
	s.log.Debug().Uint64("version", s.version).Msg("World state forked")
	return f, nil
}

// apply writes the leaves and frontiers of a fork in one batch.
func (s *LevelDBStore) apply(baseVersion uint64, trees [numTrees]*frontier, pending [numTrees][]common.Hash, base [numTrees]uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version != baseVersion {
		return ErrStaleFork
	}

	batch := new(leveldb.Batch)
	written := 0
	for t := TreeID(0); t < numTrees; t++ {
		for i, leaf := range pending[t] {
			batch.Put(leafKey(t, base[t]+uint64(i)), leaf.Bytes())
			written++
		}
		meta, err := rlp.EncodeToBytes(trees[t])
		if err != nil {
			return fmt.Errorf("encode %s tree meta: %w", t, err)
		}
		batch.Put(metaKey(t), meta)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write world state batch: %w", err)
	}

	for t := range trees {
		s.trees[t] = trees[t].clone()
	}
	s.version++
	s.log.Debug().Int("leaves", written).Uint64("version", s.version).Msg("Fork persisted")
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

var _ Store = (*LevelDBStore)(nil)
