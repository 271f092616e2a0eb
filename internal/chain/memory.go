package chain

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	blocks  []*Block
	entries map[uuid.UUID]*Entry
	byCode  map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[uuid.UUID]*Entry),
		byCode:  make(map[string]*Entry),
	}
}

// GetTip implements Store.
func (s *MemoryStore) GetTip(_ context.Context) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.blocks) == 0 {
		return nil, nil
	}
	return s.blocks[len(s.blocks)-1], nil
}

// AppendAtomic implements Store. The optimistic check is the block index:
// it must be exactly one past the current tip (or 0 on an empty chain).
func (s *MemoryStore) AppendAtomic(_ context.Context, block *Block, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.Index != uint64(len(s.blocks)) {
		return ErrConflict
	}
	if entry != nil {
		if _, dup := s.byCode[entry.VerificationCode]; dup {
			return ErrConflict
		}
		s.entries[entry.ID] = entry
		s.byCode[entry.VerificationCode] = entry
	}
	s.blocks = append(s.blocks, block)
	return nil
}

// GetAll implements Store.
func (s *MemoryStore) GetAll(_ context.Context) ([]*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Block, len(s.blocks))
	copy(out, s.blocks)
	return out, nil
}

// GetBlockByIndex implements Store.
func (s *MemoryStore) GetBlockByIndex(_ context.Context, index uint64) (*Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index >= uint64(len(s.blocks)) {
		return nil, ErrNotFound
	}
	return s.blocks[index], nil
}

// GetEntryByID implements Store.
func (s *MemoryStore) GetEntryByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// GetEntryByCode implements Store.
func (s *MemoryStore) GetEntryByCode(_ context.Context, code string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// ListEntries implements Store.
func (s *MemoryStore) ListEntries(_ context.Context) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, b := range s.blocks {
		if e := s.entryForBlock(b.Index); e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// entryForBlock scans for the entry owned by the block at index.
// Caller must hold the read lock.
func (s *MemoryStore) entryForBlock(index uint64) *Entry {
	for _, e := range s.entries {
		if e.BlockIndex == index {
			return e
		}
	}
	return nil
}
