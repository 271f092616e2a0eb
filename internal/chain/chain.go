// Package chain provides durable, ordered storage for the hash-chain ledger.
//
// A chain is a sequence of immutable Blocks indexed 0..n-1 with no gaps,
// each linking to its predecessor's hash. Every non-genesis block owns
// exactly one Entry, the reported incident payload, committed atomically
// with the block.
//
// Two implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PostgresStore: durable, for production use.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// GenesisPrevHash is the parent-hash value of the genesis block, which has
// no predecessor to link to.
const GenesisPrevHash = "0"

// ErrConflict is returned by AppendAtomic when another append advanced the
// tip after the caller read it. The caller must re-read the tip and retry.
var ErrConflict = errors.New("chain tip advanced since read")

// ErrNotFound is returned when a requested block or entry does not exist.
var ErrNotFound = errors.New("record not found")

// Block is one immutable, hash-linked ledger record. Once committed a block
// is never updated or deleted.
type Block struct {
	Index     uint64 `json:"index"`
	Timestamp string `json:"timestamp"` // RFC3339Nano, fixed at append time; hashed verbatim
	PrevHash  string `json:"prev_hash"`
	DataHash  string `json:"data_hash"`
	Hash      string `json:"hash"`
}

// Entry is the reported incident payload owned by exactly one block.
// Payload holds the JSON document the owning block's DataHash was computed
// over; it is stored as submitted and re-canonicalized on verification.
type Entry struct {
	ID               uuid.UUID       `json:"id"`
	BlockIndex       uint64          `json:"block_index"`
	Payload          json.RawMessage `json:"payload"`
	VerificationCode string          `json:"verification_code"`
	ReportedAt       time.Time       `json:"reported_at"`
}

// Store is the persistence contract for the ledger chain.
//
// AppendAtomic is the only mutating operation: it commits block and entry in
// a single transaction, or nothing at all. Appends against a stale tip fail
// with ErrConflict so that at most one append can extend a given parent.
type Store interface {
	// GetTip returns the last block by index, or (nil, nil) on an empty chain.
	GetTip(ctx context.Context) (*Block, error)

	// AppendAtomic persists block and its entry in one transaction.
	// entry is nil only for the genesis block.
	AppendAtomic(ctx context.Context, block *Block, entry *Entry) error

	// GetAll returns every block in ascending index order. Each call
	// re-reads from storage.
	GetAll(ctx context.Context) ([]*Block, error)

	// GetBlockByIndex returns the block at index, or ErrNotFound.
	GetBlockByIndex(ctx context.Context, index uint64) (*Block, error)

	// GetEntryByID returns the entry with the given id, or ErrNotFound.
	GetEntryByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// GetEntryByCode returns the entry with the given verification code,
	// or ErrNotFound.
	GetEntryByCode(ctx context.Context, code string) (*Entry, error)

	// ListEntries returns every entry in ascending block-index order.
	ListEntries(ctx context.Context) ([]*Entry, error)
}
