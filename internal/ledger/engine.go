package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/hashing"
)

// codeLength is the number of leading hex characters of a block hash that
// form its public verification code.
const codeLength = 8

// maxAppendAttempts bounds the conflict retry loop in Append.
const maxAppendAttempts = 5

// Engine owns the append protocol. It is safe for concurrent use: the store's
// atomic append plus the bounded retry loop guarantee that no two committed
// blocks ever share an index or a parent.
type Engine struct {
	store  chain.Store
	logger *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates an Engine writing to store.
func NewEngine(store chain.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// Initialize creates the genesis block if the chain is empty. It is
// idempotent: on a non-empty chain it is a no-op, and a concurrent
// initializer losing the insert race is also treated as success.
func (e *Engine) Initialize(ctx context.Context) error {
	tip, err := e.store.GetTip(ctx)
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}
	if tip != nil {
		return nil
	}

	canonical, err := hashing.Canonicalize(genesisMarker)
	if err != nil {
		return fmt.Errorf("canonicalize genesis marker: %w", err)
	}

	ts := e.now().UTC().Format(time.RFC3339Nano)
	genesis := &chain.Block{
		Index:     0,
		Timestamp: ts,
		PrevHash:  chain.GenesisPrevHash,
		DataHash:  hashing.Digest(canonical),
	}
	genesis.Hash = hashing.BlockDigest(genesis.PrevHash, genesis.DataHash, genesis.Timestamp, genesis.Index)

	if err := e.store.AppendAtomic(ctx, genesis, nil); err != nil {
		if errors.Is(err, chain.ErrConflict) {
			// Another caller created genesis first.
			return nil
		}
		return fmt.Errorf("persist genesis block: %w", err)
	}

	e.logger.Info("genesis block created", zap.String("hash", genesis.Hash))
	return nil
}

// Append commits payload as a new entry chained to the current tip and
// returns a receipt. Anonymity is forced at this boundary. On tip contention
// the whole sequence is retried from a fresh tip read, up to
// maxAppendAttempts times.
func (e *Engine) Append(ctx context.Context, payload Payload) (*Receipt, error) {
	payload.IsAnonymous = true
	if payload.ReportedAt.IsZero() {
		payload.ReportedAt = e.now().UTC()
	}

	canonical, err := hashing.Canonicalize(payload)
	if err != nil {
		return nil, err
	}
	dataHash := hashing.Digest(canonical)

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		tip, err := e.store.GetTip(ctx)
		if err != nil {
			return nil, fmt.Errorf("read tip: %w", err)
		}
		if tip == nil {
			return nil, ErrNotInitialized
		}

		block := &chain.Block{
			Index:     tip.Index + 1,
			Timestamp: e.now().UTC().Format(time.RFC3339Nano),
			PrevHash:  tip.Hash,
			DataHash:  dataHash,
		}
		block.Hash = hashing.BlockDigest(block.PrevHash, block.DataHash, block.Timestamp, block.Index)

		entry := &chain.Entry{
			ID:               uuid.New(),
			BlockIndex:       block.Index,
			Payload:          canonical,
			VerificationCode: verificationCode(block.Hash),
			ReportedAt:       payload.ReportedAt,
		}

		if err := e.store.AppendAtomic(ctx, block, entry); err != nil {
			if errors.Is(err, chain.ErrConflict) {
				e.logger.Debug("append conflict, retrying",
					zap.Uint64("idx", block.Index),
					zap.Int("attempt", attempt),
				)
				continue
			}
			return nil, fmt.Errorf("append block %d: %w", block.Index, err)
		}

		e.logger.Info("entry appended",
			zap.Uint64("idx", block.Index),
			zap.String("code", entry.VerificationCode),
		)
		return &Receipt{
			EntryID:          entry.ID,
			Index:            block.Index,
			Hash:             block.Hash,
			PrevHash:         block.PrevHash,
			Timestamp:        block.Timestamp,
			VerificationCode: entry.VerificationCode,
		}, nil
	}

	return nil, ErrAppendContention
}

// verificationCode derives the short public lookup code from a block hash.
func verificationCode(blockHash string) string {
	return strings.ToUpper(blockHash[:codeLength])
}
