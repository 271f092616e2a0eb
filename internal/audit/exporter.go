// Package audit produces read-only chain snapshots for the evidence-export
// and reporting layer.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/ledger"
)

// BlockRecord is the exported metadata of one block. It deliberately carries
// no entry payload: snapshots are embedded in public evidence bundles.
type BlockRecord struct {
	Index            uint64 `json:"index"`
	Timestamp        string `json:"timestamp"`
	PrevHash         string `json:"prev_hash"`
	Hash             string `json:"hash"`
	VerificationCode string `json:"verification_code,omitempty"` // empty for genesis
}

// Snapshot is a serializable view of the chain with an integrity attestation
// attached.
type Snapshot struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	TotalBlocks int                       `json:"total_blocks"`
	Attestation *ledger.ChainVerification `json:"attestation"`
	Blocks      []BlockRecord             `json:"blocks"`
}

// Exporter assembles snapshots. It performs no hashing of its own; the
// attestation comes from a single Verifier run.
type Exporter struct {
	store    chain.Store
	verifier *ledger.Verifier
}

// NewExporter creates an Exporter over store, attesting via verifier.
func NewExporter(store chain.Store, verifier *ledger.Verifier) *Exporter {
	return &Exporter{store: store, verifier: verifier}
}

// Snapshot reads the full chain, runs one integrity walk, and returns the
// block metadata with the verification result attached.
func (x *Exporter) Snapshot(ctx context.Context) (*Snapshot, error) {
	attestation, err := x.verifier.VerifyChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("attest chain: %w", err)
	}

	blocks, err := x.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}
	entries, err := x.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	codeByBlock := make(map[uint64]string, len(entries))
	for _, e := range entries {
		codeByBlock[e.BlockIndex] = e.VerificationCode
	}

	records := make([]BlockRecord, 0, len(blocks))
	for _, b := range blocks {
		records = append(records, BlockRecord{
			Index:            b.Index,
			Timestamp:        b.Timestamp,
			PrevHash:         b.PrevHash,
			Hash:             b.Hash,
			VerificationCode: codeByBlock[b.Index],
		})
	}

	return &Snapshot{
		GeneratedAt: time.Now().UTC(),
		TotalBlocks: len(records),
		Attestation: attestation,
		Blocks:      records,
	}, nil
}
