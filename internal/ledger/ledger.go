// Package ledger implements the writer-facing API of the tamper-evident
// incident ledger: genesis bootstrap, append-only insertion with hash
// linking, and read-only verification.
//
// The Engine is the single writer. Every append computes the new block's
// hash from its parent's hash, the payload digest, the timestamp and the
// index, so any later mutation of a committed record is detectable by the
// Verifier without trusting the store.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/opencivic/satark/internal/hashing"
)

// ErrNotInitialized is returned by Append when no genesis block exists yet.
// Callers must run Initialize first.
var ErrNotInitialized = errors.New("ledger not initialized: no genesis block")

// ErrAppendContention is returned when an append exhausted its conflict
// retries. The ledger is unchanged; the caller may retry later.
var ErrAppendContention = errors.New("append retries exhausted under write contention")

// Payload is a reported bribe-solicitation incident as submitted at the
// ledger boundary. IsAnonymous is forced true on every append regardless of
// what the caller sent.
type Payload struct {
	ServiceType    string    `json:"service_type"`
	OfficeName     string    `json:"office_name"`
	AmountDemanded *float64  `json:"amount_demanded,omitempty"`
	Location       string    `json:"location,omitempty"`
	Description    string    `json:"description,omitempty"`
	ReportedAt     time.Time `json:"reported_at"`
	IsAnonymous    bool      `json:"is_anonymous"`
}

// Receipt is returned to the caller after a successful append. It carries
// everything needed to later verify the committed record.
type Receipt struct {
	EntryID          uuid.UUID `json:"entry_id"`
	Index            uint64    `json:"index"`
	Hash             string    `json:"hash"`
	PrevHash         string    `json:"prev_hash"`
	Timestamp        string    `json:"timestamp"`
	VerificationCode string    `json:"verification_code"`
}

// genesisMarker is the fixed payload the genesis block's DataHash is
// computed over. Changing it would re-anchor every chain, so it is frozen.
var genesisMarker = map[string]any{
	"ledger":   "satark-incident-ledger",
	"encoding": hashing.EncodingVersion,
}
