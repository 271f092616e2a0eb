package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/hashing"
	"github.com/opencivic/satark/internal/ledger"
)

var ctx = context.Background()

func newEngine(t *testing.T) (*ledger.Engine, *chain.MemoryStore) {
	t.Helper()
	store := chain.NewMemoryStore()
	return ledger.NewEngine(store, zap.NewNop()), store
}

func initialized(t *testing.T) (*ledger.Engine, *chain.MemoryStore) {
	t.Helper()
	engine, store := newEngine(t)
	if err := engine.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	return engine, store
}

func samplePayload() ledger.Payload {
	amount := 500.0
	return ledger.Payload{
		ServiceType:    "passport_renewal",
		OfficeName:     "Regional Passport Office",
		AmountDemanded: &amount,
	}
}

func TestInitialize_genesis(t *testing.T) {
	_, store := initialized(t)

	genesis, err := store.GetBlockByIndex(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if genesis.Index != 0 {
		t.Errorf("genesis index: got %d, want 0", genesis.Index)
	}
	if genesis.PrevHash != chain.GenesisPrevHash {
		t.Errorf("genesis prevHash: got %q, want %q", genesis.PrevHash, chain.GenesisPrevHash)
	}
	if genesis.Hash == "" {
		t.Error("genesis hash is empty")
	}
	recomputed := hashing.BlockDigest(genesis.PrevHash, genesis.DataHash, genesis.Timestamp, genesis.Index)
	if genesis.Hash != recomputed {
		t.Errorf("genesis hash mismatch: stored %q, recomputed %q", genesis.Hash, recomputed)
	}
}

func TestInitialize_idempotent(t *testing.T) {
	engine, store := initialized(t)

	first, _ := store.GetBlockByIndex(ctx, 0)
	if err := engine.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	blocks, err := store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("second Initialize created extra blocks: got %d, want 1", len(blocks))
	}
	if blocks[0].Hash != first.Hash {
		t.Error("second Initialize replaced the genesis block")
	}
}

func TestAppend_beforeInitialize(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Append(ctx, samplePayload())
	if !errors.Is(err, ledger.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestAppend_monotonicLinkage(t *testing.T) {
	engine, store := initialized(t)

	var prevHash string
	genesis, _ := store.GetBlockByIndex(ctx, 0)
	prevHash = genesis.Hash

	for i := uint64(1); i <= 5; i++ {
		receipt, err := engine.Append(ctx, samplePayload())
		if err != nil {
			t.Fatal(err)
		}
		if receipt.Index != i {
			t.Errorf("receipt index: got %d, want %d", receipt.Index, i)
		}
		if receipt.PrevHash != prevHash {
			t.Errorf("block %d prevHash: got %q, want %q", i, receipt.PrevHash, prevHash)
		}
		prevHash = receipt.Hash
	}
}

func TestAppend_receiptConsistentWithStore(t *testing.T) {
	engine, store := initialized(t)

	receipt, err := engine.Append(ctx, samplePayload())
	if err != nil {
		t.Fatal(err)
	}

	block, err := store.GetBlockByIndex(ctx, receipt.Index)
	if err != nil {
		t.Fatal(err)
	}
	if block.Hash != receipt.Hash {
		t.Errorf("stored hash %q != receipt hash %q", block.Hash, receipt.Hash)
	}
	if want := strings.ToUpper(block.Hash[:8]); receipt.VerificationCode != want {
		t.Errorf("verification code: got %q, want %q", receipt.VerificationCode, want)
	}

	entry, err := store.GetEntryByID(ctx, receipt.EntryID)
	if err != nil {
		t.Fatal(err)
	}
	if entry.BlockIndex != receipt.Index {
		t.Errorf("entry block index: got %d, want %d", entry.BlockIndex, receipt.Index)
	}
}

func TestAppend_forcesAnonymity(t *testing.T) {
	engine, store := initialized(t)

	p := samplePayload()
	p.IsAnonymous = false
	receipt, err := engine.Append(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	entry, err := store.GetEntryByID(ctx, receipt.EntryID)
	if err != nil {
		t.Fatal(err)
	}
	var stored map[string]any
	if err := json.Unmarshal(entry.Payload, &stored); err != nil {
		t.Fatal(err)
	}
	if stored["is_anonymous"] != true {
		t.Errorf("is_anonymous: got %v, want true", stored["is_anonymous"])
	}
}

func TestAppend_concurrentNoFork(t *testing.T) {
	engine, store := initialized(t)

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	indices := make(map[uint64]int)
	contention := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			receipt, err := engine.Append(ctx, samplePayload())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				indices[receipt.Index]++
			case errors.Is(err, ledger.ErrAppendContention):
				contention++
			default:
				t.Errorf("unexpected append error: %v", err)
			}
		}()
	}
	wg.Wait()

	for idx, n := range indices {
		if n != 1 {
			t.Errorf("index %d committed %d times — chain forked", idx, n)
		}
	}

	blocks, err := store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(blocks), 1+len(indices); got != want {
		t.Errorf("block count: got %d, want %d (genesis + %d successes)", got, want, len(indices))
	}

	// Whatever was committed must form a valid, gapless chain.
	result, err := ledger.NewVerifier(store).VerifyChain(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("chain invalid after concurrent appends: corrupted=%v", result.CorruptedIndices)
	}

	if got := len(indices) + contention; got != writers {
		t.Errorf("outcomes: %d successes + %d contention != %d writers", len(indices), contention, writers)
	}
}

func TestAppend_sequentialReceiptsChain(t *testing.T) {
	engine, _ := initialized(t)

	r1, err := engine.Append(ctx, samplePayload())
	if err != nil {
		t.Fatal(err)
	}
	r2, err := engine.Append(ctx, samplePayload())
	if err != nil {
		t.Fatal(err)
	}

	if r2.Index != r1.Index+1 {
		t.Errorf("second append index: got %d, want %d", r2.Index, r1.Index+1)
	}
	if r2.PrevHash != r1.Hash {
		t.Errorf("second append prevHash: got %q, want %q", r2.PrevHash, r1.Hash)
	}
}
