package hashing_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/opencivic/satark/internal/hashing"
)

// sha256("") — fixed vector.
const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestDigest_knownVector(t *testing.T) {
	if got := hashing.Digest(nil); got != emptyDigest {
		t.Errorf("Digest(nil): got %q, want %q", got, emptyDigest)
	}
	if got := hashing.Digest([]byte{}); got != emptyDigest {
		t.Errorf("Digest(empty): got %q, want %q", got, emptyDigest)
	}
}

func TestDigest_deterministic(t *testing.T) {
	a := hashing.Digest([]byte("passport_renewal"))
	b := hashing.Digest([]byte("passport_renewal"))
	if a != b {
		t.Errorf("same input produced different digests: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length: got %d, want 64 hex chars", len(a))
	}
}

func TestCanonicalize_keyOrderIndependent(t *testing.T) {
	a, err := hashing.Canonicalize(json.RawMessage(`{"office":"RTO Pune","service":"license","amount":500}`))
	if err != nil {
		t.Fatal(err)
	}
	b, err := hashing.Canonicalize(json.RawMessage(`{"amount":500,"service":"license","office":"RTO Pune"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("key order changed encoding:\n  %s\n  %s", a, b)
	}
}

func TestCanonicalize_sortsNestedKeys(t *testing.T) {
	got, err := hashing.Canonicalize(json.RawMessage(`{"z":{"b":1,"a":2},"a":[{"y":1,"x":2}]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":[{"x":2,"y":1}],"z":{"a":2,"b":1}}`
	if string(got) != want {
		t.Errorf("canonical form: got %s, want %s", got, want)
	}
}

func TestCanonicalize_preservesNumberLiterals(t *testing.T) {
	got, err := hashing.Canonicalize(json.RawMessage(`{"amount":500.10}`))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"amount":500.10}`
	if string(got) != want {
		t.Errorf("number literal rewritten: got %s, want %s", got, want)
	}
}

func TestCanonicalize_structAndMapAgree(t *testing.T) {
	type payload struct {
		Service string `json:"service"`
		Amount  int    `json:"amount"`
	}
	a, err := hashing.Canonicalize(payload{Service: "license", Amount: 500})
	if err != nil {
		t.Fatal(err)
	}
	b, err := hashing.Canonicalize(map[string]any{"amount": 500, "service": "license"})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("struct and map encodings differ:\n  %s\n  %s", a, b)
	}
}

func TestCanonicalize_idempotent(t *testing.T) {
	once, err := hashing.Canonicalize(json.RawMessage(`{"b":true,"a":null,"c":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	twice, err := hashing.Canonicalize(json.RawMessage(once))
	if err != nil {
		t.Fatal(err)
	}
	if string(once) != string(twice) {
		t.Errorf("re-canonicalizing changed bytes:\n  %s\n  %s", once, twice)
	}
}

func TestCanonicalize_nonSerializable(t *testing.T) {
	_, err := hashing.Canonicalize(map[string]any{"f": func() {}})
	if !errors.Is(err, hashing.ErrEncoding) {
		t.Errorf("expected ErrEncoding, got %v", err)
	}
}

func TestBlockDigest_deterministic(t *testing.T) {
	a := hashing.BlockDigest("0", emptyDigest, "2026-08-29T10:00:00Z", 0)
	b := hashing.BlockDigest("0", emptyDigest, "2026-08-29T10:00:00Z", 0)
	if a != b {
		t.Errorf("same fields produced different digests: %q vs %q", a, b)
	}
	if c := hashing.BlockDigest("0", emptyDigest, "2026-08-29T10:00:00Z", 1); c == a {
		t.Error("changing index did not change digest")
	}
}
