// Package hashing provides the digest and canonical-encoding primitives the
// ledger chain is built on.
//
// Every stored hash in the ledger is produced by exactly one of two rules:
// Digest over the canonical encoding of an entry payload, or BlockDigest over
// a block's linkage fields. Both rules are versioned via EncodingVersion;
// changing either rule invalidates every previously computed hash, so a new
// rule must ship as a new version, never as an in-place edit.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// EncodingVersion identifies the canonical encoding rules in effect.
// Version 1: JSON with lexicographically sorted object keys, number literals
// carried through verbatim, standard JSON string escaping, no insignificant
// whitespace.
const EncodingVersion = 1

// ErrEncoding is returned when a payload cannot be canonically encoded,
// e.g. it contains values JSON cannot represent. Payloads reaching the
// ledger boundary must never trigger this; it indicates a caller bug.
var ErrEncoding = errors.New("payload is not canonically encodable")

// Digest returns the lowercase hex SHA-256 of data. It is pure and never fails.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BlockDigest computes a block's own hash from its linkage fields.
// The concatenation rule (pipe-joined prevHash, dataHash, timestamp, index)
// is part of the versioned encoding contract.
func BlockDigest(prevHash, dataHash, timestamp string, index uint64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", prevHash, dataHash, timestamp, index)
	return hex.EncodeToString(h.Sum(nil))
}

// Canonicalize returns the version-1 canonical encoding of payload.
// Semantically identical payloads always encode to identical bytes,
// regardless of struct field order, map iteration order, or caller-side
// formatting.
func Canonicalize(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCanonical emits v in canonical form: sorted keys, compact separators,
// json.Number literals verbatim.
func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		enc, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncoding, err)
		}
		buf.Write(enc)
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrEncoding, err)
			}
			buf.Write(enc)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unexpected value of type %T", ErrEncoding, v)
	}
	return nil
}
