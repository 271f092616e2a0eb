// Package client is the Go SDK for the Satark incident ledger API.
//
// It wraps the HTTP endpoints served by satarkd: submitting incident
// reports, verifying chain and entry integrity, resolving public
// verification codes, and exporting audit snapshots.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Receipt is returned after a successful report submission.
type Receipt struct {
	EntryID          string `json:"entry_id"`
	Index            uint64 `json:"index"`
	Hash             string `json:"hash"`
	PrevHash         string `json:"prev_hash"`
	Timestamp        string `json:"timestamp"`
	VerificationCode string `json:"verification_code"`
}

// ReportRequest is the payload for SubmitReport.
type ReportRequest struct {
	ServiceType    string   `json:"service_type"`
	OfficeName     string   `json:"office_name"`
	AmountDemanded *float64 `json:"amount_demanded,omitempty"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// ChainVerification is the result of a full-chain integrity check.
type ChainVerification struct {
	Valid            bool     `json:"valid"`
	TotalBlocks      int      `json:"total_blocks"`
	CorruptedIndices []uint64 `json:"corrupted_indices"`
}

// EntryVerification is the result of verifying a single report.
type EntryVerification struct {
	Valid           bool `json:"valid"`
	HashMatches     bool `json:"hash_matches"`
	ChainContinuity bool `json:"chain_continuity"`
}

// LookupResult is the public, minimal-disclosure view behind a
// verification code.
type LookupResult struct {
	Found       bool      `json:"found"`
	Valid       bool      `json:"valid"`
	BlockIndex  uint64    `json:"block_index,omitempty"`
	ReportedAt  time.Time `json:"reported_at,omitempty"`
	ServiceType string    `json:"service_type,omitempty"`
}

// Block is one ledger block's metadata.
type Block struct {
	Index     uint64 `json:"index"`
	Timestamp string `json:"timestamp"`
	PrevHash  string `json:"prev_hash"`
	DataHash  string `json:"data_hash"`
	Hash      string `json:"hash"`
}

// SnapshotBlock is one block record inside an audit snapshot.
type SnapshotBlock struct {
	Index            uint64 `json:"index"`
	Timestamp        string `json:"timestamp"`
	PrevHash         string `json:"prev_hash"`
	Hash             string `json:"hash"`
	VerificationCode string `json:"verification_code,omitempty"`
}

// Snapshot is an audit export: block metadata plus an integrity attestation.
type Snapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	TotalBlocks int                `json:"total_blocks"`
	Attestation *ChainVerification `json:"attestation"`
	Blocks      []SnapshotBlock    `json:"blocks"`
}

// Client is the Satark SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the satarkd instance at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitReport appends an incident report and returns its receipt.
func (c *Client) SubmitReport(ctx context.Context, req *ReportRequest) (*Receipt, error) {
	var receipt Receipt
	if err := c.do(ctx, http.MethodPost, "/api/v1/reports", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// VerifyChain runs a full-chain integrity check on the server.
func (c *Client) VerifyChain(ctx context.Context) (*ChainVerification, error) {
	var result ChainVerification
	if err := c.do(ctx, http.MethodGet, "/api/v1/ledger/verify", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifyEntry verifies a single report by its entry ID.
func (c *Client) VerifyEntry(ctx context.Context, id string) (*EntryVerification, error) {
	var result EntryVerification
	path := "/api/v1/reports/" + url.PathEscape(id) + "/verify"
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Lookup resolves a public verification code.
func (c *Client) Lookup(ctx context.Context, code string) (*LookupResult, error) {
	var result LookupResult
	path := "/api/v1/verify/" + url.PathEscape(code)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBlock fetches one block's metadata by index.
func (c *Client) GetBlock(ctx context.Context, index uint64) (*Block, error) {
	var block Block
	path := fmt.Sprintf("/api/v1/ledger/blocks/%d", index)
	if err := c.do(ctx, http.MethodGet, path, nil, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// ExportSnapshot fetches the audit snapshot.
func (c *Client) ExportSnapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/audit/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// do performs one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
