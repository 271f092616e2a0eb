package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/ledger"
)

// LedgerHandler exposes read-only chain endpoints: overview, full
// verification, block metadata, and the public verification-code lookup.
type LedgerHandler struct {
	store    chain.Store
	verifier *ledger.Verifier
	logger   *zap.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(store chain.Store, verifier *ledger.Verifier, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, verifier: verifier, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/ledger")
	{
		l.GET("", h.Overview)
		l.GET("/verify", h.Verify)
		l.GET("/blocks/:idx", h.GetBlock)
	}
	rg.GET("/verify/:code", h.Lookup)
}

// Overview handles GET /ledger — returns the chain height and current tip hash.
func (h *LedgerHandler) Overview(c *gin.Context) {
	tip, err := h.store.GetTip(c.Request.Context())
	if err != nil {
		h.logger.Error("read tip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	if tip == nil {
		c.JSON(http.StatusOK, gin.H{"height": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"height":   tip.Index + 1,
		"tip_hash": tip.Hash,
	})
}

// Verify handles GET /ledger/verify — walks the full chain and reports
// integrity. Corruption is a 200 with valid=false, never an error status.
func (h *LedgerHandler) Verify(c *gin.Context) {
	result, err := h.verifier.VerifyChain(c.Request.Context())
	if err != nil {
		h.logger.Error("verify chain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}

	RecordChainVerification(result.Valid)
	if !result.Valid {
		h.logger.Warn("chain integrity check failed",
			zap.Uint64s("corrupted", result.CorruptedIndices),
		)
	}
	c.JSON(http.StatusOK, result)
}

// GetBlock handles GET /ledger/blocks/:idx — returns one block's metadata.
func (h *LedgerHandler) GetBlock(c *gin.Context) {
	idx, err := strconv.ParseUint(c.Param("idx"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	block, err := h.store.GetBlockByIndex(c.Request.Context(), idx)
	if errors.Is(err, chain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "block not found"})
		return
	}
	if err != nil {
		h.logger.Error("get block", zap.Uint64("idx", idx), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query block"})
		return
	}

	c.JSON(http.StatusOK, block)
}

// Lookup handles GET /verify/:code — the public, minimal-disclosure lookup.
// Unknown codes return found=false with status 200.
func (h *LedgerHandler) Lookup(c *gin.Context) {
	result, err := h.verifier.LookupByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.logger.Error("lookup code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up code"})
		return
	}

	c.JSON(http.StatusOK, result)
}
