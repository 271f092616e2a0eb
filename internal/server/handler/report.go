// Package handler exposes the ledger over HTTP for the UI and report layers.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/chain"
	"github.com/opencivic/satark/internal/hashing"
	"github.com/opencivic/satark/internal/ledger"
)

// ReportHandler handles incident submission and single-entry verification.
type ReportHandler struct {
	engine   *ledger.Engine
	verifier *ledger.Verifier
	logger   *zap.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(engine *ledger.Engine, verifier *ledger.Verifier, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{engine: engine, verifier: verifier, logger: logger}
}

// Register mounts the report routes on the given router group.
func (h *ReportHandler) Register(rg *gin.RouterGroup) {
	r := rg.Group("/reports")
	{
		r.POST("", h.Submit)
		r.GET("/:id/verify", h.VerifyEntry)
	}
}

// submitRequest is the incident intake payload. Anonymity is not accepted
// from the caller; the engine forces it.
type submitRequest struct {
	ServiceType    string   `json:"service_type" binding:"required"`
	OfficeName     string   `json:"office_name" binding:"required"`
	AmountDemanded *float64 `json:"amount_demanded,omitempty"`
	Location       string   `json:"location,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// Submit handles POST /reports — appends an incident to the ledger and
// returns the receipt.
func (h *ReportHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.engine.Append(c.Request.Context(), ledger.Payload{
		ServiceType:    req.ServiceType,
		OfficeName:     req.OfficeName,
		AmountDemanded: req.AmountDemanded,
		Location:       req.Location,
		Description:    req.Description,
	})
	switch {
	case err == nil:
	case errors.Is(err, hashing.ErrEncoding):
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is not encodable"})
		return
	case errors.Is(err, ledger.ErrNotInitialized):
		h.logger.Error("append before genesis", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger not initialized"})
		return
	case errors.Is(err, ledger.ErrAppendContention):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger busy, please retry"})
		return
	default:
		h.logger.Error("append failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record report"})
		return
	}

	RecordReportAppended()
	c.JSON(http.StatusCreated, receipt)
}

// VerifyEntry handles GET /reports/:id/verify — recomputes the entry's
// payload digest and checks its owning block's linkage.
func (h *ReportHandler) VerifyEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return
	}

	result, err := h.verifier.VerifyEntry(c.Request.Context(), id)
	if errors.Is(err, chain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		h.logger.Error("verify entry", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify report"})
		return
	}

	c.JSON(http.StatusOK, result)
}
