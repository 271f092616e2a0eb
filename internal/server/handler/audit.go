package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/opencivic/satark/internal/audit"
)

// AuditHandler serves chain snapshots for the evidence-export layer.
type AuditHandler struct {
	exporter *audit.Exporter
	logger   *zap.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(exporter *audit.Exporter, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{exporter: exporter, logger: logger}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/audit/snapshot", h.Snapshot)
}

// Snapshot handles GET /audit/snapshot — returns chain metadata plus an
// integrity attestation. Entry payloads are never included.
func (h *AuditHandler) Snapshot(c *gin.Context) {
	snap, err := h.exporter.Snapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("export snapshot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export snapshot"})
		return
	}

	c.JSON(http.StatusOK, snap)
}
