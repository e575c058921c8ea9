package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// ReconciliationHandler handles the statement reconciliation endpoint
type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
	logger                *logrus.Logger
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliationService *services.ReconciliationService, logger *logrus.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService, logger: logger}
}

// Reconcile matches statement lines against stored receipts
// POST /api/v1/admin/reconcile
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	report, err := h.reconciliationService.Reconcile(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "reconcile", req.From+".."+req.To)
	c.JSON(http.StatusOK, report)
}
