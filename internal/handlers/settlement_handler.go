package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// SettlementHandler handles the admin settlement endpoints
type SettlementHandler struct {
	settlementService *services.SettlementService
	logger            *logrus.Logger
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlementService *services.SettlementService, logger *logrus.Logger) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService, logger: logger}
}

// GetReceipt returns a receipt and its tickets
// GET /api/v1/admin/receipts/:receipt_id
func (h *SettlementHandler) GetReceipt(c *gin.Context) {
	receipt, tickets, err := h.settlementService.GetReceipt(c.Param("receipt_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": receipt, "tickets": tickets})
}

// Decide applies a settlement decision to a pending or approved receipt
// POST /api/v1/admin/receipts/:receipt_id/decide
func (h *SettlementHandler) Decide(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	receiptID := c.Param("receipt_id")
	if err := h.settlementService.Decide(receiptID, userCtx.UserID, &req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "receipt_"+string(req.Action), receiptID)
	c.JSON(http.StatusOK, gin.H{"status": "decided", "action": req.Action})
}

// CheckIn marks a confirmed ticket as used at boarding
// POST /api/v1/admin/tickets/:ticket_number/check-in
func (h *SettlementHandler) CheckIn(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ticket, err := h.settlementService.CheckIn(c.Param("ticket_number"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "ticket_check_in", ticket.TicketNumber)
	c.JSON(http.StatusOK, ticket)
}

// ManualSale records an admin-recorded sale with immediate approval
// POST /api/v1/admin/sales
func (h *SettlementHandler) ManualSale(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.ManualSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	resp, err := h.settlementService.ManualSale(userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "manual_sale", resp.ReceiptID)
	c.JSON(http.StatusCreated, resp)
}

// CreateRemittance records the caller's cash handover report
// POST /api/v1/admin/remittances
func (h *SettlementHandler) CreateRemittance(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CreateRemittanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	rem, err := h.settlementService.CreateRemittance(userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rem)
}

// decideRemittanceRequest is the body for a remittance decision
type decideRemittanceRequest struct {
	Approve bool `json:"approve"`
}

// DecideRemittance approves or rejects a pending remittance report
// POST /api/v1/admin/remittances/:remittance_id/decide
func (h *SettlementHandler) DecideRemittance(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req decideRemittanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	remittanceID := c.Param("remittance_id")
	if err := h.settlementService.DecideRemittance(remittanceID, userCtx.UserID, req.Approve); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "remittance_decide", remittanceID)
	c.JSON(http.StatusOK, gin.H{"status": "decided"})
}

// ListRemittances returns the caller's remittance reports
// GET /api/v1/admin/remittances
func (h *SettlementHandler) ListRemittances(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	remittances, err := h.settlementService.ListRemittances(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remittances": remittances})
}
