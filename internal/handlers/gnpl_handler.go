package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// GnplHandler handles the deferred-payment endpoints
type GnplHandler struct {
	gnplService *services.GnplService
	logger      *logrus.Logger
}

// NewGnplHandler creates a new GnplHandler
func NewGnplHandler(gnplService *services.GnplService, logger *logrus.Logger) *GnplHandler {
	return &GnplHandler{gnplService: gnplService, logger: logger}
}

// Originate opens a credit line and issues tickets
// POST /api/v1/gnpl/accounts
func (h *GnplHandler) Originate(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.GnplOriginateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req.CustomerID = userCtx.UserID

	account, tickets, err := h.gnplService.Originate(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account, "tickets": tickets})
}

// GetAccount returns a credit account
// GET /api/v1/gnpl/accounts/:account_id
func (h *GnplHandler) GetAccount(c *gin.Context) {
	account, err := h.gnplService.GetAccount(c.Param("account_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// ListAccounts returns the caller's credit accounts
// GET /api/v1/gnpl/accounts
func (h *GnplHandler) ListAccounts(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	accounts, err := h.gnplService.ListAccounts(userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// Pay applies a payment against an account
// POST /api/v1/gnpl/accounts/:account_id/payments
func (h *GnplHandler) Pay(c *gin.Context) {
	var req models.GnplPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	resp, err := h.gnplService.Pay(c.Param("account_id"), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decideAccountRequest is the body for a credit decision
type decideAccountRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

// Decide approves or rejects a pending credit application
// POST /api/v1/admin/gnpl/accounts/:account_id/decide
func (h *GnplHandler) Decide(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req decideAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	accountID := c.Param("account_id")
	if err := h.gnplService.Decide(accountID, userCtx.UserID, req.Approve, req.Reason); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "gnpl_decide", accountID)
	c.JSON(http.StatusOK, gin.H{"status": "decided"})
}

// AccruePenalties runs penalty accrual on demand. The scheduled job does the
// same thing; the endpoint exists for ops.
// POST /api/v1/admin/gnpl/accrue
func (h *GnplHandler) AccruePenalties(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	count, err := h.gnplService.AccruePenalties(time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "gnpl_accrue", "")
	c.JSON(http.StatusOK, gin.H{"accounts_accrued": count})
}

// SendReminders runs due-date reminders on demand
// POST /api/v1/admin/gnpl/remind
func (h *GnplHandler) SendReminders(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	count, err := h.gnplService.SendReminders(time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "gnpl_remind", "")
	c.JSON(http.StatusOK, gin.H{"reminders_sent": count})
}
