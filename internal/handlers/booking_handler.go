package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/services"
)

// BookingHandler handles the customer-facing booking endpoints
type BookingHandler struct {
	bookingService *services.BookingService
	pricingService *services.PricingService
	gatewayService *services.GatewayService
	fileStore      services.FileStore
	maxAttachment  int64
	logger         *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	bookingService *services.BookingService,
	pricingService *services.PricingService,
	gatewayService *services.GatewayService,
	fileStore services.FileStore,
	maxAttachment int64,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		bookingService: bookingService,
		pricingService: pricingService,
		gatewayService: gatewayService,
		fileStore:      fileStore,
		maxAttachment:  maxAttachment,
		logger:         logger,
	}
}

// allowedAttachmentTypes bounds what a proof-of-payment upload may be
var allowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
}

// UploadAttachment stores a proof-of-payment file and returns its URL for
// use in a receipt submission
// POST /api/v1/bookings/attachments
func (h *BookingHandler) UploadAttachment(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a file field is required"})
		return
	}
	if fileHeader.Size > h.maxAttachment {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "attachment exceeds the size limit",
		})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !allowedAttachmentTypes[mimeType] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "attachment must be a JPEG, PNG or PDF",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxAttachment+1))
	if err != nil || int64(len(data)) > h.maxAttachment {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "attachment exceeds the size limit",
		})
		return
	}

	url, err := h.fileStore.Store(data, mimeType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment_url": url})
}

// Quote returns the price for a quantity of tickets on a trip
// GET /api/v1/pricing/quote?trip_id=...&quantity=...&voucher_code=...
func (h *BookingHandler) Quote(c *gin.Context) {
	tripID := c.Query("trip_id")
	if tripID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "trip_id is required"})
		return
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be an integer"})
		return
	}

	var voucherCode *string
	if code := c.Query("voucher_code"); code != "" {
		voucherCode = &code
	}

	quote, err := h.pricingService.Quote(tripID, quantity, voucherCode)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// StartBooking opens a booking session
// POST /api/v1/bookings/start
func (h *BookingHandler) StartBooking(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.StartBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req.CustomerID = userCtx.UserID

	resp, err := h.bookingService.StartBooking(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CancelSession cancels the caller's open booking session
// POST /api/v1/bookings/sessions/:session_id/cancel
func (h *BookingHandler) CancelSession(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	if err := h.bookingService.CancelSession(c.Param("session_id"), userCtx.UserID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// SubmitReceipt admits a proof-of-payment and issues tickets
// POST /api/v1/bookings/receipts
func (h *BookingHandler) SubmitReceipt(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req.CustomerID = userCtx.UserID

	resp, err := h.bookingService.SubmitReceipt(&req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// gatewayWebhookPayload is the settlement notification the gateway posts
type gatewayWebhookPayload struct {
	TxRef     string  `json:"tx_ref"`
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
}

// GatewayWebhook receives hosted-checkout settlement notifications
// POST /api/v1/payments/webhook
func (h *BookingHandler) GatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader("X-Gateway-Signature")
	if !h.gatewayService.VerifyWebhookSignature(body, signature) {
		h.logger.WithField("ip", c.ClientIP()).Warn("Webhook with bad signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload gatewayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Status != "success" {
		h.logger.WithFields(logrus.Fields{
			"tx_ref": payload.TxRef,
			"status": payload.Status,
		}).Info("Ignoring non-success webhook")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	gatewayRef := payload.Reference
	if gatewayRef == "" {
		gatewayRef = payload.TxRef
	}
	if err := h.bookingService.ConfirmGatewayPayment(payload.TxRef, gatewayRef, payload.Amount); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}
