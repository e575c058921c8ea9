package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/models"
)

// TripHandler handles trip and voucher administration endpoints
type TripHandler struct {
	tripRepo        *database.TripRepository
	voucherRepo     *database.VoucherRepository
	defaultCurrency string
	logger          *logrus.Logger
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(
	tripRepo *database.TripRepository,
	voucherRepo *database.VoucherRepository,
	defaultCurrency string,
	logger *logrus.Logger,
) *TripHandler {
	return &TripHandler{
		tripRepo:        tripRepo,
		voucherRepo:     voucherRepo,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// CreateTrip creates a trip with its full seat inventory available
// POST /api/v1/admin/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	departureAt, err := time.Parse(time.RFC3339, req.DepartureAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departure_at must be RFC3339"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	trip := &models.Trip{
		Name:        req.Name,
		Origin:      req.Origin,
		Destination: req.Destination,
		UnitPrice:   req.UnitPrice,
		Currency:    currency,
		TotalSeats:  req.TotalSeats,
		DepartureAt: departureAt,
	}
	trip.AvailableSeats = trip.TotalSeats
	if err := trip.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tripRepo.Create(trip); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "trip_create", trip.ID)
	c.JSON(http.StatusCreated, trip)
}

// GetTrip returns a trip
// GET /api/v1/trips/:trip_id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripRepo.GetByID(c.Param("trip_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if trip == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "trip not found"})
		return
	}
	c.JSON(http.StatusOK, trip)
}

// ListTrips returns bookable trips, soonest departure first
// GET /api/v1/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	status := models.TripStatus(c.DefaultQuery("status", string(models.TripStatusActive)))
	trips, err := h.tripRepo.ListByStatus(status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trips": trips})
}

// UpdateTripStatus moves a trip through its lifecycle
// PUT /api/v1/admin/trips/:trip_id/status
func (h *TripHandler) UpdateTripStatus(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req struct {
		Status models.TripStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	tripID := c.Param("trip_id")
	if err := h.tripRepo.UpdateStatus(tripID, req.Status); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "trip_status_"+string(req.Status), tripID)
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// createVoucherRequest is the body for voucher creation
type createVoucherRequest struct {
	Code       string  `json:"code" binding:"required"`
	Percent    float64 `json:"percent" binding:"required,gt=0,lte=100"`
	UsageLimit int     `json:"usage_limit" binding:"required,min=1"`
	TripID     *string `json:"trip_id,omitempty"`
	ExpiresAt  *string `json:"expires_at,omitempty"` // RFC3339
}

// CreateVoucher creates a discount voucher
// POST /api/v1/admin/vouchers
func (h *TripHandler) CreateVoucher(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req createVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	voucher := &models.DiscountVoucher{
		Code:       req.Code,
		Percent:    req.Percent,
		UsageLimit: req.UsageLimit,
		TripID:     req.TripID,
	}
	if req.ExpiresAt != nil {
		expiresAt, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expires_at must be RFC3339"})
			return
		}
		voucher.ExpiresAt = &expiresAt
	}

	if err := h.voucherRepo.Create(voucher); err != nil {
		respondError(c, h.logger, err)
		return
	}

	logAdminAction(c, h.logger, userCtx.UserID, "voucher_create", voucher.Code)
	c.JSON(http.StatusCreated, voucher)
}
