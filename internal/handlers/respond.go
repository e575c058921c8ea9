package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/models"
)

// respondError translates a service error to an HTTP response. Validation
// failures map to 400, races and terminal-state conflicts to 409, lookups to
// 404, and anything else is a 500 with the detail kept out of the body.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if de, ok := err.(*models.DomainError); ok {
		c.JSON(statusForKind(de.Kind), gin.H{
			"error":   string(de.Kind),
			"message": de.Message,
		})
		return
	}

	logger.WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   string(models.ErrInternal),
		"message": "An internal error occurred",
	})
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrNotFound:
		return http.StatusNotFound
	case models.ErrDuplicateReference, models.ErrSoldOut, models.ErrVoucherExhausted,
		models.ErrAlreadyDecided, models.ErrRollbackBlocked, models.ErrOverpayment,
		models.ErrSessionConflict, models.ErrTripNotBookable, models.ErrTicketNotCheckable:
		return http.StatusConflict
	case models.ErrInternal:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
