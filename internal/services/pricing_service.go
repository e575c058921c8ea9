package services

import (
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/utils"
)

// PricingService resolves the price of a quantity of tickets for a trip,
// applying at most one voucher. Quotes are advisory snapshots: the amounts
// are re-derived and frozen onto the booking session, and the voucher's use
// is only consumed at admission time.
type PricingService struct {
	tripRepo    *database.TripRepository
	voucherRepo *database.VoucherRepository
	currency    string
	logger      *logrus.Logger
}

// NewPricingService creates a new PricingService
func NewPricingService(
	tripRepo *database.TripRepository,
	voucherRepo *database.VoucherRepository,
	currency string,
	logger *logrus.Logger,
) *PricingService {
	return &PricingService{
		tripRepo:    tripRepo,
		voucherRepo: voucherRepo,
		currency:    currency,
		logger:      logger,
	}
}

// Quote computes the price for quantity tickets on a trip, applying the
// voucher when one is given. An invalid, expired, exhausted or inapplicable
// voucher fails the quote rather than silently pricing without it.
func (s *PricingService) Quote(tripID string, quantity int, voucherCode *string) (*models.PriceQuote, error) {
	if quantity <= 0 {
		return nil, models.NewDomainError(models.ErrInvalidQuantity,
			"quantity must be at least 1")
	}

	trip, err := s.tripRepo.GetByID(tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.NewDomainError(models.ErrNotFound, "trip %s not found", tripID)
	}
	if !trip.IsBookable() {
		return nil, models.NewDomainError(models.ErrTripNotBookable,
			"trip %s is %s", tripID, trip.Status)
	}

	quote := &models.PriceQuote{
		TripID:     trip.ID,
		Quantity:   quantity,
		UnitPrice:  trip.UnitPrice,
		BaseAmount: utils.Round2(trip.UnitPrice * float64(quantity)),
		Currency:   trip.Currency,
	}
	if quote.Currency == "" {
		quote.Currency = s.currency
	}

	if voucherCode != nil && *voucherCode != "" {
		voucher, err := s.voucherRepo.GetByCode(*voucherCode)
		if err != nil {
			return nil, err
		}
		if err := s.checkVoucher(voucher, *voucherCode, tripID); err != nil {
			return nil, err
		}

		quote.VoucherCode = &voucher.Code
		quote.DiscountPercent = voucher.Percent
		quote.DiscountAmount = utils.Round2(quote.BaseAmount * voucher.Percent / 100)
	}

	quote.FinalAmount = utils.Round2(quote.BaseAmount - quote.DiscountAmount)
	return quote, nil
}

func (s *PricingService) checkVoucher(voucher *models.DiscountVoucher, code, tripID string) error {
	if voucher == nil {
		return models.NewDomainError(models.ErrVoucherInvalid, "voucher %s not found", code)
	}
	if voucher.IsExpired() {
		return models.NewDomainError(models.ErrVoucherInvalid, "voucher %s has expired", code)
	}
	if voucher.IsExhausted() {
		return models.NewDomainError(models.ErrVoucherExhausted, "voucher %s has no uses left", code)
	}
	if !voucher.AppliesTo(tripID) {
		return models.NewDomainError(models.ErrVoucherInvalid,
			"voucher %s does not apply to trip %s", code, tripID)
	}
	return nil
}
