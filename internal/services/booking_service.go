package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/utils"
	"github.com/tripline/booking-backend/pkg/reference"
)

// Validation score bookkeeping. Every advisory flag deducts from a perfect
// score; the score is stored for admin triage, it never blocks admission.
const (
	scorePerfect = 100
	scorePerFlag = 15

	flagAmountMismatch    = "provider_amount_mismatch"
	flagReferenceMismatch = "provider_reference_mismatch"
	flagDateMismatch      = "provider_date_mismatch"
	flagProviderMismatch  = "provider_method_mismatch"
	flagNoAttachment      = "no_attachment"
	flagOverpaid          = "overpaid"
)

// BookingService runs the customer-facing booking flow: opening a session
// against a price quote and admitting the proof-of-payment that closes it.
type BookingService struct {
	tripRepo    *database.TripRepository
	sessionRepo *database.SessionRepository
	receiptRepo *database.ReceiptRepository
	pricing     *PricingService
	gateway     PaymentInitiator
	config      config.BookingConfig
	returnURL   string
	logger      *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	tripRepo *database.TripRepository,
	sessionRepo *database.SessionRepository,
	receiptRepo *database.ReceiptRepository,
	pricing *PricingService,
	gateway PaymentInitiator,
	cfg config.BookingConfig,
	returnURL string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tripRepo:    tripRepo,
		sessionRepo: sessionRepo,
		receiptRepo: receiptRepo,
		pricing:     pricing,
		gateway:     gateway,
		config:      cfg,
		returnURL:   returnURL,
		logger:      logger,
	}
}

// StartBooking opens a booking session for the customer. Any prior open
// session the customer has is cancelled in the same transaction, so at most
// one non-terminal session exists per customer at any time. For automated
// checkout the response carries the gateway redirect URL.
func (s *BookingService) StartBooking(req *models.StartBookingRequest) (*models.StartBookingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, models.NewDomainError(models.ErrInvalidQuantity, "%s", err.Error())
	}
	if req.Quantity > s.config.MaxTicketsPerBooking {
		return nil, models.NewDomainError(models.ErrInvalidQuantity,
			"maximum %d tickets can be booked at once", s.config.MaxTicketsPerBooking)
	}

	quote, err := s.pricing.Quote(req.TripID, req.Quantity, req.VoucherCode)
	if err != nil {
		return nil, err
	}

	// Advisory availability check. The authoritative check runs at issuance.
	trip, err := s.tripRepo.GetByID(req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.AvailableSeats < req.Quantity {
		return nil, models.NewDomainError(models.ErrSoldOut,
			"trip %s has %d seats left", req.TripID, trip.AvailableSeats)
	}

	session := &models.BookingSession{
		CustomerID:    req.CustomerID,
		TripID:        req.TripID,
		PaymentMethod: req.PaymentMethod,
		Quantity:      req.Quantity,
		Status:        models.SessionStatusAwaitingReceipt,
	}
	if req.PaymentMethod.IsAutomated() {
		session.Status = models.SessionStatusAwaitingAutoPayment
	}
	session.ApplySnapshot(quote)

	if err := s.sessionRepo.Replace(session); err != nil {
		return nil, err
	}

	resp := &models.StartBookingResponse{
		SessionID: session.ID,
		Status:    session.Status,
		Quote:     *quote,
	}

	if req.PaymentMethod.IsAutomated() {
		redirectURL, err := s.gateway.Initiate(quote.FinalAmount, quote.Currency, session.ID, s.returnURL)
		if err != nil {
			// The session stays open; the customer can retry or switch to a
			// manual method.
			s.logger.WithFields(logrus.Fields{
				"session_id": session.ID,
				"error":      err.Error(),
			}).Error("Failed to initiate hosted checkout")
			return nil, fmt.Errorf("failed to start checkout: %w", err)
		}
		resp.RedirectURL = &redirectURL
	}

	s.logger.WithFields(logrus.Fields{
		"session_id":   session.ID,
		"customer_id":  req.CustomerID,
		"trip_id":      req.TripID,
		"method":       req.PaymentMethod,
		"final_amount": quote.FinalAmount,
	}).Info("Booking session opened")

	return resp, nil
}

// CancelSession cancels the customer's session if it is still open
func (s *BookingService) CancelSession(sessionID, customerID string) error {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil || session.CustomerID != customerID {
		return models.NewDomainError(models.ErrNotFound, "session %s not found", sessionID)
	}
	return s.sessionRepo.Cancel(sessionID)
}

// SubmitReceipt validates and admits a claimed proof-of-payment. The checks
// run in a fixed order, each with its own failure kind, so a customer always
// learns the first thing wrong with the submission. On success the receipt,
// its tickets, the seat decrement, the voucher use and the session completion
// commit as one transaction.
func (s *BookingService) SubmitReceipt(req *models.SubmitReceiptRequest) (*models.SubmitReceiptResponse, error) {
	flags := []string{}

	// 1. A usable reference, typed or extracted from the receipt link.
	normalized, parsed, err := s.resolveReference(req)
	if err != nil {
		return nil, err
	}

	// 2. Provider link fields must agree with the typed values. Strict mode
	// blocks on conflict; otherwise conflicts become advisory flags.
	if parsed != nil {
		conflicts := s.linkConflicts(req, normalized, parsed)
		if len(conflicts) > 0 && s.config.StrictValidation {
			return nil, models.NewDomainError(models.ErrValidationMismatch,
				"receipt link fields conflict with submitted values: %v", conflicts)
		}
		flags = append(flags, conflicts...)
	}

	// 3. Trip bookable with enough seats. Advisory here, authoritative at
	// issuance.
	trip, err := s.tripRepo.GetByID(req.TripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, models.NewDomainError(models.ErrNotFound, "trip %s not found", req.TripID)
	}
	if !trip.IsBookable() {
		return nil, models.NewDomainError(models.ErrTripNotBookable,
			"trip %s is %s", req.TripID, trip.Status)
	}

	session, err := s.sessionRepo.GetOpen(req.CustomerID, req.TripID, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	quote, err := s.resolveQuote(req, session)
	if err != nil {
		return nil, err
	}
	if trip.AvailableSeats < quote.Quantity {
		return nil, models.NewDomainError(models.ErrSoldOut,
			"trip %s has %d seats left", req.TripID, trip.AvailableSeats)
	}

	// 4. Claimed receipt date must fall inside the trip's sale window. A
	// typed date disagreeing with the link-parsed one is advisory only.
	receiptDate, err := s.resolveReceiptDate(req, parsed, trip)
	if err != nil {
		return nil, err
	}
	if parsed != nil && parsed.Date != nil && receiptDate != nil && !sameDay(*receiptDate, *parsed.Date) {
		flags = append(flags, flagDateMismatch)
	}

	// 5. The claimed amount must cover the resolved final amount.
	if !utils.AmountCovers(req.PaidAmount, quote.FinalAmount) {
		return nil, models.NewDomainError(models.ErrInsufficientAmount,
			"paid %s does not cover %s", utils.FormatMoney(req.PaidAmount), utils.FormatMoney(quote.FinalAmount))
	}
	if req.PaidAmount > quote.FinalAmount+utils.AmountEpsilon {
		flags = append(flags, flagOverpaid)
	}
	if req.AttachmentURL == nil && req.ReceiptLink == "" {
		flags = append(flags, flagNoAttachment)
	}

	receipt := &models.Receipt{
		Reference:      normalized,
		CustomerID:     req.CustomerID,
		TripID:         req.TripID,
		PaymentMethod:  req.PaymentMethod,
		Quantity:       quote.Quantity,
		BaseAmount:     quote.BaseAmount,
		DiscountAmount: quote.DiscountAmount,
		FinalAmount:    quote.FinalAmount,
		PaidAmount:     req.PaidAmount,
		Currency:       quote.Currency,
		AttachmentURL:  req.AttachmentURL,
		ReceiptDate:    receiptDate,
		Score:          scoreFromFlags(flags),
		Flags:          flags,
		ApprovalStatus: models.ApprovalStatusPending,
	}

	// 6. Reference uniqueness and everything transactional: seats, voucher,
	// receipt, tickets, session. One commit or nothing.
	var voucherCode *string
	var sessionID *string
	if session != nil {
		voucherCode = session.VoucherCode
		sessionID = &session.ID
	}
	tickets, err := s.receiptRepo.CreateWithTickets(receipt, voucherCode, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"receipt_id":  receipt.ID,
		"reference":   receipt.Reference,
		"customer_id": receipt.CustomerID,
		"trip_id":     receipt.TripID,
		"quantity":    receipt.Quantity,
		"score":       receipt.Score,
		"flags":       flags,
	}).Info("Receipt admitted")

	return &models.SubmitReceiptResponse{
		ReceiptID: receipt.ID,
		Reference: receipt.Reference,
		Score:     receipt.Score,
		Flags:     flags,
		Tickets:   tickets,
	}, nil
}

// ConfirmGatewayPayment admits the receipt-equivalent for a hosted-checkout
// settlement reported by the gateway webhook. The gateway already verified
// the money, so the receipt is approved in the same breath.
func (s *BookingService) ConfirmGatewayPayment(sessionID, gatewayReference string, amount float64) error {
	session, err := s.sessionRepo.GetByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return models.NewDomainError(models.ErrNotFound, "session %s not found", sessionID)
	}
	if session.Status.IsTerminal() {
		// Webhook redelivery after a successful confirmation.
		s.logger.WithField("session_id", sessionID).Info("Ignoring webhook for settled session")
		return nil
	}
	if !utils.AmountCovers(amount, session.FinalAmount) {
		return models.NewDomainError(models.ErrInsufficientAmount,
			"gateway settled %s for a session of %s",
			utils.FormatMoney(amount), utils.FormatMoney(session.FinalAmount))
	}

	normalized, err := reference.Normalize(gatewayReference)
	if err != nil {
		return models.NewDomainError(models.ErrReferenceRequired, "gateway reference is unusable")
	}

	receipt := &models.Receipt{
		Reference:      normalized,
		CustomerID:     session.CustomerID,
		TripID:         session.TripID,
		PaymentMethod:  session.PaymentMethod,
		Quantity:       session.Quantity,
		BaseAmount:     session.BaseAmount,
		DiscountAmount: session.DiscountAmount,
		FinalAmount:    session.FinalAmount,
		PaidAmount:     amount,
		Currency:       session.Currency,
		Score:          scorePerfect,
		Flags:          []string{},
		ApprovalStatus: models.ApprovalStatusPending,
	}

	if _, err := s.receiptRepo.CreateWithTickets(receipt, session.VoucherCode, &session.ID); err != nil {
		return err
	}
	if err := s.receiptRepo.Approve(receipt.ID, "gateway"); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"receipt_id": receipt.ID,
		"reference":  normalized,
	}).Info("Gateway payment confirmed")
	return nil
}

// resolveReference normalizes the typed reference or falls back to the one
// extracted from the receipt link.
func (s *BookingService) resolveReference(req *models.SubmitReceiptRequest) (string, *reference.ParsedLink, error) {
	var parsed *reference.ParsedLink
	if req.ReceiptLink != "" {
		p, err := reference.ParseLink(req.ReceiptLink)
		if err != nil {
			s.logger.WithField("error", err.Error()).Debug("Receipt link did not parse")
		} else {
			parsed = p
		}
	}

	if req.Reference != "" {
		normalized, err := reference.Normalize(req.Reference)
		if err == nil {
			return normalized, parsed, nil
		}
	}
	if parsed != nil && parsed.Reference != "" {
		return parsed.Reference, parsed, nil
	}
	return "", nil, models.NewDomainError(models.ErrReferenceRequired,
		"a payment reference is required, typed or via receipt link")
}

// linkConflicts compares provider-parsed fields with the typed submission
func (s *BookingService) linkConflicts(req *models.SubmitReceiptRequest, normalized string, parsed *reference.ParsedLink) []string {
	conflicts := []string{}
	if parsed.Reference != "" && parsed.Reference != normalized {
		conflicts = append(conflicts, flagReferenceMismatch)
	}
	if parsed.Amount != nil && !utils.AmountsEqual(*parsed.Amount, req.PaidAmount) {
		conflicts = append(conflicts, flagAmountMismatch)
	}
	if providerForMethod(req.PaymentMethod) != parsed.Provider {
		conflicts = append(conflicts, flagProviderMismatch)
	}
	return conflicts
}

// resolveQuote returns the pricing snapshot the admission settles against:
// the open session's snapshot when one exists, a fresh quote otherwise.
func (s *BookingService) resolveQuote(req *models.SubmitReceiptRequest, session *models.BookingSession) (*models.PriceQuote, error) {
	if session != nil {
		return &models.PriceQuote{
			TripID:          session.TripID,
			Quantity:        session.Quantity,
			BaseAmount:      session.BaseAmount,
			DiscountAmount:  session.DiscountAmount,
			FinalAmount:     session.FinalAmount,
			DiscountPercent: session.DiscountPercent,
			VoucherCode:     session.VoucherCode,
			Currency:        session.Currency,
		}, nil
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	return s.pricing.Quote(req.TripID, quantity, nil)
}

// resolveReceiptDate validates the claimed receipt date against the trip's
// sale window. The typed date wins over the link-parsed one; a date-only
// conflict between the two never blocks.
func (s *BookingService) resolveReceiptDate(req *models.SubmitReceiptRequest, parsed *reference.ParsedLink, trip *models.Trip) (*time.Time, error) {
	var receiptDate *time.Time
	if req.ReceiptDate != nil && *req.ReceiptDate != "" {
		t, err := time.Parse("2006-01-02", *req.ReceiptDate)
		if err != nil {
			return nil, models.NewDomainError(models.ErrReceiptDateOutOfRange,
				"receipt date must be YYYY-MM-DD")
		}
		receiptDate = &t
	} else if parsed != nil && parsed.Date != nil {
		receiptDate = parsed.Date
	}

	if receiptDate == nil {
		return nil, nil
	}

	from, to := trip.ReceiptDateWindow()
	// Compare at day granularity; a receipt dated the departure day is fine.
	dayStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	dayEnd := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, to.Location())
	if receiptDate.Before(dayStart) || receiptDate.After(dayEnd) {
		return nil, models.NewDomainError(models.ErrReceiptDateOutOfRange,
			"receipt date %s is outside the trip's sale window", receiptDate.Format("2006-01-02"))
	}
	return receiptDate, nil
}

func providerForMethod(method models.PaymentMethod) reference.Provider {
	switch method {
	case models.PaymentMethodTelebirr:
		return reference.ProviderTelebirr
	case models.PaymentMethodCBE:
		return reference.ProviderCBE
	}
	return ""
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func scoreFromFlags(flags []string) int {
	score := scorePerfect - len(flags)*scorePerFlag
	if score < 0 {
		score = 0
	}
	return score
}
