package services

import (
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/utils"
	"github.com/tripline/booking-backend/pkg/reference"
)

// SettlementService runs the admin side of the ledger: adjudicating pending
// receipts, checking tickets in at boarding, recording manual sales and
// deciding cash remittances.
type SettlementService struct {
	receiptRepo    *database.ReceiptRepository
	ticketRepo     *database.TicketRepository
	remittanceRepo *database.RemittanceRepository
	pricing        *PricingService
	notifier       Notifier
	config         config.BookingConfig
	logger         *logrus.Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(
	receiptRepo *database.ReceiptRepository,
	ticketRepo *database.TicketRepository,
	remittanceRepo *database.RemittanceRepository,
	pricing *PricingService,
	notifier Notifier,
	cfg config.BookingConfig,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		receiptRepo:    receiptRepo,
		ticketRepo:     ticketRepo,
		remittanceRepo: remittanceRepo,
		pricing:        pricing,
		notifier:       notifier,
		config:         cfg,
		logger:         logger,
	}
}

// Decide applies an admin settlement decision to a receipt. Approve and
// reject require a pending receipt; rollback requires an approved one plus a
// ticket number belonging to it as the confirmation gate. Concurrent
// decisions on the same receipt admit exactly one winner.
func (s *SettlementService) Decide(receiptID, actor string, req *models.DecideRequest) error {
	var err error
	switch req.Action {
	case models.DecisionApprove:
		err = s.receiptRepo.Approve(receiptID, actor)
	case models.DecisionReject:
		if req.Reason == nil || *req.Reason == "" {
			return models.NewDomainError(models.ErrValidationMismatch,
				"a reason is required to reject a receipt")
		}
		err = s.receiptRepo.Reject(receiptID, actor, *req.Reason, s.config.RestoreSeatsOnReject)
	case models.DecisionRollback:
		if req.ConfirmTicketNumber == nil || *req.ConfirmTicketNumber == "" {
			return models.NewDomainError(models.ErrRollbackConfirmation,
				"rollback requires a ticket number belonging to the receipt")
		}
		err = s.receiptRepo.Rollback(receiptID, actor, *req.ConfirmTicketNumber)
	default:
		return models.NewDomainError(models.ErrValidationMismatch,
			"unknown decision action %q", req.Action)
	}
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"receipt_id": receiptID,
		"action":     req.Action,
		"actor":      actor,
	}).Info("Settlement decision applied")

	s.notifyDecision(receiptID, req.Action)
	return nil
}

// notifyDecision tells the customer what happened to their receipt. Failures
// are logged; the decision already committed.
func (s *SettlementService) notifyDecision(receiptID string, action models.DecisionAction) {
	receipt, err := s.receiptRepo.GetByID(receiptID)
	if err != nil || receipt == nil {
		return
	}
	message := "Your payment was confirmed and your tickets are ready."
	if action == models.DecisionReject {
		message = "Your payment could not be verified. Please contact support."
	}
	if action == models.DecisionRollback {
		message = "Your booking is back under review."
	}
	if err := s.notifier.Notify(receipt.CustomerID, "settlement_"+string(action), message); err != nil {
		s.logger.WithFields(logrus.Fields{
			"receipt_id": receiptID,
			"error":      err.Error(),
		}).Warn("Failed to notify customer of settlement decision")
	}
}

// GetReceipt returns a receipt and its tickets
func (s *SettlementService) GetReceipt(receiptID string) (*models.Receipt, []models.Ticket, error) {
	receipt, err := s.receiptRepo.GetByID(receiptID)
	if err != nil {
		return nil, nil, err
	}
	if receipt == nil {
		return nil, nil, models.NewDomainError(models.ErrNotFound, "receipt %s not found", receiptID)
	}
	tickets, err := s.ticketRepo.GetByReceiptID(receiptID)
	if err != nil {
		return nil, nil, err
	}
	return receipt, tickets, nil
}

// CheckIn marks a confirmed ticket as used at boarding. Scanning the same
// ticket twice succeeds idempotently; a pending or cancelled ticket fails
// closed.
func (s *SettlementService) CheckIn(ticketNumber string) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.CheckIn(ticketNumber)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"ticket_number": ticketNumber,
		"trip_id":       ticket.TripID,
	}).Info("Ticket checked in")
	return ticket, nil
}

// ManualSale records an admin-recorded sale. It bypasses the customer
// session flow but rides the same atomic admission path, and the receipt is
// approved immediately since the admin witnessed the payment.
func (s *SettlementService) ManualSale(actor string, req *models.ManualSaleRequest) (*models.SubmitReceiptResponse, error) {
	if req.Quantity <= 0 || req.Quantity > s.config.MaxTicketsPerBooking {
		return nil, models.NewDomainError(models.ErrInvalidQuantity,
			"quantity must be between 1 and %d", s.config.MaxTicketsPerBooking)
	}

	quote, err := s.pricing.Quote(req.TripID, req.Quantity, nil)
	if err != nil {
		return nil, err
	}
	if !utils.AmountCovers(req.PaidAmount, quote.FinalAmount) {
		return nil, models.NewDomainError(models.ErrInsufficientAmount,
			"paid %s does not cover %s", utils.FormatMoney(req.PaidAmount), utils.FormatMoney(quote.FinalAmount))
	}

	normalized, err := s.manualReference(req.Reference)
	if err != nil {
		return nil, err
	}

	receipt := &models.Receipt{
		Reference:      normalized,
		CustomerID:     req.CustomerID,
		TripID:         req.TripID,
		PaymentMethod:  req.PaymentMethod,
		Quantity:       req.Quantity,
		BaseAmount:     quote.BaseAmount,
		DiscountAmount: quote.DiscountAmount,
		FinalAmount:    quote.FinalAmount,
		PaidAmount:     req.PaidAmount,
		Currency:       quote.Currency,
		Score:          scorePerfect,
		Flags:          []string{},
		ApprovalStatus: models.ApprovalStatusPending,
	}

	tickets, err := s.receiptRepo.CreateWithTickets(receipt, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := s.receiptRepo.Approve(receipt.ID, actor); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"receipt_id": receipt.ID,
		"actor":      actor,
		"trip_id":    req.TripID,
		"quantity":   req.Quantity,
	}).Info("Manual sale recorded")

	return &models.SubmitReceiptResponse{
		ReceiptID: receipt.ID,
		Reference: receipt.Reference,
		Score:     receipt.Score,
		Tickets:   tickets,
	}, nil
}

// manualReference normalizes the admin-typed reference, or mints one for
// cash sales that have no external reference.
func (s *SettlementService) manualReference(raw string) (string, error) {
	if raw != "" {
		normalized, err := reference.Normalize(raw)
		if err != nil {
			return "", models.NewDomainError(models.ErrReferenceRequired,
				"reference is unusable after normalization")
		}
		return normalized, nil
	}
	return reference.Mint("CASH")
}

// CreateRemittance records an admin's self-reported cash handover
func (s *SettlementService) CreateRemittance(adminID string, req *models.CreateRemittanceRequest) (*models.ManualCashRemittance, error) {
	if req.Amount <= 0 {
		return nil, models.NewDomainError(models.ErrInvalidAmount, "amount must be positive")
	}

	rem := &models.ManualCashRemittance{
		AdminID: adminID,
		Amount:  utils.Round2(req.Amount),
		Note:    req.Note,
	}
	if err := s.remittanceRepo.Create(rem); err != nil {
		return nil, err
	}
	return rem, nil
}

// DecideRemittance approves or rejects a pending remittance report
func (s *SettlementService) DecideRemittance(remittanceID, actor string, approve bool) error {
	status := models.RemittanceStatusApproved
	if !approve {
		status = models.RemittanceStatusRejected
	}
	return s.remittanceRepo.Decide(remittanceID, actor, status)
}

// ListRemittances returns an admin's remittance reports
func (s *SettlementService) ListRemittances(adminID string) ([]models.ManualCashRemittance, error) {
	return s.remittanceRepo.ListByAdmin(adminID)
}
