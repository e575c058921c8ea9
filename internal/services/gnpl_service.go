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

// maxPaymentAttempts bounds the optimistic retry when applying a payment
// races another payment or a penalty accrual on the same account.
const maxPaymentAttempts = 3

// GnplService manages "Go Now, Pay Later" credit lines: origination with
// immediate ticket issuance, payment application with a configurable split
// policy, idempotent penalty accrual and due-date reminders.
type GnplService struct {
	gnplRepo             *database.GnplRepository
	receiptRepo          *database.ReceiptRepository
	pricing              *PricingService
	notifier             Notifier
	config               config.GnplConfig
	restoreSeatsOnReject bool
	logger               *logrus.Logger
}

// NewGnplService creates a new GnplService
func NewGnplService(
	gnplRepo *database.GnplRepository,
	receiptRepo *database.ReceiptRepository,
	pricing *PricingService,
	notifier Notifier,
	cfg config.GnplConfig,
	restoreSeatsOnReject bool,
	logger *logrus.Logger,
) *GnplService {
	return &GnplService{
		gnplRepo:             gnplRepo,
		receiptRepo:          receiptRepo,
		pricing:              pricing,
		notifier:             notifier,
		config:               cfg,
		restoreSeatsOnReject: restoreSeatsOnReject,
		logger:               logger,
	}
}

// Originate opens a credit line for a ticket purchase. Seats are consumed
// and tickets issued right away; the operator carries the balance until the
// account settles. When approval is not required the account activates and
// its receipt is approved immediately.
func (s *GnplService) Originate(req *models.GnplOriginateRequest) (*models.GnplAccount, []models.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, models.NewDomainError(models.ErrInvalidQuantity, "%s", err.Error())
	}

	quote, err := s.pricing.Quote(req.TripID, req.Quantity, req.VoucherCode)
	if err != nil {
		return nil, nil, err
	}

	ref, err := reference.Mint("GNPL")
	if err != nil {
		return nil, nil, err
	}

	receipt := &models.Receipt{
		Reference:      ref,
		CustomerID:     req.CustomerID,
		TripID:         req.TripID,
		PaymentMethod:  models.PaymentMethodGNPL,
		Quantity:       req.Quantity,
		BaseAmount:     quote.BaseAmount,
		DiscountAmount: quote.DiscountAmount,
		FinalAmount:    quote.FinalAmount,
		PaidAmount:     0,
		Currency:       quote.Currency,
		Score:          scorePerfect,
		Flags:          []string{},
		ApprovalStatus: models.ApprovalStatusPending,
	}

	status := models.GnplStatusActive
	if s.config.ApprovalRequired {
		status = models.GnplStatusPendingApproval
	}

	account := &models.GnplAccount{
		CustomerID:      req.CustomerID,
		TripID:          req.TripID,
		Quantity:        req.Quantity,
		PrincipalAmount: quote.FinalAmount,
		DueDate:         time.Now().AddDate(0, 0, s.config.TermDays),
		Status:          status,
	}

	tickets, err := s.gnplRepo.Originate(account, receipt, req.VoucherCode)
	if err != nil {
		return nil, nil, err
	}

	if !s.config.ApprovalRequired {
		if err := s.receiptRepo.Approve(receipt.ID, "system"); err != nil {
			return nil, nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"account_id":  account.ID,
		"customer_id": req.CustomerID,
		"trip_id":     req.TripID,
		"principal":   account.PrincipalAmount,
		"due_date":    account.DueDate.Format("2006-01-02"),
		"status":      account.Status,
	}).Info("Credit line originated")

	return account, tickets, nil
}

// Decide approves or rejects a pending credit line. Rejection cancels the
// tickets and, per configuration, returns the seats.
func (s *GnplService) Decide(accountID, actor string, approve bool, reason string) error {
	if approve {
		return s.gnplRepo.ApproveAccount(accountID, actor)
	}
	if reason == "" {
		reason = "credit application declined"
	}
	return s.gnplRepo.RejectAccount(accountID, actor, reason, s.restoreSeatsOnReject)
}

// GetAccount returns a credit account
func (s *GnplService) GetAccount(accountID string) (*models.GnplAccount, error) {
	account, err := s.gnplRepo.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, models.NewDomainError(models.ErrNotFound, "account %s not found", accountID)
	}
	return account, nil
}

// ListAccounts returns a customer's credit accounts
func (s *GnplService) ListAccounts(customerID string) ([]models.GnplAccount, error) {
	return s.gnplRepo.ListByCustomer(customerID)
}

// Pay applies a payment to an account. The split follows the configured
// policy (penalty before principal or the reverse), the amount can never
// exceed the outstanding balance, and the optimistic guard in the repository
// keeps a concurrent payment or accrual from double-applying: on a lost race
// the balances are re-read and the split recomputed.
func (s *GnplService) Pay(accountID string, req *models.GnplPayRequest) (*models.GnplPayResponse, error) {
	if req.Amount <= 0 {
		return nil, models.NewDomainError(models.ErrInvalidAmount, "amount must be positive")
	}

	ref, err := reference.Normalize(req.Reference)
	if err != nil {
		return nil, models.NewDomainError(models.ErrReferenceRequired, "payment reference is unusable")
	}
	amount := utils.Round2(req.Amount)

	for attempt := 0; attempt < maxPaymentAttempts; attempt++ {
		account, err := s.gnplRepo.GetAccountByID(accountID)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, models.NewDomainError(models.ErrNotFound, "account %s not found", accountID)
		}
		if !account.IsSettleable() {
			return nil, models.NewDomainError(models.ErrAlreadyDecided,
				"account %s is %s", accountID, account.Status)
		}
		if amount > account.Outstanding()+utils.AmountEpsilon {
			return nil, models.NewDomainError(models.ErrOverpayment,
				"payment %s exceeds outstanding %s",
				utils.FormatMoney(amount), utils.FormatMoney(account.Outstanding()))
		}

		principalApplied, penaltyApplied := s.split(account, amount)

		updated := *account
		updated.PrincipalPaid = utils.Round2(account.PrincipalPaid + principalApplied)
		updated.PenaltyPaid = utils.Round2(account.PenaltyPaid + penaltyApplied)
		if updated.Outstanding() <= utils.AmountEpsilon {
			updated.Status = models.GnplStatusPaid
		}

		payment := &models.GnplPayment{
			AccountID:        accountID,
			Amount:           amount,
			PrincipalApplied: principalApplied,
			PenaltyApplied:   penaltyApplied,
			Reference:        ref,
			Status:           models.GnplPaymentApproved,
		}

		ok, err := s.gnplRepo.ApplyPayment(&updated, account, payment)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Balances moved under us; recompute against the fresh state.
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"account_id":        accountID,
			"amount":            amount,
			"principal_applied": principalApplied,
			"penalty_applied":   penaltyApplied,
			"status":            updated.Status,
		}).Info("Payment applied")

		return &models.GnplPayResponse{
			AccountID:            accountID,
			PrincipalApplied:     principalApplied,
			PenaltyApplied:       penaltyApplied,
			PrincipalOutstanding: utils.Round2(updated.PrincipalOutstanding()),
			PenaltyOutstanding:   utils.Round2(updated.PenaltyOutstanding()),
			Status:               updated.Status,
		}, nil
	}

	return nil, fmt.Errorf("payment on account %s kept losing to concurrent updates", accountID)
}

// split divides a payment between penalty and principal per policy
func (s *GnplService) split(account *models.GnplAccount, amount float64) (principal, penalty float64) {
	if s.config.PenaltyFirst {
		penalty = min2(amount, account.PenaltyOutstanding())
		principal = utils.Round2(amount - penalty)
		return utils.Round2(principal), utils.Round2(penalty)
	}
	principal = min2(amount, account.PrincipalOutstanding())
	penalty = utils.Round2(amount - principal)
	return utils.Round2(principal), utils.Round2(penalty)
}

// AccruePenalties walks past-due accounts and accrues every whole penalty
// period that has elapsed since the last run. Each new period adds
// penalty_percent of the outstanding principal. The period counter guard in
// the repository makes a rerun over the same window a no-op.
func (s *GnplService) AccruePenalties(now time.Time) (int, error) {
	if !s.config.PenaltyEnabled {
		return 0, nil
	}

	accounts, err := s.gnplRepo.ListPastDue(now)
	if err != nil {
		return 0, err
	}

	accrued := 0
	for i := range accounts {
		account := &accounts[i]
		elapsed := account.ElapsedPenaltyPeriods(now, s.config.PenaltyPeriodDays)
		if elapsed <= account.PenaltyPeriodsAccrued {
			continue
		}

		newPeriods := elapsed - account.PenaltyPeriodsAccrued
		amount := utils.Round2(account.PrincipalOutstanding() * s.config.PenaltyPercent / 100 * float64(newPeriods))

		ok, err := s.gnplRepo.AccruePenalty(account.ID, elapsed, amount, account.PenaltyPeriodsAccrued)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"account_id": account.ID,
				"error":      err.Error(),
			}).Error("Failed to accrue penalty")
			continue
		}
		if !ok {
			// Another run or a payment got there first.
			continue
		}

		accrued++
		s.logger.WithFields(logrus.Fields{
			"account_id":  account.ID,
			"new_periods": newPeriods,
			"amount":      amount,
		}).Info("Penalty accrued")
	}
	return accrued, nil
}

// SendReminders notifies customers whose accounts come due within the
// configured lead time, at most once per due date.
func (s *GnplService) SendReminders(now time.Time) (int, error) {
	windowEnd := now.AddDate(0, 0, s.config.ReminderLeadDays)
	accounts, err := s.gnplRepo.ListDueForReminder(windowEnd)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range accounts {
		account := &accounts[i]
		message := fmt.Sprintf("Your payment of %s is due on %s.",
			utils.FormatMoney(account.Outstanding()), account.DueDate.Format("2006-01-02"))
		if err := s.notifier.Notify(account.CustomerID, "gnpl_due_reminder", message); err != nil {
			s.logger.WithFields(logrus.Fields{
				"account_id": account.ID,
				"error":      err.Error(),
			}).Warn("Failed to send due reminder")
			continue
		}
		if err := s.gnplRepo.MarkReminded(account.ID, account.DueDate); err != nil {
			s.logger.WithField("account_id", account.ID).Warn("Failed to record reminder")
			continue
		}
		sent++
	}
	return sent, nil
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
