package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
	"github.com/tripline/booking-backend/internal/utils"
	"github.com/tripline/booking-backend/pkg/reference"
)

// ReconciliationService matches external statement lines against stored
// receipts over a date range. It is a pure read: no receipt or ticket is
// mutated by a reconciliation run.
type ReconciliationService struct {
	receiptRepo *database.ReceiptRepository
	logger      *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(receiptRepo *database.ReceiptRepository, logger *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{receiptRepo: receiptRepo, logger: logger}
}

// Reconcile classifies every statement line as matched, missing or
// mismatched against the receipts in range, and summarizes the range's
// receipt totals by approval status.
func (s *ReconciliationService) Reconcile(req *models.ReconcileRequest) (*models.ReconciliationReport, error) {
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	receipts, err := s.receiptRepo.ListInRange(from, to, req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	byReference := make(map[string]*models.Receipt, len(receipts))
	summary := models.ReconciliationSummary{
		From:          from,
		To:            to,
		TotalReceipts: len(receipts),
	}
	for i := range receipts {
		r := &receipts[i]
		byReference[r.Reference] = r
		switch r.ApprovalStatus {
		case models.ApprovalStatusApproved:
			summary.ApprovedReceipts++
			summary.ApprovedAmount = utils.Round2(summary.ApprovedAmount + r.PaidAmount)
		case models.ApprovalStatusPending:
			summary.PendingReceipts++
			summary.PendingAmount = utils.Round2(summary.PendingAmount + r.PaidAmount)
		}
	}

	lines := make([]models.LineResult, 0, len(req.Lines))
	for _, line := range req.Lines {
		result := models.LineResult{
			Reference:      line.Reference,
			StatementTotal: line.Amount,
		}

		normalized, err := reference.Normalize(line.Reference)
		if err != nil {
			result.Outcome = models.LineMissing
			lines = append(lines, result)
			continue
		}

		receipt, ok := byReference[normalized]
		if !ok {
			result.Outcome = models.LineMissing
			lines = append(lines, result)
			continue
		}

		result.ReceiptAmount = &receipt.PaidAmount
		if utils.AmountsEqual(receipt.PaidAmount, line.Amount) {
			result.Outcome = models.LineMatched
		} else {
			result.Outcome = models.LineMismatched
		}
		lines = append(lines, result)
	}

	for _, line := range lines {
		switch line.Outcome {
		case models.LineMatched:
			summary.LinesMatched++
		case models.LineMissing:
			summary.LinesMissing++
		case models.LineMismatched:
			summary.LinesMismatched++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"from":       req.From,
		"to":         req.To,
		"receipts":   summary.TotalReceipts,
		"matched":    summary.LinesMatched,
		"missing":    summary.LinesMissing,
		"mismatched": summary.LinesMismatched,
	}).Info("Reconciliation run completed")

	return &models.ReconciliationReport{Summary: summary, Lines: lines}, nil
}

// parseRange parses and validates the inclusive day range
func parseRange(fromStr, toStr string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, models.NewDomainError(models.ErrValidationMismatch,
			"from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, models.NewDomainError(models.ErrValidationMismatch,
			"to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, models.NewDomainError(models.ErrValidationMismatch,
			"to must not be before from")
	}
	// Inclusive end of day.
	to = to.Add(24*time.Hour - time.Second)
	return from, to, nil
}
