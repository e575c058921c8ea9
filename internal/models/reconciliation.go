package models

import "time"

// StatementLine is one external statement row supplied for matching. It is
// never persisted; only its match outcome is reported.
type StatementLine struct {
	Reference string  `json:"reference" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
}

// LineOutcome classifies a statement line against stored receipts
type LineOutcome string

const (
	LineMatched    LineOutcome = "matched"
	LineMissing    LineOutcome = "missing"
	LineMismatched LineOutcome = "mismatched"
)

// LineResult is the per-line detail of a reconciliation run
type LineResult struct {
	Reference      string      `json:"reference"`
	StatementTotal float64     `json:"statement_amount"`
	ReceiptAmount  *float64    `json:"receipt_amount,omitempty"`
	Outcome        LineOutcome `json:"outcome"`
}

// ReconciliationSummary aggregates receipts in range and line outcomes
type ReconciliationSummary struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	TotalReceipts    int       `json:"total_receipts"`
	ApprovedReceipts int       `json:"approved_receipts"`
	PendingReceipts  int       `json:"pending_receipts"`
	ApprovedAmount   float64   `json:"approved_amount"`
	PendingAmount    float64   `json:"pending_amount"`
	LinesMatched     int       `json:"lines_matched"`
	LinesMissing     int       `json:"lines_missing"`
	LinesMismatched  int       `json:"lines_mismatched"`
}

// ReconciliationReport is the full output of a reconciliation run
type ReconciliationReport struct {
	Summary ReconciliationSummary `json:"summary"`
	Lines   []LineResult          `json:"lines"`
}

// ReconcileRequest represents a batch reconciliation request
type ReconcileRequest struct {
	From          string          `json:"from" binding:"required"` // YYYY-MM-DD
	To            string          `json:"to" binding:"required"`   // YYYY-MM-DD
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty"`
	Lines         []StatementLine `json:"lines"`
}
