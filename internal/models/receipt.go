package models

import (
	"time"

	"github.com/lib/pq"
)

// ApprovalStatus represents the settlement status of a receipt
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Receipt is a customer's claimed proof-of-payment, pending admin
// adjudication. The normalized reference is unique system-wide; the database
// constraint is the authority, not application-level checks.
type Receipt struct {
	ID             string         `json:"id" db:"id"`
	Reference      string         `json:"reference" db:"reference"`
	CustomerID     string         `json:"customer_id" db:"customer_id"`
	TripID         string         `json:"trip_id" db:"trip_id"`
	PaymentMethod  PaymentMethod  `json:"payment_method" db:"payment_method"`
	Quantity       int            `json:"quantity" db:"quantity"`
	BaseAmount     float64        `json:"base_amount" db:"base_amount"`
	DiscountAmount float64        `json:"discount_amount" db:"discount_amount"`
	FinalAmount    float64        `json:"final_amount" db:"final_amount"`
	PaidAmount     float64        `json:"paid_amount" db:"paid_amount"`
	Currency       string         `json:"currency" db:"currency"`
	AttachmentURL  *string        `json:"attachment_url,omitempty" db:"attachment_url"`
	ReceiptDate    *time.Time     `json:"receipt_date,omitempty" db:"receipt_date"`
	Score          int            `json:"score" db:"score"`
	Flags          pq.StringArray `json:"flags" db:"flags"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	RejectReason   *string        `json:"reject_reason,omitempty" db:"reject_reason"`
	DecidedBy      *string        `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt      *time.Time     `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// SubmitReceiptRequest represents a proof-of-payment submission
type SubmitReceiptRequest struct {
	CustomerID    string        `json:"customer_id" binding:"required"`
	TripID        string        `json:"trip_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	// Quantity is only consulted when the customer has no open session for
	// the trip and method; an open session's snapshot always wins.
	Quantity      int     `json:"quantity,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	ReceiptLink   string  `json:"receipt_link,omitempty"`
	ReceiptDate   *string `json:"receipt_date,omitempty"` // YYYY-MM-DD
	PaidAmount    float64 `json:"paid_amount" binding:"required"`
	AttachmentURL *string `json:"attachment_url,omitempty"`
}

// SubmitReceiptResponse is returned on successful admission
type SubmitReceiptResponse struct {
	ReceiptID string   `json:"receipt_id"`
	Reference string   `json:"reference"`
	Score     int      `json:"score"`
	Flags     []string `json:"flags,omitempty"`
	Tickets   []Ticket `json:"tickets"`
}

// DecisionAction is an admin settlement action over a receipt
type DecisionAction string

const (
	DecisionApprove  DecisionAction = "approve"
	DecisionReject   DecisionAction = "reject"
	DecisionRollback DecisionAction = "rollback"
)

// DecideRequest represents an admin settlement decision
type DecideRequest struct {
	Action DecisionAction `json:"action" binding:"required"`
	// Reason is required for reject
	Reason *string `json:"reason,omitempty"`
	// ConfirmTicketNumber is required for rollback; it must name a ticket
	// belonging to the receipt as a tamper-evident confirmation gate.
	ConfirmTicketNumber *string `json:"confirm_ticket_number,omitempty"`
}

// ManualSaleRequest represents an admin-recorded sale that bypasses the
// customer self-service flow but still goes through atomic ticket issuance.
type ManualSaleRequest struct {
	CustomerID    string        `json:"customer_id" binding:"required"`
	TripID        string        `json:"trip_id" binding:"required"`
	Quantity      int           `json:"quantity" binding:"required,min=1"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	Reference     string        `json:"reference,omitempty"`
	PaidAmount    float64       `json:"paid_amount" binding:"required"`
}
