package models

import (
	"errors"
	"time"
)

// GnplStatus represents the lifecycle status of a deferred-payment account
type GnplStatus string

const (
	GnplStatusPendingApproval GnplStatus = "pending_approval"
	GnplStatusActive          GnplStatus = "active"
	GnplStatusOverdue         GnplStatus = "overdue"
	GnplStatusPaid            GnplStatus = "paid"
	GnplStatusRejected        GnplStatus = "rejected"
)

// GnplAccount is a "Go Now, Pay Later" credit line for a ticket purchase.
// Seats are consumed at origination; the operator carries the credit risk
// until the account is settled.
type GnplAccount struct {
	ID                    string     `json:"id" db:"id"`
	CustomerID            string     `json:"customer_id" db:"customer_id"`
	TripID                string     `json:"trip_id" db:"trip_id"`
	ReceiptID             string     `json:"receipt_id" db:"receipt_id"`
	Quantity              int        `json:"quantity" db:"quantity"`
	PrincipalAmount       float64    `json:"principal_amount" db:"principal_amount"`
	PrincipalPaid         float64    `json:"principal_paid" db:"principal_paid"`
	PenaltyAccrued        float64    `json:"penalty_accrued" db:"penalty_accrued"`
	PenaltyPaid           float64    `json:"penalty_paid" db:"penalty_paid"`
	PenaltyPeriodsAccrued int        `json:"penalty_periods_accrued" db:"penalty_periods_accrued"`
	DueDate               time.Time  `json:"due_date" db:"due_date"`
	LastRemindedDueDate   *time.Time `json:"last_reminded_due_date,omitempty" db:"last_reminded_due_date"`
	Status                GnplStatus `json:"status" db:"status"`
	CreatedAt             time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at" db:"updated_at"`
}

// PrincipalOutstanding returns the unpaid principal
func (a *GnplAccount) PrincipalOutstanding() float64 {
	return a.PrincipalAmount - a.PrincipalPaid
}

// PenaltyOutstanding returns the unpaid penalty
func (a *GnplAccount) PenaltyOutstanding() float64 {
	return a.PenaltyAccrued - a.PenaltyPaid
}

// Outstanding returns the total amount still owed
func (a *GnplAccount) Outstanding() float64 {
	return a.PrincipalOutstanding() + a.PenaltyOutstanding()
}

// IsSettleable reports whether payments can be applied to the account
func (a *GnplAccount) IsSettleable() bool {
	return a.Status == GnplStatusActive || a.Status == GnplStatusOverdue
}

// ElapsedPenaltyPeriods computes how many whole penalty periods have passed
// since the due date at the given time. Zero if not yet due.
func (a *GnplAccount) ElapsedPenaltyPeriods(now time.Time, periodDays int) int {
	if periodDays <= 0 || !now.After(a.DueDate) {
		return 0
	}
	return int(now.Sub(a.DueDate).Hours() / 24 / float64(periodDays))
}

// GnplPaymentStatus represents the status of a payment against an account
type GnplPaymentStatus string

const (
	GnplPaymentApproved GnplPaymentStatus = "approved"
	GnplPaymentPending  GnplPaymentStatus = "pending"
	GnplPaymentRejected GnplPaymentStatus = "rejected"
)

// GnplPayment is a payment applied against a GNPL account
type GnplPayment struct {
	ID               string            `json:"id" db:"id"`
	AccountID        string            `json:"account_id" db:"account_id"`
	Amount           float64           `json:"amount" db:"amount"`
	PrincipalApplied float64           `json:"principal_applied" db:"principal_applied"`
	PenaltyApplied   float64           `json:"penalty_applied" db:"penalty_applied"`
	Reference        string            `json:"reference" db:"reference"`
	Status           GnplPaymentStatus `json:"status" db:"status"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
}

// GnplOriginateRequest represents a request to open a credit line
type GnplOriginateRequest struct {
	CustomerID  string  `json:"customer_id" binding:"required"`
	TripID      string  `json:"trip_id" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	VoucherCode *string `json:"voucher_code,omitempty"`
}

// Validate validates the origination request
func (r *GnplOriginateRequest) Validate() error {
	if r.Quantity <= 0 {
		return errors.New("quantity must be at least 1")
	}
	if r.Quantity > 10 {
		return errors.New("maximum 10 tickets can be financed at once")
	}
	return nil
}

// GnplPayRequest represents a payment against an account
type GnplPayRequest struct {
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Reference   string  `json:"reference" binding:"required"`
	ReceiptLink *string `json:"receipt_link,omitempty"`
}

// GnplPayResponse reports the balances after a payment is applied
type GnplPayResponse struct {
	AccountID            string     `json:"account_id"`
	PrincipalApplied     float64    `json:"principal_applied"`
	PenaltyApplied       float64    `json:"penalty_applied"`
	PrincipalOutstanding float64    `json:"principal_outstanding"`
	PenaltyOutstanding   float64    `json:"penalty_outstanding"`
	Status               GnplStatus `json:"status"`
}
