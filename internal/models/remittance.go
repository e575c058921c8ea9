package models

import "time"

// RemittanceStatus represents the status of a cash remittance record
type RemittanceStatus string

const (
	RemittanceStatusPending  RemittanceStatus = "pending"
	RemittanceStatusApproved RemittanceStatus = "approved"
	RemittanceStatusRejected RemittanceStatus = "rejected"
)

// ManualCashRemittance records an admin's self-reported handover of cash
// collected through manual sales, used to reconcile their running liability.
type ManualCashRemittance struct {
	ID        string           `json:"id" db:"id"`
	AdminID   string           `json:"admin_id" db:"admin_id"`
	Amount    float64          `json:"amount" db:"amount"`
	Note      *string          `json:"note,omitempty" db:"note"`
	Status    RemittanceStatus `json:"status" db:"status"`
	DecidedBy *string          `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// CreateRemittanceRequest represents an admin reporting a cash handover
type CreateRemittanceRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Note   *string `json:"note,omitempty"`
}
