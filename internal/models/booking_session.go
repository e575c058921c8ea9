package models

import (
	"errors"
	"time"
)

// PaymentMethod identifies how the customer intends to pay
type PaymentMethod string

const (
	PaymentMethodTelebirr PaymentMethod = "telebirr"
	PaymentMethodCBE      PaymentMethod = "cbe"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodGateway  PaymentMethod = "gateway"
	PaymentMethodGNPL     PaymentMethod = "gnpl"
)

// IsAutomated reports whether the method settles through the hosted checkout
// gateway rather than a manually submitted proof-of-payment.
func (m PaymentMethod) IsAutomated() bool {
	return m == PaymentMethodGateway
}

// SessionStatus represents the status of a booking session
type SessionStatus string

const (
	SessionStatusAwaitingReceipt     SessionStatus = "awaiting_receipt"
	SessionStatusAwaitingAutoPayment SessionStatus = "awaiting_auto_payment"
	SessionStatusCompleted           SessionStatus = "completed"
	SessionStatusCancelled           SessionStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// BookingSession is the per-customer draft state between "payment method
// chosen" and "proof submitted". At most one non-terminal session exists per
// customer; opening a new one cancels the rest inside a single transaction.
type BookingSession struct {
	ID              string        `json:"id" db:"id"`
	CustomerID      string        `json:"customer_id" db:"customer_id"`
	TripID          string        `json:"trip_id" db:"trip_id"`
	PaymentMethod   PaymentMethod `json:"payment_method" db:"payment_method"`
	Quantity        int           `json:"quantity" db:"quantity"`
	VoucherCode     *string       `json:"voucher_code,omitempty" db:"voucher_code"`
	DiscountPercent float64       `json:"discount_percent" db:"discount_percent"`
	BaseAmount      float64       `json:"base_amount" db:"base_amount"`
	DiscountAmount  float64       `json:"discount_amount" db:"discount_amount"`
	FinalAmount     float64       `json:"final_amount" db:"final_amount"`
	Currency        string        `json:"currency" db:"currency"`
	Status          SessionStatus `json:"status" db:"status"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// ApplySnapshot attaches a pricing snapshot to the session
func (s *BookingSession) ApplySnapshot(q *PriceQuote) {
	s.VoucherCode = q.VoucherCode
	s.DiscountPercent = q.DiscountPercent
	s.BaseAmount = q.BaseAmount
	s.DiscountAmount = q.DiscountAmount
	s.FinalAmount = q.FinalAmount
	s.Currency = q.Currency
}

// Complete moves the session to completed
func (s *BookingSession) Complete() error {
	if s.Status.IsTerminal() {
		return errors.New("session is already in a terminal state")
	}
	s.Status = SessionStatusCompleted
	s.UpdatedAt = time.Now()
	return nil
}

// StartBookingRequest represents the request to open a booking session
type StartBookingRequest struct {
	CustomerID    string        `json:"customer_id" binding:"required"`
	TripID        string        `json:"trip_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	Quantity      int           `json:"quantity" binding:"required,min=1"`
	VoucherCode   *string       `json:"voucher_code,omitempty"`
}

// Validate validates the start booking request
func (r *StartBookingRequest) Validate() error {
	if r.Quantity <= 0 {
		return errors.New("quantity must be at least 1")
	}
	if r.Quantity > 10 {
		return errors.New("maximum 10 tickets can be booked at once")
	}
	switch r.PaymentMethod {
	case PaymentMethodTelebirr, PaymentMethodCBE, PaymentMethodCash,
		PaymentMethodGateway, PaymentMethodGNPL:
	default:
		return errors.New("unknown payment method")
	}
	return nil
}

// StartBookingResponse is returned when a session is opened. For automated
// checkout it carries the gateway redirect URL instead of manual instructions.
type StartBookingResponse struct {
	SessionID   string        `json:"session_id"`
	Status      SessionStatus `json:"status"`
	Quote       PriceQuote    `json:"quote"`
	RedirectURL *string       `json:"redirect_url,omitempty"`
}
