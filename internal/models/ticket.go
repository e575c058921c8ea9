package models

import "time"

// TicketStatus represents the status of an issued ticket
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusConfirmed TicketStatus = "confirmed"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// Ticket is one seat's worth of an admitted receipt. Exactly `quantity`
// tickets belong to each receipt; ticket numbers and serials are unique for
// the lifetime of the system.
type Ticket struct {
	ID            string       `json:"id" db:"id"`
	TicketNumber  string       `json:"ticket_number" db:"ticket_number"`
	SerialNumber  string       `json:"serial_number" db:"serial_number"`
	ReceiptID     string       `json:"receipt_id" db:"receipt_id"`
	TripID        string       `json:"trip_id" db:"trip_id"`
	CustomerID    string       `json:"customer_id" db:"customer_id"`
	PurchasePrice float64      `json:"purchase_price" db:"purchase_price"`
	Status        TicketStatus `json:"status" db:"status"`
	CheckedInAt   *time.Time   `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
