package database

import (
	"database/sql"
	"fmt"

	"github.com/tripline/booking-backend/internal/models"
)

// TicketRepository handles database operations for issued tickets
type TicketRepository struct {
	db DB
}

// NewTicketRepository creates a new TicketRepository
func NewTicketRepository(db DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// GetByID retrieves a ticket by ID
func (r *TicketRepository) GetByID(ticketID string) (*models.Ticket, error) {
	ticket, err := r.scanTicket(r.db.QueryRow(selectTicketColumns+` WHERE id = $1`, ticketID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket: %w", err)
	}
	return ticket, nil
}

// GetByNumber retrieves a ticket by its ticket number
func (r *TicketRepository) GetByNumber(ticketNumber string) (*models.Ticket, error) {
	ticket, err := r.scanTicket(r.db.QueryRow(selectTicketColumns+` WHERE ticket_number = $1`, ticketNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticket: %w", err)
	}
	return ticket, nil
}

// GetByReceiptID retrieves all tickets belonging to a receipt
func (r *TicketRepository) GetByReceiptID(receiptID string) ([]models.Ticket, error) {
	rows, err := r.db.Query(selectTicketColumns+` WHERE receipt_id = $1 ORDER BY serial_number`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		ticket, err := r.scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *ticket)
	}
	return tickets, rows.Err()
}

// CheckIn marks a confirmed ticket as used. Checking in a ticket that is
// already used succeeds without touching the row; any other state fails
// closed. The conditional update makes concurrent check-ins of the same
// ticket admit exactly one.
func (r *TicketRepository) CheckIn(ticketNumber string) (*models.Ticket, error) {
	result, err := r.db.Exec(`
		UPDATE tickets
		SET status = 'used', checked_in_at = NOW(), updated_at = NOW()
		WHERE ticket_number = $1 AND status = 'confirmed'`,
		ticketNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check in ticket: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 1 {
		return r.GetByNumber(ticketNumber)
	}

	// Zero rows: missing, already used (idempotent success), or not
	// checkable.
	ticket, err := r.GetByNumber(ticketNumber)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, models.NewDomainError(models.ErrNotFound, "ticket %s not found", ticketNumber)
	}
	if ticket.Status == models.TicketStatusUsed {
		return ticket, nil
	}
	return nil, models.NewDomainError(models.ErrTicketNotCheckable,
		"ticket %s is %s", ticketNumber, ticket.Status)
}

const selectTicketColumns = `
	SELECT id, ticket_number, serial_number, receipt_id, trip_id,
		   customer_id, purchase_price, status, checked_in_at,
		   created_at, updated_at
	FROM tickets`

// scanTicket scans a single ticket
func (r *TicketRepository) scanTicket(row scanner) (*models.Ticket, error) {
	ticket := &models.Ticket{}
	var checkedInAt sql.NullTime

	err := row.Scan(
		&ticket.ID, &ticket.TicketNumber, &ticket.SerialNumber, &ticket.ReceiptID, &ticket.TripID,
		&ticket.CustomerID, &ticket.PurchasePrice, &ticket.Status, &checkedInAt,
		&ticket.CreatedAt, &ticket.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if checkedInAt.Valid {
		ticket.CheckedInAt = &checkedInAt.Time
	}
	return ticket, nil
}
