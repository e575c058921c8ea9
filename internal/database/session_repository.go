package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tripline/booking-backend/internal/models"
)

// SessionRepository handles database operations for booking sessions
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Replace cancels every non-terminal session the customer has and inserts the
// new one, in a single transaction. This is the explicit transition function
// for the "at most one open session per customer" invariant: two concurrent
// Replace calls serialize on the customer's rows, so the later one wins and
// the earlier session ends up cancelled.
func (r *SessionRepository) Replace(session *models.BookingSession) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE booking_sessions
		SET status = 'cancelled', updated_at = NOW()
		WHERE customer_id = $1
		  AND status IN ('awaiting_receipt', 'awaiting_auto_payment')`,
		session.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to cancel prior sessions: %w", err)
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	err = tx.QueryRowx(`
		INSERT INTO booking_sessions (
			id, customer_id, trip_id, payment_method, quantity,
			voucher_code, discount_percent, base_amount, discount_amount,
			final_amount, currency, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		RETURNING created_at, updated_at`,
		session.ID, session.CustomerID, session.TripID, session.PaymentMethod, session.Quantity,
		session.VoucherCode, session.DiscountPercent, session.BaseAmount, session.DiscountAmount,
		session.FinalAmount, session.Currency, session.Status,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(sessionID string) (*models.BookingSession, error) {
	query := selectSessionColumns + ` WHERE id = $1`

	session, err := r.scanSession(r.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return session, nil
}

// GetOpen retrieves the customer's open session for the given trip and
// payment method. The full match keeps a submission from attaching to an
// unrelated pending session.
func (r *SessionRepository) GetOpen(customerID, tripID string, method models.PaymentMethod) (*models.BookingSession, error) {
	query := selectSessionColumns + `
		WHERE customer_id = $1
		  AND trip_id = $2
		  AND payment_method = $3
		  AND status IN ('awaiting_receipt', 'awaiting_auto_payment')
		ORDER BY created_at DESC
		LIMIT 1`

	session, err := r.scanSession(r.db.QueryRow(query, customerID, tripID, method))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch open session: %w", err)
	}
	return session, nil
}

// completeTx moves a session to completed if it is still open. Runs inside
// the admission transaction so the session flips together with the receipt.
func completeSessionTx(tx *sqlx.Tx, sessionID string) error {
	result, err := tx.Exec(`
		UPDATE booking_sessions
		SET status = 'completed', updated_at = NOW()
		WHERE id = $1
		  AND status IN ('awaiting_receipt', 'awaiting_auto_payment')`,
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("session not open")
	}
	return nil
}

// Cancel moves an open session to cancelled. Cancelling a terminal session
// is a no-op.
func (r *SessionRepository) Cancel(sessionID string) error {
	_, err := r.db.Exec(`
		UPDATE booking_sessions
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		  AND status IN ('awaiting_receipt', 'awaiting_auto_payment')`,
		sessionID)
	return err
}

// ExpireStale cancels open sessions older than the cutoff and returns how
// many were cancelled. Seats are untouched; inventory is only consumed at
// ticket issuance.
func (r *SessionRepository) ExpireStale(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE booking_sessions
		SET status = 'cancelled', updated_at = NOW()
		WHERE status IN ('awaiting_receipt', 'awaiting_auto_payment')
		  AND created_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const selectSessionColumns = `
	SELECT id, customer_id, trip_id, payment_method, quantity,
		   voucher_code, discount_percent, base_amount, discount_amount,
		   final_amount, currency, status, created_at, updated_at
	FROM booking_sessions`

// scanSession scans a single session
func (r *SessionRepository) scanSession(row scanner) (*models.BookingSession, error) {
	session := &models.BookingSession{}
	var voucherCode sql.NullString

	err := row.Scan(
		&session.ID, &session.CustomerID, &session.TripID, &session.PaymentMethod, &session.Quantity,
		&voucherCode, &session.DiscountPercent, &session.BaseAmount, &session.DiscountAmount,
		&session.FinalAmount, &session.Currency, &session.Status, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if voucherCode.Valid {
		session.VoucherCode = &voucherCode.String
	}
	return session, nil
}
