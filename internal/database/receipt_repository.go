package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tripline/booking-backend/internal/models"
)

// Constraint names the admission transaction relies on. These must exist in
// the schema; they are the race-safe authority for uniqueness, the
// application-level checks are only advisory.
const (
	constraintReceiptReference = "receipts_reference_key"
	constraintTicketNumber     = "tickets_ticket_number_key"
	constraintTicketSerial     = "tickets_serial_number_key"
)

// maxTicketNumberAttempts bounds the retry-with-new-suffix loop for ticket
// number collisions. A reference collision is never retried: a duplicate
// reference is a terminal failure, not a transient one.
const maxTicketNumberAttempts = 5

// ReceiptRepository handles database operations for receipts and the tickets
// they own. Receipt creation, seat decrement, voucher consumption and ticket
// issuance form one transaction.
type ReceiptRepository struct {
	db DB
}

// NewReceiptRepository creates a new ReceiptRepository
func NewReceiptRepository(db DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// CreateWithTickets admits a receipt and issues its tickets atomically:
// seat decrement, optional voucher consumption, receipt insert and ticket
// inserts either all commit or none do. sessionID, when present, is the open
// booking session completed by this admission.
//
// Failure kinds: sold_out when the final seat check loses the race,
// voucher_exhausted when the voucher's last use was claimed concurrently,
// duplicate_reference when the normalized reference (exact or same-prefix)
// already exists.
func (r *ReceiptRepository) CreateWithTickets(receipt *models.Receipt, voucherCode *string, sessionID *string) ([]models.Ticket, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tickets, err := r.createWithTicketsTx(tx, receipt, voucherCode, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admission: %w", err)
	}
	return tickets, nil
}

// createWithTicketsTx runs the admission inside an existing transaction so
// other units of work (GNPL origination) can extend it.
func (r *ReceiptRepository) createWithTicketsTx(tx *sqlx.Tx, receipt *models.Receipt, voucherCode *string, sessionID *string) ([]models.Ticket, error) {
	// Final seat check, after the quote-time check: seats can be consumed
	// between quoting and submission.
	ok, err := decrementSeatsTx(tx, receipt.TripID, receipt.Quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewDomainError(models.ErrSoldOut,
			"trip %s does not have %d seats available", receipt.TripID, receipt.Quantity)
	}

	if voucherCode != nil {
		ok, err := consumeUseTx(tx, *voucherCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewDomainError(models.ErrVoucherExhausted,
				"voucher %s has no uses left", *voucherCode)
		}
	}

	// Advisory same-prefix check, in both directions: a stored REF blocks a
	// later REF-2 and a stored REF-2 blocks a later REF. The unique
	// constraint below closes the race for exact matches.
	var dup bool
	err = tx.Get(&dup, `
		SELECT EXISTS (
			SELECT 1 FROM receipts
			WHERE reference = $1
			   OR reference LIKE $1 || '-%'
			   OR $1 LIKE reference || '-%'
		)`, receipt.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to check reference: %w", err)
	}
	if dup {
		return nil, models.NewDomainError(models.ErrDuplicateReference,
			"reference %s was already used", receipt.Reference)
	}

	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.ApprovalStatus == "" {
		receipt.ApprovalStatus = models.ApprovalStatusPending
	}

	err = tx.QueryRowx(`
		INSERT INTO receipts (
			id, reference, customer_id, trip_id, payment_method, quantity,
			base_amount, discount_amount, final_amount, paid_amount, currency,
			attachment_url, receipt_date, score, flags, approval_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING created_at, updated_at`,
		receipt.ID, receipt.Reference, receipt.CustomerID, receipt.TripID, receipt.PaymentMethod, receipt.Quantity,
		receipt.BaseAmount, receipt.DiscountAmount, receipt.FinalAmount, receipt.PaidAmount, receipt.Currency,
		receipt.AttachmentURL, receipt.ReceiptDate, receipt.Score, pq.Array(receipt.Flags), receipt.ApprovalStatus,
	).Scan(&receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err, constraintReceiptReference) {
			return nil, models.NewDomainError(models.ErrDuplicateReference,
				"reference %s was already used", receipt.Reference)
		}
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}

	tickets, err := issueTicketsTx(tx, receipt)
	if err != nil {
		return nil, err
	}

	if sessionID != nil {
		if err := completeSessionTx(tx, *sessionID); err != nil {
			return nil, err
		}
	}

	return tickets, nil
}

// issueTicketsTx creates receipt.Quantity tickets, each with a unique ticket
// number and a serial encoding trip identity + sequence. Collisions on the
// random suffix are retried a bounded number of times with fresh suffixes;
// the unique constraints keep the guarantee absolute rather than
// probabilistic.
func issueTicketsTx(tx *sqlx.Tx, receipt *models.Receipt) ([]models.Ticket, error) {
	var seq int
	if err := tx.Get(&seq, `SELECT COUNT(*) FROM tickets WHERE trip_id = $1`, receipt.TripID); err != nil {
		return nil, fmt.Errorf("failed to read trip ticket sequence: %w", err)
	}

	unitPrice := receipt.FinalAmount / float64(receipt.Quantity)
	tripCode := tripSerialCode(receipt.TripID)

	tickets := make([]models.Ticket, 0, receipt.Quantity)
	for i := 0; i < receipt.Quantity; i++ {
		ticket := models.Ticket{
			ID:            uuid.New().String(),
			ReceiptID:     receipt.ID,
			TripID:        receipt.TripID,
			CustomerID:    receipt.CustomerID,
			PurchasePrice: unitPrice,
			Status:        models.TicketStatusPending,
		}

		inserted := false
		for attempt := 0; attempt < maxTicketNumberAttempts; attempt++ {
			number, err := generateTicketNumber()
			if err != nil {
				return nil, err
			}
			suffix, err := randomHex(1)
			if err != nil {
				return nil, err
			}
			serial := fmt.Sprintf("%s-%04d-%s", tripCode, seq+i+1, suffix)

			// A failed statement aborts the whole transaction on Postgres;
			// the savepoint confines the abort to this attempt so the retry
			// can actually run.
			if _, err := tx.Exec(`SAVEPOINT ticket_insert`); err != nil {
				return nil, fmt.Errorf("failed to set savepoint: %w", err)
			}

			err = tx.QueryRowx(`
				INSERT INTO tickets (
					id, ticket_number, serial_number, receipt_id, trip_id,
					customer_id, purchase_price, status
				) VALUES (
					$1, $2, $3, $4, $5, $6, $7, $8
				)
				RETURNING created_at, updated_at`,
				ticket.ID, number, serial, ticket.ReceiptID, ticket.TripID,
				ticket.CustomerID, ticket.PurchasePrice, ticket.Status,
			).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
			if err == nil {
				if _, err := tx.Exec(`RELEASE SAVEPOINT ticket_insert`); err != nil {
					return nil, fmt.Errorf("failed to release savepoint: %w", err)
				}
				ticket.TicketNumber = number
				ticket.SerialNumber = serial
				inserted = true
				break
			}
			if IsUniqueViolation(err, constraintTicketNumber) || IsUniqueViolation(err, constraintTicketSerial) {
				if _, err := tx.Exec(`ROLLBACK TO SAVEPOINT ticket_insert`); err != nil {
					return nil, fmt.Errorf("failed to roll back to savepoint: %w", err)
				}
				continue
			}
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
		if !inserted {
			return nil, fmt.Errorf("failed to allocate a unique ticket number after %d attempts", maxTicketNumberAttempts)
		}

		tickets = append(tickets, ticket)
	}

	return tickets, nil
}

// Approve moves a pending receipt to approved and confirms its tickets.
// The conditional update makes concurrent decisions mutually exclusive: the
// loser sees zero rows and gets already_decided.
func (r *ReceiptRepository) Approve(receiptID, actor string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE receipts
		SET approval_status = 'approved', decided_by = $2, decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND approval_status = 'pending'`,
		receiptID, actor)
	if err != nil {
		return fmt.Errorf("failed to approve receipt: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.decisionConflict(receiptID)
	}

	_, err = tx.Exec(`
		UPDATE tickets
		SET status = 'confirmed', updated_at = NOW()
		WHERE receipt_id = $1 AND status = 'pending'`,
		receiptID)
	if err != nil {
		return fmt.Errorf("failed to confirm tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}
	return nil
}

// Reject moves a pending receipt to rejected with a reason and cancels its
// tickets. When restoreSeats is set, the seats consumed at issuance are
// returned to the trip's inventory, bounded by total_seats.
func (r *ReceiptRepository) Reject(receiptID, actor, reason string, restoreSeats bool) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var tripID string
	var quantity int
	err = tx.QueryRowx(`
		UPDATE receipts
		SET approval_status = 'rejected', reject_reason = $3,
			decided_by = $2, decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND approval_status = 'pending'
		RETURNING trip_id, quantity`,
		receiptID, actor, reason,
	).Scan(&tripID, &quantity)
	if err == sql.ErrNoRows {
		return r.decisionConflict(receiptID)
	}
	if err != nil {
		return fmt.Errorf("failed to reject receipt: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE tickets
		SET status = 'cancelled', updated_at = NOW()
		WHERE receipt_id = $1 AND status = 'pending'`,
		receiptID)
	if err != nil {
		return fmt.Errorf("failed to cancel tickets: %w", err)
	}

	if restoreSeats {
		ok, err := restoreSeatsTx(tx, tripID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			// Restoring would push available_seats past total_seats; abort
			// before committing a corrupted inventory.
			return fmt.Errorf("seat restore for trip %s would exceed total seats", tripID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rejection: %w", err)
	}
	return nil
}

// Rollback reverts an approved receipt to pending. The caller must name a
// ticket number belonging to the receipt as a confirmation gate, and a
// receipt with any checked-in ticket cannot be rolled back.
func (r *ReceiptRepository) Rollback(receiptID, actor, confirmTicketNumber string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var usedCount int
	err = tx.Get(&usedCount, `
		SELECT COUNT(*) FROM tickets
		WHERE receipt_id = $1 AND status = 'used'`, receiptID)
	if err != nil {
		return fmt.Errorf("failed to check ticket usage: %w", err)
	}
	if usedCount > 0 {
		return models.NewDomainError(models.ErrRollbackBlocked,
			"receipt %s has %d checked-in ticket(s)", receiptID, usedCount)
	}

	var match bool
	err = tx.Get(&match, `
		SELECT EXISTS (
			SELECT 1 FROM tickets
			WHERE receipt_id = $1 AND ticket_number = $2
		)`, receiptID, confirmTicketNumber)
	if err != nil {
		return fmt.Errorf("failed to verify confirmation ticket: %w", err)
	}
	if !match {
		return models.NewDomainError(models.ErrRollbackConfirmation,
			"ticket number does not belong to receipt %s", receiptID)
	}

	result, err := tx.Exec(`
		UPDATE receipts
		SET approval_status = 'pending', decided_by = NULL, decided_at = NULL, updated_at = NOW()
		WHERE id = $1 AND approval_status = 'approved'`,
		receiptID)
	if err != nil {
		return fmt.Errorf("failed to roll back receipt: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.decisionConflict(receiptID)
	}

	_, err = tx.Exec(`
		UPDATE tickets
		SET status = 'pending', updated_at = NOW()
		WHERE receipt_id = $1 AND status = 'confirmed'`,
		receiptID)
	if err != nil {
		return fmt.Errorf("failed to revert tickets: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}
	return nil
}

// decisionConflict distinguishes "receipt missing" from "decision race lost"
// after a conditional update matched zero rows.
func (r *ReceiptRepository) decisionConflict(receiptID string) error {
	var status models.ApprovalStatus
	err := r.db.Get(&status, `SELECT approval_status FROM receipts WHERE id = $1`, receiptID)
	if err == sql.ErrNoRows {
		return models.NewDomainError(models.ErrNotFound, "receipt %s not found", receiptID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch receipt status: %w", err)
	}
	return models.NewDomainError(models.ErrAlreadyDecided,
		"receipt %s is %s", receiptID, status)
}

// GetByID retrieves a receipt by ID
func (r *ReceiptRepository) GetByID(receiptID string) (*models.Receipt, error) {
	receipt, err := r.scanReceipt(r.db.QueryRow(selectReceiptColumns+` WHERE id = $1`, receiptID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return receipt, nil
}

// GetByReference retrieves a receipt by its normalized reference
func (r *ReceiptRepository) GetByReference(reference string) (*models.Receipt, error) {
	receipt, err := r.scanReceipt(r.db.QueryRow(selectReceiptColumns+` WHERE reference = $1`, reference))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return receipt, nil
}

// ListInRange retrieves receipts created within [from, to], optionally
// filtered by payment method. Used by the reconciliation matcher; read-only.
func (r *ReceiptRepository) ListInRange(from, to time.Time, method *models.PaymentMethod) ([]models.Receipt, error) {
	query := selectReceiptColumns + `
		WHERE created_at >= $1 AND created_at <= $2`
	args := []interface{}{from, to}
	if method != nil {
		query += ` AND payment_method = $3`
		args = append(args, *method)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	receipts := []models.Receipt{}
	for rows.Next() {
		receipt, err := r.scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *receipt)
	}
	return receipts, rows.Err()
}

const selectReceiptColumns = `
	SELECT id, reference, customer_id, trip_id, payment_method, quantity,
		   base_amount, discount_amount, final_amount, paid_amount, currency,
		   attachment_url, receipt_date, score, flags, approval_status,
		   reject_reason, decided_by, decided_at, created_at, updated_at
	FROM receipts`

// scanReceipt scans a single receipt
func (r *ReceiptRepository) scanReceipt(row scanner) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	var attachmentURL sql.NullString
	var receiptDate sql.NullTime
	var rejectReason sql.NullString
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	var flags pq.StringArray

	err := row.Scan(
		&receipt.ID, &receipt.Reference, &receipt.CustomerID, &receipt.TripID, &receipt.PaymentMethod, &receipt.Quantity,
		&receipt.BaseAmount, &receipt.DiscountAmount, &receipt.FinalAmount, &receipt.PaidAmount, &receipt.Currency,
		&attachmentURL, &receiptDate, &receipt.Score, &flags, &receipt.ApprovalStatus,
		&rejectReason, &decidedBy, &decidedAt, &receipt.CreatedAt, &receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	receipt.Flags = flags
	if attachmentURL.Valid {
		receipt.AttachmentURL = &attachmentURL.String
	}
	if receiptDate.Valid {
		receipt.ReceiptDate = &receiptDate.Time
	}
	if rejectReason.Valid {
		receipt.RejectReason = &rejectReason.String
	}
	if decidedBy.Valid {
		receipt.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		receipt.DecidedAt = &decidedAt.Time
	}
	return receipt, nil
}

// generateTicketNumber generates a unique ticket number.
// Format: TKT-YYYYMMDD-XXXXXX (6 char hex)
func generateTicketNumber() (string, error) {
	suffix, err := randomHex(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TKT-%s-%s", time.Now().Format("20060102"), suffix), nil
}

// tripSerialCode derives a short human-legible trip code from the trip ID
func tripSerialCode(tripID string) string {
	code := strings.ReplaceAll(tripID, "-", "")
	if len(code) > 6 {
		code = code[:6]
	}
	return strings.ToUpper(code)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
