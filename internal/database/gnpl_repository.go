package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tripline/booking-backend/internal/models"
)

// GnplRepository handles database operations for deferred-payment accounts
// and the payments applied to them. Origination shares a transaction with
// receipt admission so seats, receipt, tickets and the credit line commit as
// one unit.
type GnplRepository struct {
	db       DB
	receipts *ReceiptRepository
}

// NewGnplRepository creates a new GnplRepository
func NewGnplRepository(db DB, receipts *ReceiptRepository) *GnplRepository {
	return &GnplRepository{db: db, receipts: receipts}
}

// Originate opens a credit line together with its receipt and tickets.
// The receipt rides the same admission path as a paid booking; the account
// row binds the deferred balance to it.
func (r *GnplRepository) Originate(account *models.GnplAccount, receipt *models.Receipt, voucherCode *string) ([]models.Ticket, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tickets, err := r.receipts.createWithTicketsTx(tx, receipt, voucherCode, nil)
	if err != nil {
		return nil, err
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.ReceiptID = receipt.ID

	err = tx.QueryRowx(`
		INSERT INTO gnpl_accounts (
			id, customer_id, trip_id, receipt_id, quantity,
			principal_amount, principal_paid, penalty_accrued, penalty_paid,
			penalty_periods_accrued, due_date, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, 0, 0, 0, 0, $7, $8
		)
		RETURNING created_at, updated_at`,
		account.ID, account.CustomerID, account.TripID, account.ReceiptID, account.Quantity,
		account.PrincipalAmount, account.DueDate, account.Status,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit origination: %w", err)
	}
	return tickets, nil
}

// GetAccountByID retrieves an account by ID
func (r *GnplRepository) GetAccountByID(accountID string) (*models.GnplAccount, error) {
	account, err := r.scanAccount(r.db.QueryRow(selectGnplColumns+` WHERE id = $1`, accountID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return account, nil
}

// ListByCustomer retrieves a customer's accounts, newest first
func (r *GnplRepository) ListByCustomer(customerID string) ([]models.GnplAccount, error) {
	return r.listAccounts(selectGnplColumns+`
		WHERE customer_id = $1
		ORDER BY created_at DESC`, customerID)
}

// ApproveAccount activates a pending account and settles its receipt's
// pending state: the receipt is approved and the tickets confirmed in the
// same transaction.
func (r *GnplRepository) ApproveAccount(accountID, actor string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var receiptID string
	err = tx.QueryRowx(`
		UPDATE gnpl_accounts
		SET status = 'active', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_approval'
		RETURNING receipt_id`,
		accountID,
	).Scan(&receiptID)
	if err == sql.ErrNoRows {
		return r.accountDecisionConflict(accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to approve account: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE receipts
		SET approval_status = 'approved', decided_by = $2, decided_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND approval_status = 'pending'`,
		receiptID, actor)
	if err != nil {
		return fmt.Errorf("failed to approve receipt: %w", err)
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

// RejectAccount rejects a pending account, rejects its receipt, cancels its
// tickets and optionally returns the seats to the trip's inventory.
func (r *GnplRepository) RejectAccount(accountID, actor, reason string, restoreSeats bool) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var receiptID string
	err = tx.QueryRowx(`
		UPDATE gnpl_accounts
		SET status = 'rejected', updated_at = NOW()
		WHERE id = $1 AND status = 'pending_approval'
		RETURNING receipt_id`,
		accountID,
	).Scan(&receiptID)
	if err == sql.ErrNoRows {
		return r.accountDecisionConflict(accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to reject account: %w", err)
	}

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
			return fmt.Errorf("seat restore for trip %s would exceed total seats", tripID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rejection: %w", err)
	}
	return nil
}

// ApplyPayment records a payment and moves the account balances in one
// transaction. The WHERE clause pins the balances the split was computed
// against; a false return means another payment or a penalty accrual got in
// first and the caller must re-read and retry.
func (r *GnplRepository) ApplyPayment(updated *models.GnplAccount, prev *models.GnplAccount, payment *models.GnplPayment) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE gnpl_accounts
		SET principal_paid = $2, penalty_paid = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		  AND principal_paid = $5
		  AND penalty_paid = $6
		  AND penalty_accrued = $7
		  AND status IN ('active', 'overdue')`,
		updated.ID, updated.PrincipalPaid, updated.PenaltyPaid, updated.Status,
		prev.PrincipalPaid, prev.PenaltyPaid, prev.PenaltyAccrued)
	if err != nil {
		return false, fmt.Errorf("failed to update account balances: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		return false, nil
	}

	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	err = tx.QueryRowx(`
		INSERT INTO gnpl_payments (
			id, account_id, amount, principal_applied, penalty_applied, reference, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at`,
		payment.ID, payment.AccountID, payment.Amount,
		payment.PrincipalApplied, payment.PenaltyApplied, payment.Reference, payment.Status,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit payment: %w", err)
	}
	return true, nil
}

// AccruePenalty adds one or more penalty periods to an account. The
// penalty_periods_accrued guard makes the accrual idempotent: a rerun of the
// same accrual window matches zero rows and reports false without error.
func (r *GnplRepository) AccruePenalty(accountID string, newPeriods int, amount float64, expectedPeriods int) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE gnpl_accounts
		SET penalty_accrued = penalty_accrued + $2,
			penalty_periods_accrued = $3,
			status = 'overdue',
			updated_at = NOW()
		WHERE id = $1
		  AND penalty_periods_accrued = $4
		  AND status IN ('active', 'overdue')`,
		accountID, amount, newPeriods, expectedPeriods)
	if err != nil {
		return false, fmt.Errorf("failed to accrue penalty: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ListPastDue retrieves settleable accounts whose due date has passed
func (r *GnplRepository) ListPastDue(now time.Time) ([]models.GnplAccount, error) {
	return r.listAccounts(selectGnplColumns+`
		WHERE status IN ('active', 'overdue')
		  AND due_date < $1
		ORDER BY due_date`, now)
}

// ListDueForReminder retrieves active accounts due within the window that
// have not yet been reminded for their current due date.
func (r *GnplRepository) ListDueForReminder(windowEnd time.Time) ([]models.GnplAccount, error) {
	return r.listAccounts(selectGnplColumns+`
		WHERE status = 'active'
		  AND due_date <= $1
		  AND (last_reminded_due_date IS NULL OR last_reminded_due_date <> due_date)
		ORDER BY due_date`, windowEnd)
}

// MarkReminded records that a reminder went out for the account's current
// due date, so the reminder job stays once-per-due-date.
func (r *GnplRepository) MarkReminded(accountID string, dueDate time.Time) error {
	_, err := r.db.Exec(`
		UPDATE gnpl_accounts
		SET last_reminded_due_date = $2, updated_at = NOW()
		WHERE id = $1`,
		accountID, dueDate)
	return err
}

func (r *GnplRepository) accountDecisionConflict(accountID string) error {
	var status models.GnplStatus
	err := r.db.Get(&status, `SELECT status FROM gnpl_accounts WHERE id = $1`, accountID)
	if err == sql.ErrNoRows {
		return models.NewDomainError(models.ErrNotFound, "account %s not found", accountID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch account status: %w", err)
	}
	return models.NewDomainError(models.ErrAlreadyDecided,
		"account %s is %s", accountID, status)
}

func (r *GnplRepository) listAccounts(query string, args ...interface{}) ([]models.GnplAccount, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []models.GnplAccount{}
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

const selectGnplColumns = `
	SELECT id, customer_id, trip_id, receipt_id, quantity,
		   principal_amount, principal_paid, penalty_accrued, penalty_paid,
		   penalty_periods_accrued, due_date, last_reminded_due_date, status,
		   created_at, updated_at
	FROM gnpl_accounts`

// scanAccount scans a single account
func (r *GnplRepository) scanAccount(row scanner) (*models.GnplAccount, error) {
	account := &models.GnplAccount{}
	var lastReminded sql.NullTime

	err := row.Scan(
		&account.ID, &account.CustomerID, &account.TripID, &account.ReceiptID, &account.Quantity,
		&account.PrincipalAmount, &account.PrincipalPaid, &account.PenaltyAccrued, &account.PenaltyPaid,
		&account.PenaltyPeriodsAccrued, &account.DueDate, &lastReminded, &account.Status,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastReminded.Valid {
		account.LastRemindedDueDate = &lastReminded.Time
	}
	return account, nil
}
