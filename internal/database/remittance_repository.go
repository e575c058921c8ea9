package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tripline/booking-backend/internal/models"
)

// RemittanceRepository handles database operations for manual cash
// remittance records
type RemittanceRepository struct {
	db DB
}

// NewRemittanceRepository creates a new RemittanceRepository
func NewRemittanceRepository(db DB) *RemittanceRepository {
	return &RemittanceRepository{db: db}
}

// Create records a cash handover report in pending status
func (r *RemittanceRepository) Create(rem *models.ManualCashRemittance) error {
	if rem.ID == "" {
		rem.ID = uuid.New().String()
	}
	rem.Status = models.RemittanceStatusPending

	err := r.db.QueryRow(`
		INSERT INTO manual_cash_remittances (id, admin_id, amount, note, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		rem.ID, rem.AdminID, rem.Amount, rem.Note, rem.Status,
	).Scan(&rem.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create remittance: %w", err)
	}
	return nil
}

// Decide moves a pending remittance to approved or rejected. Concurrent
// decisions lose to the conditional update.
func (r *RemittanceRepository) Decide(remittanceID, actor string, status models.RemittanceStatus) error {
	if status != models.RemittanceStatusApproved && status != models.RemittanceStatusRejected {
		return fmt.Errorf("invalid remittance decision: %s", status)
	}

	result, err := r.db.Exec(`
		UPDATE manual_cash_remittances
		SET status = $2, decided_by = $3, decided_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		remittanceID, status, actor)
	if err != nil {
		return fmt.Errorf("failed to decide remittance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var current models.RemittanceStatus
		err := r.db.Get(&current, `SELECT status FROM manual_cash_remittances WHERE id = $1`, remittanceID)
		if err == sql.ErrNoRows {
			return models.NewDomainError(models.ErrNotFound, "remittance %s not found", remittanceID)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch remittance status: %w", err)
		}
		return models.NewDomainError(models.ErrAlreadyDecided,
			"remittance %s is %s", remittanceID, current)
	}
	return nil
}

// ListByAdmin retrieves an admin's remittance reports, newest first
func (r *RemittanceRepository) ListByAdmin(adminID string) ([]models.ManualCashRemittance, error) {
	rows, err := r.db.Query(`
		SELECT id, admin_id, amount, note, status, decided_by, decided_at, created_at
		FROM manual_cash_remittances
		WHERE admin_id = $1
		ORDER BY created_at DESC`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	remittances := []models.ManualCashRemittance{}
	for rows.Next() {
		rem := models.ManualCashRemittance{}
		var note sql.NullString
		var decidedBy sql.NullString
		var decidedAt sql.NullTime

		err := rows.Scan(&rem.ID, &rem.AdminID, &rem.Amount, &note, &rem.Status, &decidedBy, &decidedAt, &rem.CreatedAt)
		if err != nil {
			return nil, err
		}
		if note.Valid {
			rem.Note = &note.String
		}
		if decidedBy.Valid {
			rem.DecidedBy = &decidedBy.String
		}
		if decidedAt.Valid {
			rem.DecidedAt = &decidedAt.Time
		}
		remittances = append(remittances, rem)
	}
	return remittances, rows.Err()
}
