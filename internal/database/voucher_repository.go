package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/tripline/booking-backend/internal/models"
)

// VoucherRepository handles database operations for discount vouchers
type VoucherRepository struct {
	db DB
}

// NewVoucherRepository creates a new VoucherRepository
func NewVoucherRepository(db DB) *VoucherRepository {
	return &VoucherRepository{db: db}
}

// Create creates a new voucher
func (r *VoucherRepository) Create(v *models.DiscountVoucher) error {
	query := `
		INSERT INTO discount_vouchers (code, percent, used_count, usage_limit, trip_id, expires_at)
		VALUES ($1, $2, 0, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRow(query, v.Code, v.Percent, v.UsageLimit, v.TripID, v.ExpiresAt).
		Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// GetByCode retrieves a voucher by code
func (r *VoucherRepository) GetByCode(code string) (*models.DiscountVoucher, error) {
	query := `
		SELECT code, percent, used_count, usage_limit, trip_id, expires_at, created_at
		FROM discount_vouchers
		WHERE code = $1
	`

	v := &models.DiscountVoucher{}
	var tripID sql.NullString
	var expiresAt sql.NullTime

	err := r.db.QueryRow(query, code).Scan(
		&v.Code, &v.Percent, &v.UsedCount, &v.UsageLimit, &tripID, &expiresAt, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch voucher: %w", err)
	}

	if tripID.Valid {
		v.TripID = &tripID.String
	}
	if expiresAt.Valid {
		v.ExpiresAt = &expiresAt.Time
	}
	return v, nil
}

// consumeUseTx atomically claims one use of the voucher. The used_count guard
// makes concurrent claims of the last use mutually exclusive; a false return
// means the voucher is exhausted or expired. Runs inside the admission
// transaction so a failed admission never consumes a use.
func consumeUseTx(tx *sqlx.Tx, code string) (bool, error) {
	result, err := tx.Exec(`
		UPDATE discount_vouchers
		SET used_count = used_count + 1
		WHERE code = $1
		  AND used_count < usage_limit
		  AND (expires_at IS NULL OR expires_at > NOW())`,
		code)
	if err != nil {
		return false, fmt.Errorf("failed to consume voucher use: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
