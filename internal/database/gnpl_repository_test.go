package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/models"
)

func TestGnplApplyPayment(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGnplRepository(db, NewReceiptRepository(db))

	prev := &models.GnplAccount{
		ID:              "account-1",
		PrincipalAmount: 1700,
		PrincipalPaid:   0,
		PenaltyAccrued:  85,
		PenaltyPaid:     0,
		Status:          models.GnplStatusOverdue,
	}
	updated := *prev
	updated.PrincipalPaid = 415
	updated.PenaltyPaid = 85

	payment := &models.GnplPayment{
		AccountID:        "account-1",
		Amount:           500,
		PrincipalApplied: 415,
		PenaltyApplied:   85,
		Reference:        "FT25PAY001",
		Status:           models.GnplPaymentApproved,
	}

	t.Run("Balances Unchanged Since Read", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE gnpl_accounts`).
			WithArgs("account-1", 415.0, 85.0, updated.Status, 0.0, 0.0, 85.0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO gnpl_payments`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		ok, err := repo.ApplyPayment(&updated, prev, payment)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotEmpty(t, payment.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lost Race Reports False", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE gnpl_accounts`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		ok, err := repo.ApplyPayment(&updated, prev, payment)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGnplAccruePenalty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGnplRepository(db, NewReceiptRepository(db))

	t.Run("First Accrual", func(t *testing.T) {
		mock.ExpectExec(`UPDATE gnpl_accounts`).
			WithArgs("account-1", 85.0, 1, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.AccruePenalty("account-1", 1, 85, 0)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replay Is A No-Op", func(t *testing.T) {
		mock.ExpectExec(`UPDATE gnpl_accounts`).
			WithArgs("account-1", 85.0, 1, 0).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.AccruePenalty("account-1", 1, 85, 0)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGnplApproveAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGnplRepository(db, NewReceiptRepository(db))

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE gnpl_accounts`).
			WithArgs("account-1").
			WillReturnRows(sqlmock.NewRows([]string{"receipt_id"}).AddRow("receipt-1"))
		mock.ExpectExec(`UPDATE receipts`).
			WithArgs("receipt-1", "admin-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tickets`).
			WithArgs("receipt-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.ApproveAccount("account-1", "admin-1")
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Decided", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE gnpl_accounts`).
			WithArgs("account-1").
			WillReturnRows(sqlmock.NewRows([]string{"receipt_id"}))
		mock.ExpectQuery(`SELECT status FROM gnpl_accounts`).
			WithArgs("account-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
		mock.ExpectRollback()

		err := repo.ApproveAccount("account-1", "admin-1")
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrAlreadyDecided))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGnplListDueForReminder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGnplRepository(db, NewReceiptRepository(db))

	windowEnd := time.Now().AddDate(0, 0, 2)
	due := time.Now().AddDate(0, 0, 1)
	now := time.Now()

	mock.ExpectQuery(`SELECT (.+) FROM gnpl_accounts`).
		WithArgs(windowEnd).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "customer_id", "trip_id", "receipt_id", "quantity",
			"principal_amount", "principal_paid", "penalty_accrued", "penalty_paid",
			"penalty_periods_accrued", "due_date", "last_reminded_due_date", "status",
			"created_at", "updated_at",
		}).AddRow(
			"account-1", "customer-1", "trip-1", "receipt-1", 2,
			1700.0, 0.0, 0.0, 0.0,
			0, due, nil, "active",
			now, now,
		))

	accounts, err := repo.ListDueForReminder(windowEnd)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, 1700.0, accounts[0].Outstanding())
	assert.Nil(t, accounts[0].LastRemindedDueDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}
