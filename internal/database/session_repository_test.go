package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/models"
)

func TestSessionReplace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	t.Run("Cancels Prior Sessions And Inserts", func(t *testing.T) {
		now := time.Now()
		session := &models.BookingSession{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodTelebirr,
			Quantity:      2,
			BaseAmount:    1700,
			FinalAmount:   1700,
			Currency:      "ETB",
			Status:        models.SessionStatusAwaitingReceipt,
		}

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE booking_sessions`).
			WithArgs(session.CustomerID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO booking_sessions`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		err := repo.Replace(session)
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionGetOpen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	t.Run("Found", func(t *testing.T) {
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("customer-1", "trip-1", models.PaymentMethodCBE).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "customer_id", "trip_id", "payment_method", "quantity",
				"voucher_code", "discount_percent", "base_amount", "discount_amount",
				"final_amount", "currency", "status", "created_at", "updated_at",
			}).AddRow(
				"session-1", "customer-1", "trip-1", "cbe", 1,
				nil, 0.0, 850.0, 0.0,
				850.0, "ETB", "awaiting_receipt", now, now,
			))

		session, err := repo.GetOpen("customer-1", "trip-1", models.PaymentMethodCBE)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "session-1", session.ID)
		assert.Nil(t, session.VoucherCode)
		assert.False(t, session.Status.IsTerminal())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("None Open", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("customer-1", "trip-1", models.PaymentMethodCash).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		session, err := repo.GetOpen("customer-1", "trip-1", models.PaymentMethodCash)
		require.NoError(t, err)
		assert.Nil(t, session)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionExpireStale(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	cutoff := time.Now().Add(-time.Hour)
	mock.ExpectExec(`UPDATE booking_sessions`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.ExpireStale(cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	assert.NoError(t, mock.ExpectationsWereMet())
}
