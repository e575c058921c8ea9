package services

import (
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

func newSettlementService(db database.DB, cfg config.BookingConfig) *SettlementService {
	tripRepo := database.NewTripRepository(db)
	pricing := NewPricingService(tripRepo, database.NewVoucherRepository(db), "ETB", testLogger())
	return NewSettlementService(
		database.NewReceiptRepository(db),
		database.NewTicketRepository(db),
		database.NewRemittanceRepository(db),
		pricing,
		&captureNotifier{},
		cfg,
		testLogger(),
	)
}

func TestDecideValidation(t *testing.T) {
	service := newSettlementService(nil, config.BookingConfig{})

	t.Run("Reject Needs A Reason", func(t *testing.T) {
		err := service.Decide("receipt-1", "admin-1", &models.DecideRequest{
			Action: models.DecisionReject,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrValidationMismatch))
	})

	t.Run("Rollback Needs A Confirmation Ticket", func(t *testing.T) {
		err := service.Decide("receipt-1", "admin-1", &models.DecideRequest{
			Action: models.DecisionRollback,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrRollbackConfirmation))
	})

	t.Run("Unknown Action", func(t *testing.T) {
		err := service.Decide("receipt-1", "admin-1", &models.DecideRequest{
			Action: "escalate",
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrValidationMismatch))
	})
}

func TestManualSale(t *testing.T) {
	cfg := config.BookingConfig{MaxTicketsPerBooking: 10}

	t.Run("Cash Sale Mints A Reference", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newSettlementService(db, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).
			WithArgs("trip-1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO receipts`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`SELECT COUNT`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
		mock.ExpectExec(`^SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO tickets`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`RELEASE SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE receipts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE tickets`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		resp, err := service.ManualSale("admin-1", &models.ManualSaleRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			Quantity:      1,
			PaymentMethod: models.PaymentMethodCash,
			PaidAmount:    850,
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(resp.Reference, "CASH-"))
		assert.Len(t, resp.Tickets, 1)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Underpaid Sale Is Refused", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newSettlementService(db, cfg)

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))

		_, err := service.ManualSale("admin-1", &models.ManualSaleRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			Quantity:      2,
			PaymentMethod: models.PaymentMethodCash,
			PaidAmount:    1000,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInsufficientAmount))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Quantity Bounds", func(t *testing.T) {
		service := newSettlementService(nil, config.BookingConfig{MaxTicketsPerBooking: 5})

		_, err := service.ManualSale("admin-1", &models.ManualSaleRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			Quantity:      6,
			PaymentMethod: models.PaymentMethodCash,
			PaidAmount:    5100,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInvalidQuantity))
	})
}

func TestCreateRemittance(t *testing.T) {
	t.Run("Records Pending Report", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newSettlementService(db, config.BookingConfig{})

		mock.ExpectQuery(`INSERT INTO manual_cash_remittances`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		rem, err := service.CreateRemittance("admin-1", &models.CreateRemittanceRequest{
			Amount: 4250.505,
		})
		require.NoError(t, err)
		assert.Equal(t, "admin-1", rem.AdminID)
		assert.InDelta(t, 4250.51, rem.Amount, 1e-9)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Non-Positive Amount", func(t *testing.T) {
		service := newSettlementService(nil, config.BookingConfig{})

		_, err := service.CreateRemittance("admin-1", &models.CreateRemittanceRequest{Amount: 0})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInvalidAmount))
	})
}
