package services

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

type fakeInitiator struct {
	redirectURL string
	err         error
	calls       int
}

func (f *fakeInitiator) Initiate(amount float64, currency, reference, returnURL string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.redirectURL, nil
}

func newBookingService(db database.DB, gateway PaymentInitiator, cfg config.BookingConfig) *BookingService {
	tripRepo := database.NewTripRepository(db)
	pricing := NewPricingService(tripRepo, database.NewVoucherRepository(db), "ETB", testLogger())
	return NewBookingService(
		tripRepo,
		database.NewSessionRepository(db),
		database.NewReceiptRepository(db),
		pricing,
		gateway,
		cfg,
		"https://app.example.com/done",
		testLogger(),
	)
}

func sessionColumns() []string {
	return []string{
		"id", "customer_id", "trip_id", "payment_method", "quantity",
		"voucher_code", "discount_percent", "base_amount", "discount_amount",
		"final_amount", "currency", "status", "created_at", "updated_at",
	}
}

func TestStartBooking(t *testing.T) {
	cfg := config.BookingConfig{MaxTicketsPerBooking: 10}

	t.Run("Manual Method", func(t *testing.T) {
		db, mock := newMockDB(t)
		gateway := &fakeInitiator{}
		service := newBookingService(db, gateway, cfg)
		now := time.Now()

		// Quote and the advisory availability check each read the trip.
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE booking_sessions`).
			WithArgs("customer-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO booking_sessions`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		resp, err := service.StartBooking(&models.StartBookingRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodTelebirr,
			Quantity:      2,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, models.SessionStatusAwaitingReceipt, resp.Status)
		assert.InDelta(t, 1700.0, resp.Quote.FinalAmount, 1e-9)
		assert.Nil(t, resp.RedirectURL)
		assert.Equal(t, 0, gateway.calls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Automated Method Returns Redirect", func(t *testing.T) {
		db, mock := newMockDB(t)
		gateway := &fakeInitiator{redirectURL: "https://pay.example.com/c/abc"}
		service := newBookingService(db, gateway, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE booking_sessions`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO booking_sessions`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		resp, err := service.StartBooking(&models.StartBookingRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodGateway,
			Quantity:      1,
		})
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusAwaitingAutoPayment, resp.Status)
		require.NotNil(t, resp.RedirectURL)
		assert.Equal(t, "https://pay.example.com/c/abc", *resp.RedirectURL)
		assert.Equal(t, 1, gateway.calls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Checkout Failure Keeps Session Open", func(t *testing.T) {
		db, mock := newMockDB(t)
		gateway := &fakeInitiator{err: errors.New("gateway down")}
		service := newBookingService(db, gateway, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE booking_sessions`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO booking_sessions`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		_, err := service.StartBooking(&models.StartBookingRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodGateway,
			Quantity:      1,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start checkout")

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Enough Seats", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		lowSeats := sqlmock.NewRows(tripColumns()).AddRow(
			"trip-1", "Addis - Hawassa Express", "Addis Ababa", "Hawassa", 850.0, "ETB",
			45, 1, "active", now.AddDate(0, 0, 7),
			now, now,
		)
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(lowSeats)

		_, err := service.StartBooking(&models.StartBookingRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodTelebirr,
			Quantity:      2,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrSoldOut))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Over Booking Cap", func(t *testing.T) {
		service := newBookingService(nil, &fakeInitiator{}, config.BookingConfig{MaxTicketsPerBooking: 5})

		_, err := service.StartBooking(&models.StartBookingRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodTelebirr,
			Quantity:      6,
		})
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInvalidQuantity))
	})
}

func TestSubmitReceipt(t *testing.T) {
	cfg := config.BookingConfig{MaxTicketsPerBooking: 10}

	submitRequest := func() *models.SubmitReceiptRequest {
		return &models.SubmitReceiptRequest{
			CustomerID:    "customer-1",
			TripID:        "trip-1",
			PaymentMethod: models.PaymentMethodTelebirr,
			Reference:     "che7gk82xv",
			PaidAmount:    1700,
		}
	}

	openSessionRows := func(now time.Time) *sqlmock.Rows {
		return sqlmock.NewRows(sessionColumns()).AddRow(
			"session-1", "customer-1", "trip-1", "telebirr", 2,
			nil, 0.0, 1700.0, 0.0,
			1700.0, "ETB", "awaiting_receipt", now, now,
		)
	}

	t.Run("Admits Against Session Snapshot", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("customer-1", "trip-1", models.PaymentMethodTelebirr).
			WillReturnRows(openSessionRows(now))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).
			WithArgs("trip-1", 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("CHE7GK82XV").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO receipts`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`SELECT COUNT`).
			WithArgs("trip-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`^SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO tickets`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`RELEASE SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`^SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO tickets`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`RELEASE SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE booking_sessions`).
			WithArgs("session-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		resp, err := service.SubmitReceipt(submitRequest())
		require.NoError(t, err)
		assert.Equal(t, "CHE7GK82XV", resp.Reference)
		assert.Len(t, resp.Tickets, 2)
		// No attachment and no link is an advisory flag, never a blocker.
		assert.Contains(t, resp.Flags, "no_attachment")
		assert.Equal(t, 85, resp.Score)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Link Date Conflict Is Advisory", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WithArgs("trip-1").
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WillReturnRows(openSessionRows(now))
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE trips`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT EXISTS`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(`INSERT INTO receipts`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectQuery(`SELECT COUNT`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`^SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO tickets`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`RELEASE SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`^SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO tickets`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectExec(`RELEASE SAVEPOINT`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE booking_sessions`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		req := submitRequest()
		typed := now.AddDate(0, 0, 1).Format("2006-01-02")
		req.ReceiptDate = &typed
		req.ReceiptLink = "https://transactioninfo.ethiotelecom.et/receipt/CHE7GK82XV?date=" +
			now.AddDate(0, 0, 2).Format("2006-01-02")

		resp, err := service.SubmitReceipt(req)
		require.NoError(t, err)
		assert.Contains(t, resp.Flags, "provider_date_mismatch")
		assert.NotContains(t, resp.Flags, "no_attachment")
		assert.Equal(t, 85, resp.Score)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Insufficient Amount", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WillReturnRows(openSessionRows(now))

		req := submitRequest()
		req.PaidAmount = 1500
		_, err := service.SubmitReceipt(req)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInsufficientAmount))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Receipt Date Outside Sale Window", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM trips`).
			WillReturnRows(activeTripRows(850))
		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WillReturnRows(openSessionRows(now))

		req := submitRequest()
		stale := now.AddDate(0, 0, -30).Format("2006-01-02")
		req.ReceiptDate = &stale
		_, err := service.SubmitReceipt(req)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrReceiptDateOutOfRange))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Strict Mode Blocks Link Conflicts", func(t *testing.T) {
		db, _ := newMockDB(t)
		strict := cfg
		strict.StrictValidation = true
		service := newBookingService(db, &fakeInitiator{}, strict)

		req := submitRequest()
		req.Reference = "FT25OTHER1"
		req.ReceiptLink = "https://transactioninfo.ethiotelecom.et/receipt/CHE7GK82XV"
		_, err := service.SubmitReceipt(req)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrValidationMismatch))
	})

	t.Run("No Reference Anywhere", func(t *testing.T) {
		db, _ := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)

		req := submitRequest()
		req.Reference = ""
		_, err := service.SubmitReceipt(req)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrReferenceRequired))
	})
}

func TestConfirmGatewayPayment(t *testing.T) {
	cfg := config.BookingConfig{MaxTicketsPerBooking: 10}

	t.Run("Settled Session Ignores Redelivery", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("session-1").
			WillReturnRows(sqlmock.NewRows(sessionColumns()).AddRow(
				"session-1", "customer-1", "trip-1", "gateway", 1,
				nil, 0.0, 850.0, 0.0,
				850.0, "ETB", "completed", now, now,
			))

		err := service.ConfirmGatewayPayment("session-1", "GW-REF-1", 850)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Short Settlement Fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)
		now := time.Now()

		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("session-1").
			WillReturnRows(sqlmock.NewRows(sessionColumns()).AddRow(
				"session-1", "customer-1", "trip-1", "gateway", 1,
				nil, 0.0, 850.0, 0.0,
				850.0, "ETB", "awaiting_auto_payment", now, now,
			))

		err := service.ConfirmGatewayPayment("session-1", "GW-REF-1", 500)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrInsufficientAmount))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Session", func(t *testing.T) {
		db, mock := newMockDB(t)
		service := newBookingService(db, &fakeInitiator{}, cfg)

		mock.ExpectQuery(`SELECT (.+) FROM booking_sessions`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(sessionColumns()))

		err := service.ConfirmGatewayPayment("missing", "GW-REF-1", 850)
		require.Error(t, err)
		assert.True(t, models.IsKind(err, models.ErrNotFound))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
