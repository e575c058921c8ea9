package services

import (
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/database"
)

func newMockDB(t *testing.T) (database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return &database.PostgresDB{DB: sqlx.NewDb(raw, "sqlmock")}, mock
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func gnplAccountColumns() []string {
	return []string{
		"id", "customer_id", "trip_id", "receipt_id", "quantity",
		"principal_amount", "principal_paid", "penalty_accrued", "penalty_paid",
		"penalty_periods_accrued", "due_date", "last_reminded_due_date", "status",
		"created_at", "updated_at",
	}
}

func receiptColumns() []string {
	return []string{
		"id", "reference", "customer_id", "trip_id", "payment_method", "quantity",
		"base_amount", "discount_amount", "final_amount", "paid_amount", "currency",
		"attachment_url", "receipt_date", "score", "flags", "approval_status",
		"reject_reason", "decided_by", "decided_at", "created_at", "updated_at",
	}
}

func receiptRow(rows *sqlmock.Rows, reference string, paid float64, status string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(
		"receipt-"+reference, reference, "customer-1", "trip-1", "telebirr", 1,
		paid, 0.0, paid, paid, "ETB",
		nil, nil, 100, "{}", status,
		nil, nil, nil, now, now,
	)
}
