package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/models"
)

func TestReconcile(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewReconciliationService(database.NewReceiptRepository(db), testLogger())

	from := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC).Add(24*time.Hour - time.Second)

	rows := sqlmock.NewRows(receiptColumns())
	receiptRow(rows, "FT25AAA111", 850, "approved")
	receiptRow(rows, "FT25BBB222", 1700, "pending")

	mock.ExpectQuery(`SELECT (.+) FROM receipts`).
		WithArgs(from, to).
		WillReturnRows(rows)

	report, err := service.Reconcile(&models.ReconcileRequest{
		From: "2025-08-01",
		To:   "2025-08-02",
		Lines: []models.StatementLine{
			{Reference: "ft25aaa111", Amount: 850},    // matches after normalization
			{Reference: "FT25BBB222", Amount: 1600},   // amount disagrees
			{Reference: "FT25CCC333", Amount: 100},    // no such receipt
			{Reference: "!!", Amount: 5},              // unusable reference
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.TotalReceipts)
	assert.Equal(t, 1, report.Summary.ApprovedReceipts)
	assert.InDelta(t, 850.0, report.Summary.ApprovedAmount, 1e-9)
	assert.Equal(t, 1, report.Summary.PendingReceipts)
	assert.InDelta(t, 1700.0, report.Summary.PendingAmount, 1e-9)

	assert.Equal(t, 1, report.Summary.LinesMatched)
	assert.Equal(t, 1, report.Summary.LinesMismatched)
	assert.Equal(t, 2, report.Summary.LinesMissing)

	require.Len(t, report.Lines, 4)
	assert.Equal(t, models.LineMatched, report.Lines[0].Outcome)
	assert.Equal(t, models.LineMismatched, report.Lines[1].Outcome)
	require.NotNil(t, report.Lines[1].ReceiptAmount)
	assert.InDelta(t, 1700.0, *report.Lines[1].ReceiptAmount, 1e-9)
	assert.Equal(t, models.LineMissing, report.Lines[2].Outcome)
	assert.Equal(t, models.LineMissing, report.Lines[3].Outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileFiltersByMethod(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewReconciliationService(database.NewReceiptRepository(db), testLogger())

	from := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24*time.Hour - time.Second)
	method := models.PaymentMethodTelebirr

	mock.ExpectQuery(`SELECT (.+) FROM receipts`).
		WithArgs(from, to, method).
		WillReturnRows(sqlmock.NewRows(receiptColumns()))

	report, err := service.Reconcile(&models.ReconcileRequest{
		From:          "2025-08-01",
		To:            "2025-08-01",
		PaymentMethod: &method,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Summary.TotalReceipts)
	assert.Empty(t, report.Lines)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileRangeValidation(t *testing.T) {
	service := NewReconciliationService(nil, testLogger())

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"Bad From", "2025/08/01", "2025-08-02"},
		{"Bad To", "2025-08-01", "tomorrow"},
		{"Reversed Range", "2025-08-02", "2025-08-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Reconcile(&models.ReconcileRequest{From: tt.from, To: tt.to})
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.ErrValidationMismatch))
		})
	}
}
