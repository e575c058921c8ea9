package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// newMockDB returns a DB backed by sqlmock. The sqlx wrapper keeps Get,
// Select and Beginx working against the mock.
func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	return &PostgresDB{DB: sqlx.NewDb(raw, "sqlmock")}, mock
}
