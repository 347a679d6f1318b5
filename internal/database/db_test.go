package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsSplitsSchema(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS sports")
	assert.Contains(t, stmts[3], "idx_reservations_venue_status (venue_id, status)")
	for _, s := range stmts {
		assert.NotContains(t, s, "--")
	}
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	for _, s := range Statements() {
		mock.ExpectExec(s).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(Statements()[0]).WillReturnError(errors.New("access denied"))
	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "statement 1")
}
