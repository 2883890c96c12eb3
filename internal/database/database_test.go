package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "UPDATE usage_records SET used = used + ? WHERE scope_key = ? AND used + ? <= limit_value"

	assert.Equal(t, q, rebind(DriverMySQL, q))
	assert.Equal(t,
		"UPDATE usage_records SET used = used + $1 WHERE scope_key = $2 AND used + $3 <= limit_value",
		rebind(DriverPostgres, q))
	assert.Equal(t, "SELECT 1", rebind(DriverPostgres, "SELECT 1"))
}

func TestPostgresQueriesAreRebound(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, DriverPostgres)
	mock.ExpectExec("DELETE FROM users WHERE id = $1").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = db.ExecContext(context.Background(), "DELETE FROM users WHERE id = ?", "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, DriverMySQL)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = db.WithTx(context.Background(), func(tx *Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxCommits(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, DriverMySQL)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = db.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE users SET status = ?", "active")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1213}))
	assert.True(t, IsDuplicateKey(&pq.Error{Code: "23505"}))
	assert.False(t, IsDuplicateKey(&pq.Error{Code: "23503"}))
	assert.False(t, IsDuplicateKey(errors.New("duplicate")))
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, DriverPostgres)
	for range Schema(DriverPostgres) {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
