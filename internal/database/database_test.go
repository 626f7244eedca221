package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(sqlx.NewDb(raw, DriverName), logger), mock
}

func TestQuery_ReturnsRowsAsStrings(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT account_key FROM accounts WHERE account_id = $1")).
		WithArgs("mydata://account/1").
		WillReturnRows(sqlmock.NewRows([]string{"account_key"}).AddRow([]byte(`{"kid":"k"}`)))

	rows, err := db.Query(context.Background(), NewStatement("SELECT account_key FROM accounts WHERE account_id = $1", "mydata://account/1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"kid":"k"}`, rows[0].String("account_key"))
	assert.Equal(t, "", rows[0].String("missing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMultiple_PreservesOrder(t *testing.T) {
	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("FROM accounts").
		WillReturnRows(sqlmock.NewRows([]string{"account_key"}).AddRow("key"))
	mock.ExpectQuery("FROM services").
		WillReturnRows(sqlmock.NewRows([]string{"events_uri"}))

	results, err := db.Multiple(context.Background(), []Statement{
		NewStatement("SELECT account_key FROM accounts WHERE account_id = $1", "a"),
		NewStatement("SELECT events_uri FROM services WHERE service_id = $1", "s"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0], 1)
	assert.Len(t, results[1], 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMultiple_PropagatesError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("FROM accounts").WillReturnError(errors.New("connection reset"))

	_, err := db.Multiple(context.Background(), []Statement{
		NewStatement("SELECT account_key FROM accounts WHERE account_id = $1", "a"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestTransaction_CommitsAllStatements(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO connections").WithArgs("c1", "a1", "s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO permissions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Transaction(context.Background(), []Statement{
		NewStatement("INSERT INTO connections(connection_id, account_id, service_id) VALUES($1, $2, $3)", "c1", "a1", "s1"),
		NewStatement("INSERT INTO permissions(id) VALUES($1)", "p1"),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO connections").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO permissions").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := db.Transaction(context.Background(), []Statement{
		NewStatement("INSERT INTO connections(connection_id) VALUES($1)", "c1"),
		NewStatement("INSERT INTO permissions(id) VALUES($1)", "p1"),
		NewStatement("INSERT INTO permissions(id) VALUES($1)", "p2"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT NOW()")).WillReturnError(errors.New("down"))
	assert.Error(t, db.HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Directions(t *testing.T) {
	db, _ := newMockDB(t)

	called := ""
	stub := func(name string) func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
			called = name
			if dir != "." {
				return errors.New("unexpected dir")
			}
			return nil
		}
	}

	origUp, origDown, origStatus := gooseUpContext, gooseDownContext, gooseStatusContext
	gooseUpContext, gooseDownContext, gooseStatusContext = stub("up"), stub("down"), stub("status")
	defer func() { gooseUpContext, gooseDownContext, gooseStatusContext = origUp, origDown, origStatus }()

	for _, dir := range []string{"up", "down", "status"} {
		require.NoError(t, db.Migrate(context.Background(), dir))
		assert.Equal(t, dir, called)
	}

	assert.Error(t, db.Migrate(context.Background(), "sideways"))
}
