package duckdb

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesetl/internal/storage"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Repository{db: db}, mock
}

func TestDialect(t *testing.T) {
	assert.Equal(t, `"staging"."dim_customers"`, Dialect.FQN("staging", "dim_customers"))
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "staging"`, Dialect.CreateSchema("staging"))
	assert.Equal(t, "DOUBLE", Dialect.ColumnType("number"))
}

func TestCopyFrom(t *testing.T) {
	r, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO "staging"."dim_products" ("product_id", "price") VALUES (?, ?)`)
	prep.ExpectExec().WithArgs("P00001", 9.5).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("P00002", nil).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := r.CopyFrom(context.Background(), "staging", "dim_products",
		[]string{"product_id", "price"},
		[][]any{{"P00001", 9.5}, {"P00002", nil}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromRollsBackOnError(t *testing.T) {
	r, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO "t" ("a") VALUES (?)`)
	prep.ExpectExec().WithArgs("x").WillReturnError(errors.New("constraint"))
	mock.ExpectRollback()

	_, err := r.CopyFrom(context.Background(), "", "t", []string{"a"}, [][]any{{"x"}})
	require.ErrorContains(t, err, "insert row 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactoryRegistration(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() {}, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "duckdb", DSN: "bia.duckdb"})
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, "bia.duckdb", got.DSN)
	assert.Contains(t, storage.ListKinds(), "duckdb")
}

func TestNewRepositoryRequiresDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{})
	assert.Error(t, err)
}
