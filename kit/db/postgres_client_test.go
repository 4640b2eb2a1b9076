package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newSQLMockClient(t *testing.T, opts ...PostgresOption) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewPostgresClient(sqlDB, opts...), mock
}

func TestPostgresClient(t *testing.T) {
	ctx := context.Background()

	var tests = []struct {
		name string
		act  func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock)
	}{
		{
			name: "get decodes body",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectQuery(qDocumentGet).WithArgs("transactions", "t1").
					WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"status":"processing"}`)))

				doc, err := c.Get(ctx, "transactions", "t1")
				require.NoError(t, err)
				require.Equal(t, "processing", doc["status"])
			},
		},
		{
			name: "get missing returns not found",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectQuery(qDocumentGet).WithArgs("transactions", "t1").WillReturnError(sql.ErrNoRows)

				_, err := c.Get(ctx, "transactions", "t1")
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "get driver error is unavailable",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectQuery(qDocumentGet).WithArgs("transactions", "t1").WillReturnError(errors.New("conn reset"))

				_, err := c.Get(ctx, "transactions", "t1")
				require.ErrorIs(t, err, ErrUnavailable)
			},
		},
		{
			name: "put upserts the normalized body",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectExec(qDocumentPut).WithArgs("transactions", "t1", `{"status":"initiated"}`).
					WillReturnResult(sqlmock.NewResult(0, 1))

				require.NoError(t, c.Put(ctx, "transactions", "t1", Document{"status": "initiated"}))
			},
		},
		{
			name: "put rejects nil before touching the database",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				require.ErrorIs(t, c.Put(ctx, "transactions", "t1", Document{"status": nil}), ErrNilValue)
			},
		},
		{
			name: "patch missing returns not found",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectExec(qDocumentPatch).WithArgs("transactions", "t1", `{"a":"b"}`).
					WillReturnResult(sqlmock.NewResult(0, 0))

				require.ErrorIs(t, c.Patch(ctx, "transactions", "t1", Document{"a": "b"}), ErrNotFound)
			},
		},
		{
			name: "patch if applied",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectExec(patchIfStatement("status")).
					WithArgs("transactions", "t1", `{"status":"succeeded"}`, `"processing"`).
					WillReturnResult(sqlmock.NewResult(0, 1))

				err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
				require.NoError(t, err)
			},
		},
		{
			name: "patch if with stale condition conflicts",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectExec(patchIfStatement("status")).
					WithArgs("transactions", "t1", `{"status":"succeeded"}`, `"processing"`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(qDocumentExists).WithArgs("transactions", "t1").
					WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

				err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
				require.ErrorIs(t, err, ErrConflict)
			},
		},
		{
			name: "patch if on missing row is not found",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectExec(patchIfStatement("status")).
					WithArgs("transactions", "t1", `{"status":"succeeded"}`, `"processing"`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(qDocumentExists).WithArgs("transactions", "t1").WillReturnError(sql.ErrNoRows)

				err := c.PatchIf(ctx, "transactions", "t1", Condition{Field: "status", Value: "processing"}, Document{"status": "succeeded"})
				require.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "query returns rows in order",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				mock.ExpectQuery(queryStatement("orderId")).WithArgs("transactions", `"o1"`).
					WillReturnRows(sqlmock.NewRows([]string{"body"}).
						AddRow([]byte(`{"id":"t1","orderId":"o1"}`)).
						AddRow([]byte(`{"id":"t2","orderId":"o1"}`)))

				docs, err := c.Query(ctx, "transactions", "orderId", OpEqual, "o1")
				require.NoError(t, err)
				require.Len(t, docs, 2)
				require.Equal(t, "t1", docs[0]["id"])
			},
		},
		{
			name: "query rejects field injection",
			act: func(t *testing.T, c *PostgresClient, mock sqlmock.Sqlmock) {
				_, err := c.Query(ctx, "transactions", "x'; DROP TABLE documents; --", OpEqual, "o1")
				require.ErrorIs(t, err, ErrInvalidFieldRef)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newSQLMockClient(t)
			tt.act(t, c, mock)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresClient_Migrate(t *testing.T) {
	c, mock := newSQLMockClient(t, WithPostgresIndex("transactions", "gatewayOrderId"))

	mock.ExpectExec(qDocumentsSchema).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(indexStatement("transactions", "gatewayOrderId")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, c.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
