/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/metadata"
	"github.com/meridianerp/finance-core/transactor"
)

func TestMetadata(t *testing.T) {
	t.Run("missing connection string", func(t *testing.T) {
		var m pgMetadata
		err := m.InitWithMetadata(metadata.Base{Properties: map[string]string{}})
		require.Error(t, err)
		assert.ErrorContains(t, err, "missing connection string")
	})

	t.Run("defaults", func(t *testing.T) {
		var m pgMetadata
		err := m.InitWithMetadata(metadata.Base{Properties: map[string]string{
			"connectionString": "host=localhost",
		}})
		require.NoError(t, err)
		assert.Equal(t, defaultTimeout, m.Timeout)
	})

	t.Run("pool sizing", func(t *testing.T) {
		var m pgMetadata
		err := m.InitWithMetadata(metadata.Base{Properties: map[string]string{
			"connectionString": "host=localhost",
			"maxConns":         "10",
			"timeout":          "5s",
		}})
		require.NoError(t, err)

		config, err := m.GetPgxPoolConfig()
		require.NoError(t, err)
		assert.Equal(t, int32(10), config.MaxConns)
	})
}

func newTestDriver(t *testing.T) (*Driver, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	d := NewDriver(logger.NewLogger("postgres.test"))
	d.SetPool(mock)
	return d, mock
}

func TestBeginIsolationMapping(t *testing.T) {
	tests := []struct {
		level transactor.IsolationLevel
		want  pgx.TxIsoLevel
	}{
		{transactor.IsolationDefault, ""},
		{transactor.IsolationReadCommitted, pgx.ReadCommitted},
		{transactor.IsolationRepeatableRead, pgx.RepeatableRead},
		{transactor.IsolationSerializable, pgx.Serializable},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			d, mock := newTestDriver(t)
			mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: tt.want})
			mock.ExpectCommit()

			tx, err := d.Begin(context.Background(), tt.level)
			require.NoError(t, err)
			require.NoError(t, tx.Commit(context.Background()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	t.Run("unsupported level", func(t *testing.T) {
		d, _ := newTestDriver(t)
		_, err := d.Begin(context.Background(), transactor.IsolationLevel("chaos"))
		require.Error(t, err)
	})
}

func TestSavepointSQL(t *testing.T) {
	d, mock := newTestDriver(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`SAVEPOINT sp1_ledger`).
		WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp1_ledger`).
		WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectRollback()

	tx, err := d.Begin(context.Background(), transactor.IsolationDefault)
	require.NoError(t, err)
	require.NoError(t, tx.Savepoint(context.Background(), "sp1_ledger"))
	require.NoError(t, tx.RollbackToSavepoint(context.Background(), "sp1_ledger"))
	require.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryableClassification(t *testing.T) {
	d := NewDriver(logger.NewLogger("postgres.test"))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgerrcode.SerializationFailure}, true},
		{"deadlock detected", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}, true},
		{"wrapped deadlock", errors.Join(errors.New("query"), &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), true},
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Retryable(tt.err))
		})
	}
}
