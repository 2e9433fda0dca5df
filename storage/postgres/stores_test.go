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
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/orders"
	"github.com/meridianerp/finance-core/transactor"
)

// mockTx adapts a pgxmock transaction to transactor.Tx the way the
// postgres driver's Tx does.
type mockTx struct {
	inner pgx.Tx
}

func (t *mockTx) Pgx() pgx.Tx                                          { return t.inner }
func (t *mockTx) Commit(ctx context.Context) error                     { return t.inner.Commit(ctx) }
func (t *mockTx) Rollback(ctx context.Context) error                   { return t.inner.Rollback(ctx) }
func (t *mockTx) Savepoint(ctx context.Context, name string) error     { return nil }
func (t *mockTx) RollbackToSavepoint(ctx context.Context, name string) error { return nil }

func newMockTx(t *testing.T) (transactor.Tx, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectBegin()
	inner, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return &mockTx{inner: inner}, mock
}

func TestAccountStore(t *testing.T) {
	now := time.Now().UTC()
	columns := []string{"customer_id", "credit_limit", "used_credit", "is_active", "updated_at"}

	t.Run("Get", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT customer_id, credit_limit, used_credit, is_active, updated_at FROM credit_accounts WHERE customer_id = $1`)).
			WithArgs("c1").
			WillReturnRows(pgxmock.NewRows(columns).AddRow("c1", int64(10000), int64(2000), true, now))

		store := &AccountStore{}
		acct, err := store.Get(context.Background(), tx, "c1")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.Equal(t, int64(8000), acct.Available())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetForUpdate locks the row", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
			WithArgs("c1").
			WillReturnRows(pgxmock.NewRows(columns).AddRow("c1", int64(10000), int64(2000), true, now))

		store := &AccountStore{}
		acct, err := store.GetForUpdate(context.Background(), tx, "c1")
		require.NoError(t, err)
		require.NotNil(t, acct)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Get missing returns nil", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		store := &AccountStore{}
		acct, err := store.Get(context.Background(), tx, "nope")
		require.NoError(t, err)
		assert.Nil(t, acct)
	})

	t.Run("SetUsedCredit", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE credit_accounts SET used_credit = $2, updated_at = now() WHERE customer_id = $1`)).
			WithArgs("c1", int64(5000)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		store := &AccountStore{}
		require.NoError(t, store.SetUsedCredit(context.Background(), tx, "c1", 5000))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SetUsedCredit missing account", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE credit_accounts`)).
			WithArgs("nope", int64(5000)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		store := &AccountStore{}
		require.Error(t, store.SetUsedCredit(context.Background(), tx, "nope", 5000))
	})
}

func TestReservationStoreCreate(t *testing.T) {
	r := &credit.Reservation{
		ID:            "r1",
		CustomerID:    "c1",
		OrderID:       "o1",
		Amount:        3000,
		Status:        credit.ReservationActive,
		BalanceBefore: 2000,
		BalanceAfter:  5000,
		ReservedAt:    time.Now().UTC(),
		ExpiresAt:     time.Now().UTC().Add(30 * time.Minute),
	}

	t.Run("insert", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO credit_reservations`)).
			WithArgs(r.ID, r.CustomerID, r.OrderID, r.Amount, r.Status, r.BalanceBefore, r.BalanceAfter,
				r.ReservedAt, r.ExpiresAt, r.CapturedAt, r.ReleasedAt, r.CreatedBy, r.Notes).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		store := &ReservationStore{}
		require.NoError(t, store.Create(context.Background(), tx, r))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to ErrDuplicateReservation", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO credit_reservations`)).
			WithArgs(r.ID, r.CustomerID, r.OrderID, r.Amount, r.Status, r.BalanceBefore, r.BalanceAfter,
				r.ReservedAt, r.ExpiresAt, r.CapturedAt, r.ReleasedAt, r.CreatedBy, r.Notes).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "credit_reservations_order_id_idx"})

		store := &ReservationStore{}
		err := store.Create(context.Background(), tx, r)
		require.ErrorIs(t, err, credit.ErrDuplicateReservation)
	})
}

func TestReservationStoreGetByOrderID(t *testing.T) {
	columns := []string{
		"id", "customer_id", "order_id", "amount", "status", "balance_before", "balance_after",
		"reserved_at", "expires_at", "captured_at", "released_at", "created_by", "notes",
	}

	t.Run("found", func(t *testing.T) {
		now := time.Now().UTC()
		tx, mock := newMockTx(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = $1`)).
			WithArgs("o1").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("r1", "c1", "o1", int64(3000), credit.ReservationActive, int64(2000), int64(5000),
					now, now.Add(30*time.Minute), nil, nil, "", ""))

		store := &ReservationStore{}
		r, err := store.GetByOrderID(context.Background(), tx, "o1")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, credit.ReservationActive, r.Status)
		assert.Nil(t, r.CapturedAt)
	})

	t.Run("missing returns nil", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE order_id = $1`)).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		store := &ReservationStore{}
		r, err := store.GetByOrderID(context.Background(), tx, "nope")
		require.NoError(t, err)
		assert.Nil(t, r)
	})
}

func TestLedgerStoreAppend(t *testing.T) {
	tx, mock := newMockTx(t)
	entry := &credit.LedgerTransaction{
		ID:          "l1",
		Type:        credit.LedgerDebit,
		Amount:      3000,
		ReferenceID: "o1",
		CustomerID:  "c1",
		Description: "credit captured for order o1",
		CreatedAt:   time.Now().UTC(),
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO credit_ledger`)).
		WithArgs(entry.ID, entry.Type, entry.Amount, entry.ReferenceID, entry.CustomerID, entry.Description, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := &LedgerStore{}
	require.NoError(t, store.Append(context.Background(), tx, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCartStore(t *testing.T) {
	t.Run("Get unmarshals items", func(t *testing.T) {
		tx, mock := newMockTx(t)
		items := []byte(`[{"sku":"sku1","quantity":2,"unitPrice":50}]`)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM carts WHERE id = $1`)).
			WithArgs("cart1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "status", "total", "items"}).
				AddRow("cart1", "c1", orders.CartOpen, int64(100), items))

		store := &CartStore{}
		cart, err := store.Get(context.Background(), tx, "cart1")
		require.NoError(t, err)
		require.NotNil(t, cart)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "sku1", cart.Items[0].SKU)
		assert.Equal(t, int64(50), cart.Items[0].UnitPrice)
	})

	t.Run("SetStatus", func(t *testing.T) {
		tx, mock := newMockTx(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE carts SET status = $2 WHERE id = $1`)).
			WithArgs("cart1", orders.CartConverted).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		store := &CartStore{}
		require.NoError(t, store.SetStatus(context.Background(), tx, "cart1", orders.CartConverted))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderStoreCreate(t *testing.T) {
	tx, mock := newMockTx(t)
	order := &orders.Order{
		ID:            "o1",
		CartID:        "cart1",
		CustomerID:    "c1",
		Status:        orders.OrderNew,
		PaymentStatus: orders.PaymentUnpaid,
		Total:         100,
		CreatedAt:     time.Now().UTC(),
	}
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders`)).
		WithArgs(order.ID, order.CartID, order.CustomerID, order.Status, order.PaymentStatus, order.Total, order.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"number"}).AddRow("ORD-000042"))

	store := &OrderStore{}
	require.NoError(t, store.Create(context.Background(), tx, order))
	assert.Equal(t, "ORD-000042", order.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}
