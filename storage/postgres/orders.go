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
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridianerp/finance-core/orders"
	"github.com/meridianerp/finance-core/transactor"
)

// OrderStore implements orders.OrderStore.
type OrderStore struct{}

// Create inserts the order. The order number is assigned from a database
// sequence, never reused, and written back to order.Number.
func (s *OrderStore) Create(ctx context.Context, tx transactor.Tx, order *orders.Order) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	err = ptx.QueryRow(ctx,
		`INSERT INTO `+tableOrders+` (id, number, cart_id, customer_id, status, payment_status, total, created_at)
		VALUES ($1, 'ORD-' || lpad(nextval('`+orderNumberSeq+`')::text, 6, '0'), $2, $3, $4, $5, $6, $7)
		RETURNING number`,
		order.ID, order.CartID, order.CustomerID, order.Status, order.PaymentStatus, order.Total, order.CreatedAt).
		Scan(&order.Number)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, tx transactor.Tx, orderID string) (*orders.Order, error) {
	ptx, err := queryTx(tx)
	if err != nil {
		return nil, err
	}

	o := &orders.Order{}
	err = ptx.QueryRow(ctx,
		`SELECT id, number, cart_id, customer_id, status, payment_status, total, created_at, cancelled_at
		FROM `+tableOrders+` WHERE id = $1`,
		orderID).
		Scan(&o.ID, &o.Number, &o.CartID, &o.CustomerID, &o.Status, &o.PaymentStatus, &o.Total, &o.CreatedAt, &o.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order: %w", err)
	}
	return o, nil
}

func (s *OrderStore) Update(ctx context.Context, tx transactor.Tx, order *orders.Order) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	tag, err := ptx.Exec(ctx,
		`UPDATE `+tableOrders+` SET status = $2, payment_status = $3, cancelled_at = $4 WHERE id = $1`,
		order.ID, order.Status, order.PaymentStatus, order.CancelledAt)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no order %s", order.ID)
	}
	return nil
}
