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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridianerp/finance-core/orders"
	"github.com/meridianerp/finance-core/transactor"
)

// CartStore implements orders.CartStore. Cart items are stored as a JSONB
// column: the financial module reads them but never edits line items.
type CartStore struct{}

func (s *CartStore) Get(ctx context.Context, tx transactor.Tx, cartID string) (*orders.Cart, error) {
	ptx, err := queryTx(tx)
	if err != nil {
		return nil, err
	}

	cart := &orders.Cart{}
	var items []byte
	err = ptx.QueryRow(ctx,
		`SELECT id, customer_id, status, total, items FROM `+tableCarts+` WHERE id = $1`,
		cartID).
		Scan(&cart.ID, &cart.CustomerID, &cart.Status, &cart.Total, &items)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	if len(items) > 0 {
		err = json.Unmarshal(items, &cart.Items)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
		}
	}
	return cart, nil
}

func (s *CartStore) SetStatus(ctx context.Context, tx transactor.Tx, cartID string, status orders.CartStatus) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	tag, err := ptx.Exec(ctx,
		`UPDATE `+tableCarts+` SET status = $2 WHERE id = $1`,
		cartID, status)
	if err != nil {
		return fmt.Errorf("failed to update cart status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no cart %s", cartID)
	}
	return nil
}

// InsertCart seeds a cart row. Cart authoring belongs to the order module;
// this exists for integration tests and the simulator.
func InsertCart(ctx context.Context, tx transactor.Tx, cart *orders.Cart) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	items, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}
	_, err = ptx.Exec(ctx,
		`INSERT INTO `+tableCarts+` (id, customer_id, status, total, items) VALUES ($1, $2, $3, $4, $5)`,
		cart.ID, cart.CustomerID, cart.Status, cart.Total, items)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}
	return nil
}
