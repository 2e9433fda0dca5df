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

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/transactor"
)

// ReservationStore implements credit.ReservationStore.
type ReservationStore struct{}

func (s *ReservationStore) GetByOrderID(ctx context.Context, tx transactor.Tx, orderID string) (*credit.Reservation, error) {
	ptx, err := queryTx(tx)
	if err != nil {
		return nil, err
	}

	r := &credit.Reservation{}
	err = ptx.QueryRow(ctx,
		`SELECT id, customer_id, order_id, amount, status, balance_before, balance_after, reserved_at, expires_at, captured_at, released_at, created_by, notes
		FROM `+tableReservations+` WHERE order_id = $1`,
		orderID).
		Scan(&r.ID, &r.CustomerID, &r.OrderID, &r.Amount, &r.Status, &r.BalanceBefore, &r.BalanceAfter,
			&r.ReservedAt, &r.ExpiresAt, &r.CapturedAt, &r.ReleasedAt, &r.CreatedBy, &r.Notes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reservation: %w", err)
	}
	return r, nil
}

// Create inserts the reservation. The unique index on order_id is the
// idempotency guard: a concurrent duplicate insert surfaces as
// credit.ErrDuplicateReservation.
func (s *ReservationStore) Create(ctx context.Context, tx transactor.Tx, r *credit.Reservation) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	_, err = ptx.Exec(ctx,
		`INSERT INTO `+tableReservations+` (id, customer_id, order_id, amount, status, balance_before, balance_after, reserved_at, expires_at, captured_at, released_at, created_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.CustomerID, r.OrderID, r.Amount, r.Status, r.BalanceBefore, r.BalanceAfter,
		r.ReservedAt, r.ExpiresAt, r.CapturedAt, r.ReleasedAt, r.CreatedBy, r.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return credit.ErrDuplicateReservation
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

func (s *ReservationStore) Update(ctx context.Context, tx transactor.Tx, r *credit.Reservation) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	tag, err := ptx.Exec(ctx,
		`UPDATE `+tableReservations+` SET status = $2, captured_at = $3, released_at = $4, notes = $5 WHERE id = $1`,
		r.ID, r.Status, r.CapturedAt, r.ReleasedAt, r.Notes)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no reservation %s", r.ID)
	}
	return nil
}
