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

package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/orders"
	"github.com/meridianerp/finance-core/transactor"
	tmemory "github.com/meridianerp/finance-core/transactor/memory"
)

// NewStores returns the full store set backed by the transaction's staged
// dataset. Pass the result to credit.NewService together with an executor
// running on the matching tmemory.Driver.
func NewStores() credit.Stores {
	return credit.Stores{
		Accounts:     &AccountStore{},
		Reservations: &ReservationStore{},
		Ledger:       &LedgerStore{},
		Carts:        &CartStore{},
		Orders:       &OrderStore{},
	}
}

// staged extracts the transaction's private dataset. Stores must re-fetch
// it on every call: a rollback to a savepoint swaps the staged state.
func staged(tx transactor.Tx) (*Dataset, error) {
	mtx, ok := tx.(*tmemory.Tx)
	if !ok {
		return nil, errors.New("transaction does not belong to the in-memory driver")
	}
	ds, ok := mtx.Staged().(*Dataset)
	if !ok {
		return nil, errors.New("transaction state is not a dataset")
	}
	return ds, nil
}

// AccountStore implements credit.AccountStore on a Dataset.
type AccountStore struct{}

func (s *AccountStore) Get(ctx context.Context, tx transactor.Tx, customerID string) (*credit.CreditAccount, error) {
	ds, err := staged(tx)
	if err != nil {
		return nil, err
	}
	acct, ok := ds.Accounts[customerID]
	if !ok {
		return nil, nil
	}
	return cloneAccount(acct), nil
}

// GetForUpdate is identical to Get: the single-writer driver already
// serializes every transaction.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx transactor.Tx, customerID string) (*credit.CreditAccount, error) {
	return s.Get(ctx, tx, customerID)
}

func (s *AccountStore) SetUsedCredit(ctx context.Context, tx transactor.Tx, customerID string, usedCredit int64) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	acct, ok := ds.Accounts[customerID]
	if !ok {
		return fmt.Errorf("no credit account for customer %s", customerID)
	}
	acct.UsedCredit = usedCredit
	return nil
}

// ReservationStore implements credit.ReservationStore on a Dataset.
type ReservationStore struct{}

func (s *ReservationStore) GetByOrderID(ctx context.Context, tx transactor.Tx, orderID string) (*credit.Reservation, error) {
	ds, err := staged(tx)
	if err != nil {
		return nil, err
	}
	r, ok := ds.Reservations[orderID]
	if !ok {
		return nil, nil
	}
	return cloneReservation(r), nil
}

func (s *ReservationStore) Create(ctx context.Context, tx transactor.Tx, reservation *credit.Reservation) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	if _, exists := ds.Reservations[reservation.OrderID]; exists {
		return credit.ErrDuplicateReservation
	}
	ds.Reservations[reservation.OrderID] = cloneReservation(reservation)
	return nil
}

func (s *ReservationStore) Update(ctx context.Context, tx transactor.Tx, reservation *credit.Reservation) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	if _, exists := ds.Reservations[reservation.OrderID]; !exists {
		return fmt.Errorf("no reservation for order %s", reservation.OrderID)
	}
	ds.Reservations[reservation.OrderID] = cloneReservation(reservation)
	return nil
}

// LedgerStore implements credit.LedgerStore on a Dataset.
type LedgerStore struct{}

func (s *LedgerStore) Append(ctx context.Context, tx transactor.Tx, entry *credit.LedgerTransaction) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	e := *entry
	ds.Ledger = append(ds.Ledger, &e)
	return nil
}

// CartStore implements orders.CartStore on a Dataset.
type CartStore struct{}

func (s *CartStore) Get(ctx context.Context, tx transactor.Tx, cartID string) (*orders.Cart, error) {
	ds, err := staged(tx)
	if err != nil {
		return nil, err
	}
	cart, ok := ds.Carts[cartID]
	if !ok {
		return nil, nil
	}
	return cloneCart(cart), nil
}

func (s *CartStore) SetStatus(ctx context.Context, tx transactor.Tx, cartID string, status orders.CartStatus) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	cart, ok := ds.Carts[cartID]
	if !ok {
		return fmt.Errorf("no cart %s", cartID)
	}
	cart.Status = status
	return nil
}

// OrderStore implements orders.OrderStore on a Dataset.
type OrderStore struct{}

func (s *OrderStore) Create(ctx context.Context, tx transactor.Tx, order *orders.Order) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	if _, exists := ds.Orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	ds.OrderSeq++
	order.Number = fmt.Sprintf("ORD-%06d", ds.OrderSeq)
	ds.Orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *OrderStore) Get(ctx context.Context, tx transactor.Tx, orderID string) (*orders.Order, error) {
	ds, err := staged(tx)
	if err != nil {
		return nil, err
	}
	o, ok := ds.Orders[orderID]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) Update(ctx context.Context, tx transactor.Tx, order *orders.Order) error {
	ds, err := staged(tx)
	if err != nil {
		return err
	}
	if _, exists := ds.Orders[order.ID]; !exists {
		return fmt.Errorf("no order %s", order.ID)
	}
	ds.Orders[order.ID] = cloneOrder(order)
	return nil
}
