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

// Package memory implements the financial stores on an in-process
// dataset guarded by the in-memory transactor driver. It backs the
// service and orchestrator tests and the development simulator.
package memory

import (
	tmemory "github.com/meridianerp/finance-core/transactor/memory"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/orders"
)

// Dataset is the whole database: accounts, reservations, ledger, carts
// and orders. It implements tmemory.State; transactions stage their
// writes on a deep clone.
type Dataset struct {
	Accounts     map[string]*credit.CreditAccount // by customer ID
	Reservations map[string]*credit.Reservation   // by order ID (unique per order)
	Ledger       []*credit.LedgerTransaction
	Carts        map[string]*orders.Cart  // by cart ID
	Orders       map[string]*orders.Order // by order ID
	OrderSeq     int64
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		Accounts:     map[string]*credit.CreditAccount{},
		Reservations: map[string]*credit.Reservation{},
		Carts:        map[string]*orders.Cart{},
		Orders:       map[string]*orders.Order{},
	}
}

// Clone implements tmemory.State with a deep copy.
func (d *Dataset) Clone() tmemory.State {
	clone := &Dataset{
		Accounts:     make(map[string]*credit.CreditAccount, len(d.Accounts)),
		Reservations: make(map[string]*credit.Reservation, len(d.Reservations)),
		Ledger:       make([]*credit.LedgerTransaction, len(d.Ledger)),
		Carts:        make(map[string]*orders.Cart, len(d.Carts)),
		Orders:       make(map[string]*orders.Order, len(d.Orders)),
		OrderSeq:     d.OrderSeq,
	}
	for k, v := range d.Accounts {
		clone.Accounts[k] = cloneAccount(v)
	}
	for k, v := range d.Reservations {
		clone.Reservations[k] = cloneReservation(v)
	}
	for i, v := range d.Ledger {
		entry := *v
		clone.Ledger[i] = &entry
	}
	for k, v := range d.Carts {
		clone.Carts[k] = cloneCart(v)
	}
	for k, v := range d.Orders {
		clone.Orders[k] = cloneOrder(v)
	}
	return clone
}

// SeedAccount adds a credit account, for tests and the simulator.
func (d *Dataset) SeedAccount(acct *credit.CreditAccount) *Dataset {
	d.Accounts[acct.CustomerID] = acct
	return d
}

// SeedCart adds a cart, for tests and the simulator.
func (d *Dataset) SeedCart(cart *orders.Cart) *Dataset {
	d.Carts[cart.ID] = cart
	return d
}

func cloneAccount(a *credit.CreditAccount) *credit.CreditAccount {
	c := *a
	return &c
}

func cloneReservation(r *credit.Reservation) *credit.Reservation {
	c := *r
	if r.CapturedAt != nil {
		t := *r.CapturedAt
		c.CapturedAt = &t
	}
	if r.ReleasedAt != nil {
		t := *r.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}

func cloneCart(cart *orders.Cart) *orders.Cart {
	c := *cart
	c.Items = make([]orders.CartItem, len(cart.Items))
	copy(c.Items, cart.Items)
	return &c
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}
