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

package orders

import (
	"context"

	"github.com/meridianerp/finance-core/transactor"
)

// CartStore reads and updates carts inside a transaction.
// Get returns (nil, nil) when the cart does not exist.
type CartStore interface {
	Get(ctx context.Context, tx transactor.Tx, cartID string) (*Cart, error)
	SetStatus(ctx context.Context, tx transactor.Tx, cartID string, status CartStatus) error
}

// OrderStore creates and updates orders inside a transaction.
// Create assigns the order number on the passed Order.
// Get returns (nil, nil) when the order does not exist.
type OrderStore interface {
	Create(ctx context.Context, tx transactor.Tx, order *Order) error
	Get(ctx context.Context, tx transactor.Tx, orderID string) (*Order, error)
	Update(ctx context.Context, tx transactor.Tx, order *Order) error
}
