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

package credit

import (
	"context"

	"github.com/meridianerp/finance-core/transactor"
)

// AccountStore reads and mutates credit accounts inside a transaction.
// Get and GetForUpdate return (nil, nil) when the customer has no account.
type AccountStore interface {
	Get(ctx context.Context, tx transactor.Tx, customerID string) (*CreditAccount, error)
	// GetForUpdate reads the account while taking a row-level lock, so the
	// credit-limit check and the UsedCredit update are serialized against
	// concurrent reservations on the same customer.
	GetForUpdate(ctx context.Context, tx transactor.Tx, customerID string) (*CreditAccount, error)
	SetUsedCredit(ctx context.Context, tx transactor.Tx, customerID string, usedCredit int64) error
}

// ReservationStore reads and mutates credit reservations inside a
// transaction. GetByOrderID returns (nil, nil) when no reservation exists
// for the order. Create returns ErrDuplicateReservation when the unique
// order constraint is violated.
type ReservationStore interface {
	GetByOrderID(ctx context.Context, tx transactor.Tx, orderID string) (*Reservation, error)
	Create(ctx context.Context, tx transactor.Tx, reservation *Reservation) error
	Update(ctx context.Context, tx transactor.Tx, reservation *Reservation) error
}

// LedgerStore appends entries to the append-only credit ledger.
type LedgerStore interface {
	Append(ctx context.Context, tx transactor.Tx, entry *LedgerTransaction) error
}
