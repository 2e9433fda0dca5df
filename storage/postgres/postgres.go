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

// Package postgres implements the financial stores on PostgreSQL. Every
// store method runs on the pgx transaction opened by the postgres
// transactor driver; the stores never open connections of their own.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/transactor"
)

const (
	tableAccounts     = "credit_accounts"
	tableReservations = "credit_reservations"
	tableLedger       = "credit_ledger"
	tableCarts        = "carts"
	tableOrders       = "orders"

	orderNumberSeq = "order_number_seq"

	// MetadataTableName is where the migration level and lock row live.
	MetadataTableName = "finance_metadata"
)

// pgxTxProvider is satisfied by the postgres transactor driver's Tx.
type pgxTxProvider interface {
	Pgx() pgx.Tx
}

// queryTx extracts the pgx transaction the stores query on.
func queryTx(tx transactor.Tx) (pgx.Tx, error) {
	p, ok := tx.(pgxTxProvider)
	if !ok {
		return nil, errors.New("transaction does not belong to the postgres driver")
	}
	return p.Pgx(), nil
}

// NewStores returns the full store set. Pass the result to
// credit.NewService together with an executor running on the postgres
// transactor driver.
func NewStores() credit.Stores {
	return credit.Stores{
		Accounts:     &AccountStore{},
		Reservations: &ReservationStore{},
		Ledger:       &LedgerStore{},
		Carts:        &CartStore{},
		Orders:       &OrderStore{},
	}
}
