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
	"fmt"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/transactor"
)

// LedgerStore implements credit.LedgerStore. The ledger table is
// append-only; nothing in this module updates or deletes its rows.
type LedgerStore struct{}

func (s *LedgerStore) Append(ctx context.Context, tx transactor.Tx, entry *credit.LedgerTransaction) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	_, err = ptx.Exec(ctx,
		`INSERT INTO `+tableLedger+` (id, entry_type, amount, reference_id, customer_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.Type, entry.Amount, entry.ReferenceID, entry.CustomerID, entry.Description, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}
