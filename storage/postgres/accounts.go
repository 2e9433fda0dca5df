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

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/transactor"
)

// AccountStore implements credit.AccountStore.
type AccountStore struct{}

func (s *AccountStore) Get(ctx context.Context, tx transactor.Tx, customerID string) (*credit.CreditAccount, error) {
	return s.get(ctx, tx, customerID, false)
}

// GetForUpdate reads the account row under FOR UPDATE. This is the lock
// that serializes the credit-limit check against concurrent reservations
// for the same customer.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx transactor.Tx, customerID string) (*credit.CreditAccount, error) {
	return s.get(ctx, tx, customerID, true)
}

func (s *AccountStore) get(ctx context.Context, tx transactor.Tx, customerID string, forUpdate bool) (*credit.CreditAccount, error) {
	ptx, err := queryTx(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT customer_id, credit_limit, used_credit, is_active, updated_at FROM ` + tableAccounts + ` WHERE customer_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	acct := &credit.CreditAccount{}
	err = ptx.QueryRow(ctx, query, customerID).
		Scan(&acct.CustomerID, &acct.CreditLimit, &acct.UsedCredit, &acct.IsActive, &acct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credit account: %w", err)
	}
	return acct, nil
}

// UpsertAccount seeds a credit account row. Account provisioning belongs
// to the customer module; this exists for integration tests and the
// simulator, so it tolerates re-runs.
func UpsertAccount(ctx context.Context, tx transactor.Tx, acct *credit.CreditAccount) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	_, err = ptx.Exec(ctx,
		`INSERT INTO `+tableAccounts+` (customer_id, credit_limit, used_credit, is_active, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (customer_id) DO UPDATE SET
			credit_limit = EXCLUDED.credit_limit,
			used_credit = EXCLUDED.used_credit,
			is_active = EXCLUDED.is_active,
			updated_at = now()`,
		acct.CustomerID, acct.CreditLimit, acct.UsedCredit, acct.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert credit account: %w", err)
	}
	return nil
}

func (s *AccountStore) SetUsedCredit(ctx context.Context, tx transactor.Tx, customerID string, usedCredit int64) error {
	ptx, err := queryTx(tx)
	if err != nil {
		return err
	}

	tag, err := ptx.Exec(ctx,
		`UPDATE `+tableAccounts+` SET used_credit = $2, updated_at = now() WHERE customer_id = $1`,
		customerID, usedCredit)
	if err != nil {
		return fmt.Errorf("failed to update used credit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no credit account for customer %s", customerID)
	}
	return nil
}
