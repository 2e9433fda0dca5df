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
	"strconv"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dapr/kit/logger"
)

// MigrationConn is the connection surface the migrator needs;
// *pgxpool.Pool satisfies it.
type MigrationConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const migrationLevelKey = "migration-level"

// schemaMigrations is the ordered list of schema changes. Append only;
// the applied level is stored in the metadata table.
var schemaMigrations = []string{
	// 1: financial module tables
	`CREATE TABLE IF NOT EXISTS ` + tableAccounts + ` (
		customer_id text NOT NULL PRIMARY KEY,
		credit_limit bigint NOT NULL,
		used_credit bigint NOT NULL DEFAULT 0,
		is_active boolean NOT NULL DEFAULT true,
		updated_at timestamp with time zone NOT NULL DEFAULT now(),
		CONSTRAINT used_credit_non_negative CHECK (used_credit >= 0)
	);
	CREATE TABLE IF NOT EXISTS ` + tableReservations + ` (
		id text NOT NULL PRIMARY KEY,
		customer_id text NOT NULL,
		order_id text NOT NULL,
		amount bigint NOT NULL,
		status text NOT NULL,
		balance_before bigint NOT NULL,
		balance_after bigint NOT NULL,
		reserved_at timestamp with time zone NOT NULL,
		expires_at timestamp with time zone NOT NULL,
		captured_at timestamp with time zone,
		released_at timestamp with time zone,
		created_by text NOT NULL DEFAULT '',
		notes text NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS credit_reservations_order_id_idx ON ` + tableReservations + ` (order_id);
	CREATE TABLE IF NOT EXISTS ` + tableLedger + ` (
		id text NOT NULL PRIMARY KEY,
		entry_type text NOT NULL,
		amount bigint NOT NULL,
		reference_id text NOT NULL,
		customer_id text NOT NULL,
		description text NOT NULL DEFAULT '',
		created_at timestamp with time zone NOT NULL
	);
	CREATE INDEX IF NOT EXISTS credit_ledger_reference_id_idx ON ` + tableLedger + ` (reference_id)`,

	// 2: order module tables
	`CREATE SEQUENCE IF NOT EXISTS ` + orderNumberSeq + `;
	CREATE TABLE IF NOT EXISTS ` + tableCarts + ` (
		id text NOT NULL PRIMARY KEY,
		customer_id text NOT NULL,
		status text NOT NULL DEFAULT 'OPEN',
		total bigint NOT NULL DEFAULT 0,
		items jsonb NOT NULL DEFAULT '[]'
	);
	CREATE TABLE IF NOT EXISTS ` + tableOrders + ` (
		id text NOT NULL PRIMARY KEY,
		number text NOT NULL UNIQUE,
		cart_id text NOT NULL,
		customer_id text NOT NULL,
		status text NOT NULL,
		payment_status text NOT NULL DEFAULT 'UNPAID',
		total bigint NOT NULL DEFAULT 0,
		created_at timestamp with time zone NOT NULL,
		cancelled_at timestamp with time zone
	)`,
}

// Migrations performs the schema migrations, serialized across processes
// by a row-level lock in the metadata table. Advisory locks are avoided
// on purpose: not every PostgreSQL-compatible database supports them.
type Migrations struct {
	DB                MigrationConn
	Logger            logger.Logger
	MetadataTableName string
}

// Perform applies all pending migrations.
func (m Migrations) Perform(ctx context.Context) error {
	err := m.ensureMetadataTable(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure metadata table exists: %w", err)
	}

	const lockKey = "lock"
	queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	_, err = m.DB.Exec(queryCtx,
		fmt.Sprintf("INSERT INTO %s (key, value) VALUES ($1, 'lock') ON CONFLICT (key) DO NOTHING", m.MetadataTableName),
		lockKey)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to ensure lock row exists: %w", err)
	}

	queryCtx, cancel = context.WithTimeout(ctx, 15*time.Second)
	tx, err := m.DB.Begin(queryCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rolled back at the end regardless: the transaction exists only to
	// hold the row lock.
	defer func() {
		queryCtx, cancel = context.WithTimeout(ctx, 15*time.Second)
		rollbackErr := tx.Rollback(queryCtx)
		cancel()
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			m.Logger.Errorf("Failed to release migration lock: %v", rollbackErr)
		}
	}()

	// This query may block while another process migrates.
	queryCtx, cancel = context.WithTimeout(ctx, time.Minute)
	var lock string
	err = tx.QueryRow(queryCtx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = $1 FOR UPDATE", m.MetadataTableName),
		lockKey).Scan(&lock)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}

	level, err := m.readLevel(ctx)
	if err != nil {
		return err
	}
	if level >= len(schemaMigrations) {
		m.Logger.Debugf("Schema is up to date (level %d)", level)
		return nil
	}

	for i := level; i < len(schemaMigrations); i++ {
		m.Logger.Infof("Performing schema migration %d", i+1)
		_, err = m.DB.Exec(ctx, schemaMigrations[i])
		if err != nil {
			return fmt.Errorf("failed to perform migration %d: %w", i+1, err)
		}
		err = m.writeLevel(ctx, i+1)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m Migrations) ensureMetadataTable(ctx context.Context) (err error) {
	// Concurrent CREATE TABLE IF NOT EXISTS can still fail with a unique
	// violation on pg_type; retry a few times.
	for i := 0; i < 3; i++ {
		_, err = m.DB.Exec(ctx, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
				key text NOT NULL PRIMARY KEY,
				value text NOT NULL
			)`,
			m.MetadataTableName,
		))
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
			return err
		}
		time.Sleep(50 * time.Millisecond)
	}
	return err
}

func (m Migrations) readLevel(ctx context.Context) (int, error) {
	var value string
	err := m.DB.QueryRow(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = $1", m.MetadataTableName),
		migrationLevelKey).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read migration level: %w", err)
	}
	level, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid migration level %q: %w", value, err)
	}
	return level, nil
}

func (m Migrations) writeLevel(ctx context.Context, level int) error {
	_, err := m.DB.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = $2", m.MetadataTableName),
		migrationLevelKey, strconv.Itoa(level))
	if err != nil {
		return fmt.Errorf("failed to record migration level %d: %w", level, err)
	}
	return nil
}
