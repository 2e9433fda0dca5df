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

// Package postgres implements the transactor driver on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/metadata"
	"github.com/meridianerp/finance-core/transactor"
)

// PGXPool is the subset of pgxpool.Pool the driver needs. It allows
// mocking with pgxmock in tests.
type PGXPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Driver runs transactions on a PostgreSQL connection pool.
type Driver struct {
	logger   logger.Logger
	metadata pgMetadata
	db       PGXPool
}

// NewDriver returns a new PostgreSQL transactor driver.
func NewDriver(logger logger.Logger) *Driver {
	return &Driver{
		logger: logger,
	}
}

// Init connects the pool and verifies connectivity.
func (d *Driver) Init(ctx context.Context, meta metadata.Base) error {
	err := d.metadata.InitWithMetadata(meta)
	if err != nil {
		return err
	}

	config, err := d.metadata.GetPgxPoolConfig()
	if err != nil {
		return err
	}

	connCtx, connCancel := context.WithTimeout(ctx, d.metadata.Timeout)
	pool, err := pgxpool.NewWithConfig(connCtx, config)
	connCancel()
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	d.db = pool

	pingCtx, pingCancel := context.WithTimeout(ctx, d.metadata.Timeout)
	err = d.db.Ping(pingCtx)
	pingCancel()
	if err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	d.logger.Infof("Connected to PostgreSQL (timeout=%v)", d.metadata.Timeout)
	return nil
}

// SetPool injects an existing pool. Used by tests (pgxmock) and by hosts
// that manage the pool themselves; Init is not needed afterwards.
func (d *Driver) SetPool(db PGXPool) {
	d.db = db
}

// Pool returns the underlying pool, for schema migrations.
func (d *Driver) Pool() PGXPool {
	return d.db
}

// Begin implements transactor.Driver.
func (d *Driver) Begin(ctx context.Context, level transactor.IsolationLevel) (transactor.Tx, error) {
	if d.db == nil {
		return nil, errors.New("driver not initialized")
	}

	txOptions := pgx.TxOptions{}
	switch level {
	case transactor.IsolationDefault:
		// Server default (READ COMMITTED unless configured otherwise).
	case transactor.IsolationReadCommitted:
		txOptions.IsoLevel = pgx.ReadCommitted
	case transactor.IsolationRepeatableRead:
		txOptions.IsoLevel = pgx.RepeatableRead
	case transactor.IsolationSerializable:
		txOptions.IsoLevel = pgx.Serializable
	default:
		return nil, fmt.Errorf("unsupported isolation level: %s", level)
	}

	inner, err := d.db.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, err
	}
	return &Tx{inner: inner}, nil
}

// Retryable implements transactor.Driver. Serialization failures and
// deadlocks are worth retrying in a fresh transaction; everything else is
// terminal.
func (d *Driver) Retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	default:
		return false
	}
}

// Close implements transactor.Driver.
func (d *Driver) Close() error {
	if d.db != nil {
		d.db.Close()
		d.db = nil
	}
	return nil
}

// Tx adapts a pgx transaction to transactor.Tx.
type Tx struct {
	inner pgx.Tx
}

// Pgx returns the underlying pgx transaction for the stores to query on.
func (t *Tx) Pgx() pgx.Tx {
	return t.inner
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.inner.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.inner.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	// name is sanitized to an identifier by the executor; it cannot be a
	// bind parameter in this statement.
	_, err := t.inner.Exec(ctx, "SAVEPOINT "+name)
	return err
}

func (t *Tx) RollbackToSavepoint(ctx context.Context, name string) error {
	_, err := t.inner.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}
