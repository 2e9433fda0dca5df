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

package transactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dapr/kit/logger"
	"github.com/dapr/kit/retry"
)

// Executor runs units of work in transactions on a Driver.
// It is safe for concurrent use; all transactions share one set of
// process-wide metrics.
type Executor struct {
	driver  Driver
	log     logger.Logger
	metrics *Metrics
	live    *xsync.MapOf[string, *liveTx]
}

type liveTx struct {
	mu         sync.Mutex
	tx         Tx
	seq        int
	savepoints map[string]struct{}
}

// New creates an Executor on top of the given driver.
func New(driver Driver, log logger.Logger) *Executor {
	return &Executor{
		driver:  driver,
		log:     log,
		metrics: &Metrics{},
		live:    xsync.NewMapOf[string, *liveTx](),
	}
}

// Metrics returns the process-wide transaction counters.
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Close closes the underlying driver.
func (e *Executor) Close() error {
	return e.driver.Close()
}

// Execute runs work inside one transaction. On a retryable failure
// (deadlock, serialization conflict) the whole transaction is retried per
// opts.Retry; domain errors and timeouts are terminal. The returned Result
// is non-nil on failure too.
//
// If work returns an error, or panics, the transaction is rolled back and
// no partial writes are observable.
func (e *Executor) Execute(ctx context.Context, opts Options, work func(ctx context.Context, sess *Session) error) (*Result, error) {
	txID := uuid.New().String()
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	res := &Result{
		TransactionID: txID,
		Status:        StatusRolledBack,
		Isolation:     opts.Isolation,
	}

	cfg := retry.DefaultConfig()
	cfg.MaxRetries = 0
	if opts.Retry != nil {
		cfg = *opts.Retry
	}

	start := time.Now()
	err := backoff.RetryNotify(
		func() error {
			return e.attempt(ctx, txID, timeout, opts.Isolation, res, work)
		},
		cfg.NewBackOffWithContext(ctx),
		func(err error, d time.Duration) {
			e.log.Debugf("Transaction %s failed with a retryable error, retrying in %v: %v", txID, d, err)
		},
	)
	res.Elapsed = time.Since(start)
	if res.Attempts > 1 {
		e.metrics.retries.Add(int64(res.Attempts - 1))
	}

	if err != nil {
		if e.driver.Retryable(err) {
			err = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
		}
		return res, err
	}

	res.Status = StatusCommitted
	return res, nil
}

// attempt runs one physical transaction. Retryable errors are returned
// as-is; terminal ones are wrapped in backoff.Permanent so the retry loop
// stops.
func (e *Executor) attempt(parent context.Context, txID string, timeout time.Duration, level IsolationLevel, res *Result, work func(ctx context.Context, sess *Session) error) error {
	res.Attempts++
	e.metrics.total.Add(1)

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	tx, err := e.driver.Begin(ctx, level)
	if err != nil {
		e.metrics.rolledBack.Add(1)
		return e.classify(ctx, fmt.Errorf("failed to begin transaction: %w", err))
	}

	e.live.Store(txID, &liveTx{
		tx:         tx,
		savepoints: map[string]struct{}{},
	})

	var committed bool
	defer func() {
		e.live.Delete(txID)
		if committed {
			return
		}
		e.metrics.rolledBack.Add(1)
		// Roll back on a fresh deadline: the attempt context may be the
		// very thing that expired.
		rbCtx, rbCancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer rbCancel()
		if rbErr := tx.Rollback(rbCtx); rbErr != nil {
			e.log.Errorf("Error while attempting to roll back transaction %s: %v", txID, rbErr)
		}
	}()

	err = work(ctx, &Session{ID: txID, Tx: tx})
	if err != nil {
		return e.classify(ctx, err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return e.classify(ctx, fmt.Errorf("failed to commit transaction: %w", err))
	}
	committed = true
	e.metrics.committed.Add(1)
	return nil
}

func (e *Executor) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrTimeout, err))
	}
	if e.driver.Retryable(err) {
		e.metrics.deadlocks.Add(1)
		return err
	}
	return backoff.Permanent(err)
}

// CreateSavepoint creates a savepoint in the in-flight transaction
// addressed by txID and returns its ID. The savepoint lets the caller
// later undo part of the transaction's work without discarding earlier
// steps of the same transaction.
func (e *Executor) CreateSavepoint(ctx context.Context, txID, name string) (string, error) {
	lt, ok := e.live.Load(txID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.seq++
	spID := fmt.Sprintf("sp%d_%s", lt.seq, sanitizeIdentifier(name))
	err := lt.tx.Savepoint(ctx, spID)
	if err != nil {
		return "", fmt.Errorf("failed to create savepoint %s: %w", spID, err)
	}
	lt.savepoints[spID] = struct{}{}
	return spID, nil
}

// RollbackToSavepoint undoes all work performed in the transaction after
// the given savepoint. The savepoint remains valid afterwards.
func (e *Executor) RollbackToSavepoint(ctx context.Context, txID, savepointID string) error {
	lt, ok := e.live.Load(txID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()

	if _, ok := lt.savepoints[savepointID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSavepoint, savepointID)
	}
	err := lt.tx.RollbackToSavepoint(ctx, savepointID)
	if err != nil {
		return fmt.Errorf("failed to roll back to savepoint %s: %w", savepointID, err)
	}
	return nil
}

// sanitizeIdentifier reduces name to a valid SQL identifier fragment.
func sanitizeIdentifier(name string) string {
	const maxLen = 40
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '_')
		}
		if len(out) >= maxLen {
			break
		}
	}
	if len(out) == 0 {
		return "sp"
	}
	return string(out)
}
