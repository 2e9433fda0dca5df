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

// Package memory implements the transactor driver on an in-process state
// snapshot. Transactions stage their writes on a deep clone of the state
// and publish it on commit; a single-writer lock makes every transaction
// serializable by construction. Savepoints are snapshots of the staged
// state.
package memory

import (
	"context"
	"errors"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/transactor"
)

// State is the cloneable state a Driver guards. Clone must be a deep copy:
// mutations of the clone must never be observable through the original.
type State interface {
	Clone() State
}

// ErrTxDone is returned when a completed transaction is used again.
var ErrTxDone = errors.New("transaction has already been committed or rolled back")

// Driver is an in-process transactor driver.
type Driver struct {
	log   logger.Logger
	sem   chan struct{}
	state State
}

// NewDriver creates a driver guarding the given initial state.
func NewDriver(log logger.Logger, initial State) *Driver {
	return &Driver{
		log:   log,
		sem:   make(chan struct{}, 1),
		state: initial,
	}
}

// Begin implements transactor.Driver. It blocks until the previous
// transaction completes or ctx is done. The isolation level is ignored:
// single-writer execution is serializable already.
func (d *Driver) Begin(ctx context.Context, _ transactor.IsolationLevel) (transactor.Tx, error) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{
		d:      d,
		staged: d.state.Clone(),
	}, nil
}

// Retryable implements transactor.Driver. The single-writer lock rules out
// deadlocks and serialization conflicts.
func (d *Driver) Retryable(_ error) bool {
	return false
}

// Close implements transactor.Driver.
func (d *Driver) Close() error {
	return nil
}

// View runs fn with the committed state, outside any transaction. It takes
// the writer lock so fn never observes a half-committed state.
func (d *Driver) View(ctx context.Context, fn func(state State)) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.sem }()
	fn(d.state)
	return nil
}

type savepoint struct {
	name string
	snap State
}

// Tx is one in-flight in-memory transaction.
type Tx struct {
	d          *Driver
	staged     State
	savepoints []savepoint
	done       bool
}

// Staged returns the transaction's private copy of the state. Stores
// read and mutate this copy; it becomes visible only on Commit.
func (t *Tx) Staged() State {
	return t.staged
}

func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.d.state = t.staged
	t.finish()
	return nil
}

func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.staged = nil
	t.savepoints = nil
	<-t.d.sem
}

func (t *Tx) Savepoint(_ context.Context, name string) error {
	if t.done {
		return ErrTxDone
	}
	t.savepoints = append(t.savepoints, savepoint{
		name: name,
		snap: t.staged.Clone(),
	})
	return nil
}

func (t *Tx) RollbackToSavepoint(_ context.Context, name string) error {
	if t.done {
		return ErrTxDone
	}
	for i := len(t.savepoints) - 1; i >= 0; i-- {
		if t.savepoints[i].name != name {
			continue
		}
		// Restore the snapshot and discard savepoints created after it.
		// The savepoint itself stays valid, like SQL ROLLBACK TO.
		t.staged = t.savepoints[i].snap.Clone()
		t.savepoints = t.savepoints[:i+1]
		return nil
	}
	return errors.New("savepoint does not exist: " + name)
}
