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

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/transactor"
)

type counters struct {
	values map[string]int64
}

func (c *counters) Clone() State {
	clone := &counters{values: make(map[string]int64, len(c.values))}
	for k, v := range c.values {
		clone.values[k] = v
	}
	return clone
}

func newCounters() *counters {
	return &counters{values: map[string]int64{}}
}

func testLogger() logger.Logger {
	return logger.NewLogger("transactor.memory.test")
}

func begin(t *testing.T, d *Driver) *Tx {
	t.Helper()
	tx, err := d.Begin(context.Background(), transactor.IsolationDefault)
	require.NoError(t, err)
	return tx.(*Tx)
}

func TestCommitPublishesStagedState(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	tx := begin(t, d)
	tx.Staged().(*counters).values["a"] = 1
	require.NoError(t, tx.Commit(context.Background()))

	err := d.View(context.Background(), func(state State) {
		assert.Equal(t, int64(1), state.(*counters).values["a"])
	})
	require.NoError(t, err)
}

func TestRollbackDiscardsStagedState(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	tx := begin(t, d)
	tx.Staged().(*counters).values["a"] = 1
	require.NoError(t, tx.Rollback(context.Background()))

	err := d.View(context.Background(), func(state State) {
		assert.Zero(t, state.(*counters).values["a"])
	})
	require.NoError(t, err)
}

func TestDoubleCompletionFails(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	tx := begin(t, d)
	require.NoError(t, tx.Commit(context.Background()))
	require.ErrorIs(t, tx.Rollback(context.Background()), ErrTxDone)
	require.ErrorIs(t, tx.Commit(context.Background()), ErrTxDone)
}

func TestBeginBlocksUntilPreviousCompletes(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	first := begin(t, d)

	started := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		close(started)
		tx, err := d.Begin(context.Background(), transactor.IsolationDefault)
		assert.NoError(t, err)
		close(acquired)
		_ = tx.Rollback(context.Background())
	}()

	<-started
	select {
	case <-acquired:
		t.Fatal("second transaction started while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Commit(context.Background()))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second transaction never started")
	}
}

func TestBeginHonorsContextCancellation(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	first := begin(t, d)
	defer first.Rollback(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Begin(ctx, transactor.IsolationDefault)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSavepointRestore(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	tx := begin(t, d)
	staged := tx.Staged().(*counters)
	staged.values["a"] = 1

	require.NoError(t, tx.Savepoint(context.Background(), "sp1"))
	tx.Staged().(*counters).values["a"] = 99
	tx.Staged().(*counters).values["b"] = 7

	require.NoError(t, tx.RollbackToSavepoint(context.Background(), "sp1"))
	assert.Equal(t, int64(1), tx.Staged().(*counters).values["a"])
	assert.Zero(t, tx.Staged().(*counters).values["b"])

	// The savepoint survives the rollback and can be used again.
	tx.Staged().(*counters).values["a"] = 50
	require.NoError(t, tx.RollbackToSavepoint(context.Background(), "sp1"))
	assert.Equal(t, int64(1), tx.Staged().(*counters).values["a"])

	require.NoError(t, tx.Commit(context.Background()))
	err := d.View(context.Background(), func(state State) {
		assert.Equal(t, int64(1), state.(*counters).values["a"])
	})
	require.NoError(t, err)
}

func TestRollbackToUnknownSavepoint(t *testing.T) {
	d := NewDriver(testLogger(), newCounters())

	tx := begin(t, d)
	defer tx.Rollback(context.Background()) //nolint:errcheck

	require.Error(t, tx.RollbackToSavepoint(context.Background(), "nope"))
}
