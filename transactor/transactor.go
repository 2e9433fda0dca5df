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

// Package transactor wraps units of work in database transactions with
// configurable isolation level, timeout, retry policy and savepoints.
// Backends implement the Driver interface; the financial services are
// written against the Executor only.
package transactor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dapr/kit/retry"
)

// IsolationLevel selects the transaction isolation strength for one call.
type IsolationLevel string

const (
	// IsolationDefault lets the driver pick its default level
	// (READ COMMITTED on PostgreSQL).
	IsolationDefault        IsolationLevel = ""
	IsolationReadCommitted  IsolationLevel = "read committed"
	IsolationRepeatableRead IsolationLevel = "repeatable read"
	IsolationSerializable   IsolationLevel = "serializable"
)

// ParseIsolationLevel converts a metadata string into an IsolationLevel.
func ParseIsolationLevel(value string) (IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return IsolationDefault, nil
	case "read committed", "readcommitted":
		return IsolationReadCommitted, nil
	case "repeatable read", "repeatableread":
		return IsolationRepeatableRead, nil
	case "serializable":
		return IsolationSerializable, nil
	default:
		return IsolationDefault, fmt.Errorf("unsupported isolation level: %s", value)
	}
}

// Driver is the storage backend contract for the Executor.
type Driver interface {
	// Begin starts a transaction at the requested isolation level.
	Begin(ctx context.Context, level IsolationLevel) (Tx, error)
	// Retryable reports whether the error is a transient concurrency
	// failure (deadlock, serialization conflict) worth retrying in a
	// fresh transaction.
	Retryable(err error) bool
	io.Closer
}

// Tx is one in-flight transaction.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Savepoint creates a named savepoint. The name is already sanitized
	// to a valid SQL identifier by the Executor.
	Savepoint(ctx context.Context, name string) error
	// RollbackToSavepoint undoes all work performed after the named
	// savepoint without discarding the rest of the transaction.
	RollbackToSavepoint(ctx context.Context, name string) error
}

// Options configures a single Execute call.
type Options struct {
	// Isolation level for the transaction. Zero value means driver default.
	Isolation IsolationLevel
	// Timeout bounds each attempt. Zero value means DefaultTimeout.
	Timeout time.Duration
	// Retry governs retries of transient concurrency failures. Nil means
	// no retries: the first failure is final.
	Retry *retry.Config
	// Metadata is attached to log lines for correlation; the executor
	// does not interpret it.
	Metadata map[string]string
}

// DefaultTimeout bounds a transaction attempt when Options.Timeout is zero.
const DefaultTimeout = 20 * time.Second

// Status is the terminal state of an Execute call.
type Status string

const (
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled_back"
)

// Result describes the outcome of one Execute call. It is non-nil on
// failure too, so callers always have the transaction ID and attempt
// count for their envelopes.
type Result struct {
	TransactionID string
	Status        Status
	Isolation     IsolationLevel
	Attempts      int
	Elapsed       time.Duration
}

// Session is handed to the work function. It carries the transaction ID
// used to address savepoints through the Executor while the transaction
// is in flight, and the driver transaction the stores operate on.
type Session struct {
	// ID is the executor-assigned transaction ID.
	ID string
	// Tx is the driver transaction.
	Tx Tx
}
