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

import "errors"

var (
	// ErrTimeout is returned when an attempt exceeds Options.Timeout.
	// The transaction is rolled back; no partial writes are observable.
	ErrTimeout = errors.New("transaction timed out")

	// ErrRetriesExhausted is returned when every retry of a transient
	// concurrency failure has failed. It wraps the last driver error.
	ErrRetriesExhausted = errors.New("transaction retries exhausted")

	// ErrUnknownTransaction is returned by the savepoint operations when
	// the transaction ID does not address an in-flight transaction.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrUnknownSavepoint is returned when a savepoint ID was not created
	// in the addressed transaction.
	ErrUnknownSavepoint = errors.New("unknown savepoint")
)
