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

package credit

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. Orchestrators branch on the kind to
// decide between retry and compensation; kinds are terminal for the
// transaction executor's retry loop.
type Kind string

const (
	KindNone                Kind = ""
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindInsufficientCredit  Kind = "INSUFFICIENT_CREDIT"
	KindInactiveCustomer    Kind = "INACTIVE_CUSTOMER"
	KindAlreadyConverted    Kind = "ALREADY_CONVERTED"
	KindEmptyCart           Kind = "EMPTY_CART"
	KindExpired             Kind = "RESERVATION_EXPIRED"
	KindNoActiveReservation Kind = "NO_ACTIVE_RESERVATION"
)

// Error is a typed domain failure.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

// NewError creates a domain error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{
		kind: kind,
		msg:  fmt.Sprintf(format, args...),
	}
}

// WrapError creates a domain error of the given kind wrapping a cause.
func WrapError(kind Kind, cause error, msg string) *Error {
	return &Error{
		kind:  kind,
		msg:   msg,
		cause: cause,
	}
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the Kind of err, or KindNone if err carries no domain
// classification.
func KindOf(err error) Kind {
	var domErr *Error
	if errors.As(err, &domErr) {
		return domErr.kind
	}
	return KindNone
}

// ErrDuplicateReservation is returned by ReservationStore.Create when a
// reservation already exists for the order ID. The service converts it
// into the idempotent read-back path.
var ErrDuplicateReservation = errors.New("a reservation already exists for this order")
