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

// Package credit implements the credit reservation service: reserving,
// capturing and releasing a customer's credit against an order, plus order
// creation and rollback. Every operation runs inside exactly one
// transactor.Executor call. Amounts are int64 minor units (cents).
package credit

import "time"

// CreditAccount is a customer's credit line. Outside an in-flight
// transaction, 0 <= UsedCredit <= CreditLimit always holds.
type CreditAccount struct {
	CustomerID  string    `json:"customerId"`
	CreditLimit int64     `json:"creditLimit"`
	UsedCredit  int64     `json:"usedCredit"`
	IsActive    bool      `json:"isActive"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Available returns the credit still reservable.
func (a *CreditAccount) Available() int64 {
	return a.CreditLimit - a.UsedCredit
}

// ReservationStatus is the lifecycle state of a reservation. A reservation
// is created ACTIVE and moves to exactly one terminal state; it is never
// reopened.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "ACTIVE"
	ReservationCaptured ReservationStatus = "CAPTURED"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationExpired  ReservationStatus = "EXPIRED"
)

// Reservation is a hold against a customer's credit limit tied to one
// order. At most one reservation exists per order.
type Reservation struct {
	ID            string            `json:"id"`
	CustomerID    string            `json:"customerId"`
	OrderID       string            `json:"orderId"`
	Amount        int64             `json:"amount"`
	Status        ReservationStatus `json:"status"`
	BalanceBefore int64             `json:"balanceBefore"`
	BalanceAfter  int64             `json:"balanceAfter"`
	ReservedAt    time.Time         `json:"reservedAt"`
	ExpiresAt     time.Time         `json:"expiresAt"`
	CapturedAt    *time.Time        `json:"capturedAt,omitempty"`
	ReleasedAt    *time.Time        `json:"releasedAt,omitempty"`
	CreatedBy     string            `json:"createdBy,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

// Expired reports whether the reservation's hold has lapsed at the given
// time. Expiry is lazy: nothing reconciles an expired reservation until a
// capture is attempted against it.
func (r *Reservation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// LedgerEntryType is the direction of a ledger entry.
type LedgerEntryType string

const (
	// LedgerDebit is written on capture.
	LedgerDebit LedgerEntryType = "DEBIT"
	// LedgerCredit is written on release.
	LedgerCredit LedgerEntryType = "CREDIT"
)

// LedgerTransaction is one append-only credit ledger entry. ReferenceID is
// the order ID the movement belongs to.
type LedgerTransaction struct {
	ID          string          `json:"id"`
	Type        LedgerEntryType `json:"type"`
	Amount      int64           `json:"amount"`
	ReferenceID string          `json:"referenceId"`
	CustomerID  string          `json:"customerId"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"timestamp"`
}
