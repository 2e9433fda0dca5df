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

// Package checkout orchestrates the checkout flow as a saga: credit
// reservation, order creation, optional stock reservation and credit
// capture run as sequential steps, each paired with a compensating
// action executed in reverse order when a later step fails terminally.
// Cross-store coordination is deliberately not a distributed transaction;
// the per-step idempotency guarantees of the credit service make
// concurrent runs over the same cart safe.
package checkout

import "time"

// Step names, in flow order.
const (
	StepReserveCredit = "reserve_credit"
	StepCreateOrder   = "create_order"
	StepReserveStock  = "reserve_stock"
	StepCaptureCredit = "capture_credit"
)

// Compensation action names.
const (
	CompensationReleaseCredit = "release_credit"
	CompensationCancelOrder   = "cancel_order"
	CompensationReleaseStock  = "release_stock"
)

// StepStatus is the lifecycle state of one saga step.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
)

// Compensation records whether a completed step's compensating action ran
// after a later step failed.
type Compensation struct {
	Action   string `json:"action"`
	Executed bool   `json:"executed"`
	Error    string `json:"error,omitempty"`
}

// StepRecord is the per-step observability record of a run.
type StepRecord struct {
	Name         string        `json:"name"`
	Status       StepStatus    `json:"status"`
	Attempts     int           `json:"attempts"`
	Error        string        `json:"error,omitempty"`
	Compensation *Compensation `json:"compensation,omitempty"`
}

// Request starts a checkout flow for one cart.
type Request struct {
	CartID     string `json:"cartId"`
	CustomerID string `json:"customerId"`
}

// FlowOptions toggles the optional steps of the flow.
type FlowOptions struct {
	// ReserveCredit holds the cart total against the customer's credit
	// and captures it as the final step.
	ReserveCredit bool `json:"reserveCredit"`
	// ReserveStock reserves stock for the order via the inventory
	// collaborator.
	ReserveStock bool `json:"reserveStock"`
}

// Result is the full observability record of one checkout run: callers
// can assert exactly which step failed and which compensations ran.
type Result struct {
	RunID         string `json:"runId"`
	CartID        string `json:"cartId"`
	CustomerID    string `json:"customerId"`
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId,omitempty"`
	OrderNumber   string `json:"orderNumber,omitempty"`
	ReservationID string `json:"reservationId,omitempty"`
	// TransactionID is the ledger transaction written by the capture step.
	TransactionID string        `json:"transactionId,omitempty"`
	FailedStep    string        `json:"failedStep,omitempty"`
	Error         string        `json:"error,omitempty"`
	Steps         []*StepRecord `json:"steps"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt,omitempty"`
}

// Finished reports whether the run reached a terminal state.
func (r *Result) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Step returns the record with the given name, or nil.
func (r *Result) Step(name string) *StepRecord {
	for _, s := range r.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}
