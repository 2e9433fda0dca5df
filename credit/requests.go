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

// ReserveCreditRequest asks to hold Amount against the customer's credit
// limit for one order.
type ReserveCreditRequest struct {
	CustomerID string `json:"customerId"`
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	UserID     string `json:"userId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// CaptureCreditRequest converts the order's ACTIVE reservation into a
// debit.
type CaptureCreditRequest struct {
	OrderID string `json:"orderId"`
}

// ReleaseCreditRequest cancels the order's ACTIVE reservation and restores
// the held credit.
type ReleaseCreditRequest struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
}

// CreateOrderRequest converts an OPEN cart into an order.
// OrderID is optional: when set, the order is created with this
// pre-allocated ID so a reservation can reference the order before it
// exists; when empty the service generates one.
type CreateOrderRequest struct {
	CartID     string `json:"cartId"`
	CustomerID string `json:"customerId"`
	OrderID    string `json:"orderId,omitempty"`
}

// RollbackOrderRequest cancels an order and optionally releases its credit
// reservation and stock.
type RollbackOrderRequest struct {
	OrderID       string `json:"orderId"`
	Reason        string `json:"reason,omitempty"`
	ReleaseCredit bool   `json:"releaseCredit"`
	ReleaseStock  bool   `json:"releaseStock"`
}
