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

// Package orders holds the cart and order model owned by the order module,
// and the store contracts the financial services consume.
package orders

import "time"

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	// CartOpen means the cart can still be converted to an order.
	CartOpen CartStatus = "OPEN"
	// CartConverted means an order was created from the cart. The
	// OPEN -> CONVERTED transition happens in the same transaction as the
	// order insert and is the idempotency guard against double order
	// creation.
	CartConverted CartStatus = "CONVERTED"
)

// CartItem is one line of a cart. Amounts are in minor units (cents).
type CartItem struct {
	SKU         string `json:"sku"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

// Cart is a customer's cart pending conversion to an order.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId"`
	Status     CartStatus `json:"status"`
	Items      []CartItem `json:"items"`
	Total      int64      `json:"total"`
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderNew       OrderStatus = "NEW"
	OrderCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus tracks whether credit was captured for the order.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Order is created from a cart exactly once.
type Order struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	CartID        string        `json:"cartId"`
	CustomerID    string        `json:"customerId"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         int64         `json:"total"`
	CreatedAt     time.Time     `json:"createdAt"`
	CancelledAt   *time.Time    `json:"cancelledAt,omitempty"`
}
