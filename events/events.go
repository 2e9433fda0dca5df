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

// Package events carries the checkout lifecycle events consumed by
// downstream ERP modules (notifications, B2B portal).
package events

import (
	"context"
	"io"
	"sync"
	"time"
)

// Event types.
const (
	TypeCheckoutCompleted = "checkout.completed"
	TypeCheckoutFailed    = "checkout.failed"
)

// CheckoutEvent is published once per checkout run, on its terminal
// transition.
type CheckoutEvent struct {
	Type          string    `json:"type"`
	RunID         string    `json:"runId"`
	CartID        string    `json:"cartId"`
	CustomerID    string    `json:"customerId"`
	OrderID       string    `json:"orderId,omitempty"`
	ReservationID string    `json:"reservationId,omitempty"`
	FailedStep    string    `json:"failedStep,omitempty"`
	Error         string    `json:"error,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher publishes checkout lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *CheckoutEvent) error
	io.Closer
}

// InMemoryPublisher collects events in memory, for tests and the
// simulator.
type InMemoryPublisher struct {
	mu     sync.Mutex
	events []*CheckoutEvent
}

// NewInMemoryPublisher returns an empty in-memory publisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{}
}

func (p *InMemoryPublisher) Publish(_ context.Context, event *CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := *event
	p.events = append(p.events, &e)
	return nil
}

func (p *InMemoryPublisher) Close() error {
	return nil
}

// Events returns a copy of the published events in order.
func (p *InMemoryPublisher) Events() []*CheckoutEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*CheckoutEvent, len(p.events))
	copy(out, p.events)
	return out
}
