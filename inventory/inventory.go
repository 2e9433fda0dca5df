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

// Package inventory defines the stock reservation collaborator consumed
// by the checkout orchestrator. The real stock subsystem lives in another
// module; this package carries the contract and an in-memory
// implementation for tests and the simulator.
package inventory

import (
	"context"
	"sync"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/orders"
)

// Reserver reserves and releases stock for an order. Reserve must be
// idempotent per order ID.
type Reserver interface {
	Reserve(ctx context.Context, orderID string, items []orders.CartItem) error
	Release(ctx context.Context, orderID string) error
}

// InMemory is a Reserver holding reservations in a map.
type InMemory struct {
	mu       sync.Mutex
	reserved map[string][]orders.CartItem
	log      logger.Logger

	// ReserveErr, when set, is returned by Reserve. Tests use it to force
	// the stock step of a checkout flow to fail.
	ReserveErr error
}

// NewInMemory returns an empty in-memory stock reserver.
func NewInMemory(log logger.Logger) *InMemory {
	return &InMemory{
		reserved: map[string][]orders.CartItem{},
		log:      log,
	}
}

func (s *InMemory) Reserve(ctx context.Context, orderID string, items []orders.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReserveErr != nil {
		return s.ReserveErr
	}
	if _, ok := s.reserved[orderID]; ok {
		return nil
	}
	s.reserved[orderID] = items
	s.log.Debugf("Reserved stock for order %s (%d items)", orderID, len(items))
	return nil
}

func (s *InMemory) Release(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, orderID)
	s.log.Debugf("Released stock for order %s", orderID)
	return nil
}

// Reserved reports whether stock is held for the order.
func (s *InMemory) Reserved(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.reserved[orderID]
	return ok
}
