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

package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/checkout"
	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/events"
	"github.com/meridianerp/finance-core/inventory"
	"github.com/meridianerp/finance-core/orders"
	memstore "github.com/meridianerp/finance-core/storage/memory"
	"github.com/meridianerp/finance-core/transactor"
	tmemory "github.com/meridianerp/finance-core/transactor/memory"
)

type flowHarness struct {
	orc      *checkout.Orchestrator
	svc      *credit.Service
	stock    *inventory.InMemory
	registry *checkout.InMemoryRegistry
	events   *events.InMemoryPublisher
}

func newFlowHarness(t *testing.T, ds *memstore.Dataset) *flowHarness {
	t.Helper()
	log := logger.NewLogger("checkout.test")
	log.SetOutputLevel(logger.ErrorLevel)

	driver := tmemory.NewDriver(log, ds)
	exec := transactor.New(driver, log)
	t.Cleanup(func() { _ = exec.Close() })

	stock := inventory.NewInMemory(log)
	svc := credit.NewService(exec, memstore.NewStores(), credit.ServiceOptions{Stock: stock}, log)

	registry := checkout.NewInMemoryRegistry()
	publisher := events.NewInMemoryPublisher()
	orc := checkout.NewOrchestrator(svc, checkout.OrchestratorOptions{
		Registry:       registry,
		Publisher:      publisher,
		Stock:          stock,
		StepRetryDelay: time.Millisecond,
	}, log)

	return &flowHarness{
		orc:      orc,
		svc:      svc,
		stock:    stock,
		registry: registry,
		events:   publisher,
	}
}

func checkoutDataset() *memstore.Dataset {
	return memstore.NewDataset().
		SeedAccount(&credit.CreditAccount{
			CustomerID:  "cust-1",
			CreditLimit: 10_000,
			UsedCredit:  2_000,
			IsActive:    true,
		}).
		SeedCart(&orders.Cart{
			ID:         "cart-1",
			CustomerID: "cust-1",
			Status:     orders.CartOpen,
			Items: []orders.CartItem{
				{SKU: "SKU-1", Description: "Widget", Quantity: 3, UnitPrice: 1_000},
			},
			Total: 3_000,
		})
}

func allSteps() checkout.FlowOptions {
	return checkout.FlowOptions{ReserveCredit: true, ReserveStock: true}
}

func TestExecuteCheckoutFlow(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
	require.True(t, result.Success, "flow failed at %s: %s", result.FailedStep, result.Error)
	assert.True(t, result.Finished())
	assert.Equal(t, "cust-1", result.CustomerID)
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, "ORD-000001", result.OrderNumber)
	assert.NotEmpty(t, result.ReservationID)
	assert.NotEmpty(t, result.TransactionID)

	require.Len(t, result.Steps, 4)
	for _, s := range result.Steps {
		assert.Equal(t, checkout.StepCompleted, s.Status, s.Name)
		assert.Equal(t, 1, s.Attempts, s.Name)
		assert.Nil(t, s.Compensation, s.Name)
	}

	order, err := h.svc.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderNew, order.Status)
	assert.Equal(t, orders.PaymentPaid, order.PaymentStatus)

	reservation, err := h.svc.GetReservation(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, credit.ReservationCaptured, reservation.Status)

	assert.True(t, h.stock.Reserved(result.OrderID))

	saved, err := h.registry.Get(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.True(t, saved.Success)
	assert.Equal(t, result.OrderID, saved.OrderID)

	published := h.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeCheckoutCompleted, published[0].Type)
	assert.Equal(t, result.RunID, published[0].RunID)
}

func TestFlowWithoutOptionalSteps(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, checkout.FlowOptions{})
	require.True(t, result.Success)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, checkout.StepCreateOrder, result.Steps[0].Name)
	assert.Empty(t, result.ReservationID)

	// No credit moved without the credit steps.
	acct, err := h.svc.GetAccount(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), acct.UsedCredit)
}

func TestFlowUnknownCart(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-missing"}, allSteps())
	assert.False(t, result.Success)
	assert.True(t, result.Finished())
	assert.Empty(t, result.Steps)
	assert.Contains(t, result.Error, "cart-missing")

	published := h.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeCheckoutFailed, published[0].Type)
}

func TestFlowCompensatesOnConvertedCart(t *testing.T) {
	ds := checkoutDataset()
	ds.Carts["cart-1"].Status = orders.CartConverted
	h := newFlowHarness(t, ds)

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
	require.False(t, result.Success)
	assert.Equal(t, checkout.StepCreateOrder, result.FailedStep)

	// A domain failure is terminal on the first attempt.
	failed := result.Step(checkout.StepCreateOrder)
	require.NotNil(t, failed)
	assert.Equal(t, checkout.StepFailed, failed.Status)
	assert.Equal(t, 1, failed.Attempts)

	// The credit reservation was compensated and the hold restored.
	reserve := result.Step(checkout.StepReserveCredit)
	require.NotNil(t, reserve)
	assert.Equal(t, checkout.StepCompleted, reserve.Status)
	require.NotNil(t, reserve.Compensation)
	assert.Equal(t, checkout.CompensationReleaseCredit, reserve.Compensation.Action)
	assert.True(t, reserve.Compensation.Executed)

	acct, err := h.svc.GetAccount(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), acct.UsedCredit)

	published := h.events.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeCheckoutFailed, published[0].Type)
	assert.Equal(t, checkout.StepCreateOrder, published[0].FailedStep)
}

func TestFlowCompensatesOnStockFailure(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())
	h.stock.ReserveErr = errors.New("stock backend unavailable")

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
	require.False(t, result.Success)
	assert.Equal(t, checkout.StepReserveStock, result.FailedStep)

	// An infrastructure failure is retried before giving up.
	failed := result.Step(checkout.StepReserveStock)
	require.NotNil(t, failed)
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, failed.Error, "stock backend unavailable")

	// Both completed steps compensated, in reverse order.
	for _, name := range []string{checkout.StepReserveCredit, checkout.StepCreateOrder} {
		record := result.Step(name)
		require.NotNil(t, record, name)
		require.NotNil(t, record.Compensation, name)
		assert.True(t, record.Compensation.Executed, name)
	}

	acct, err := h.svc.GetAccount(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000), acct.UsedCredit)

	order, err := h.svc.GetOrder(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, orders.OrderCancelled, order.Status)

	reservation, err := h.svc.GetReservation(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, credit.ReservationReleased, reservation.Status)
}

func TestFlowInsufficientCreditFailsFirstStep(t *testing.T) {
	ds := checkoutDataset()
	ds.Accounts["cust-1"].UsedCredit = 9_000
	h := newFlowHarness(t, ds)

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
	require.False(t, result.Success)
	assert.Equal(t, checkout.StepReserveCredit, result.FailedStep)

	// Nothing to compensate: the first step never completed.
	for _, s := range result.Steps {
		assert.Nil(t, s.Compensation, s.Name)
	}

	// The cart stays OPEN for another attempt.
	cart, err := h.svc.GetCart(context.Background(), "cart-1")
	require.NoError(t, err)
	assert.Equal(t, orders.CartOpen, cart.Status)
}

func TestConcurrentFlowsSameCart(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())

	results := make(chan *checkout.Result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
		}()
	}

	var succeeded, failed *checkout.Result
	for i := 0; i < 2; i++ {
		r := <-results
		if r.Success {
			require.Nil(t, succeeded, "only one run may convert the cart")
			succeeded = r
		} else {
			failed = r
		}
	}
	require.NotNil(t, succeeded)
	require.NotNil(t, failed)
	assert.Equal(t, checkout.StepCreateOrder, failed.FailedStep)

	// The losing run released its reservation; only the winner's capture
	// holds credit.
	acct, err := h.svc.GetAccount(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), acct.UsedCredit)
}

func TestWaitForRun(t *testing.T) {
	h := newFlowHarness(t, checkoutDataset())

	result := h.orc.ExecuteCheckoutFlow(context.Background(), checkout.Request{CartID: "cart-1"}, allSteps())
	require.True(t, result.Success)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	run, err := checkout.WaitForRun(ctx, h.registry, result.RunID, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, run.RunID)
	assert.True(t, run.Finished())

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	_, err = checkout.WaitForRun(ctx2, h.registry, "run-that-never-finishes", time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
