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

package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dapr/kit/logger"

	"github.com/meridianerp/finance-core/credit"
	"github.com/meridianerp/finance-core/events"
	"github.com/meridianerp/finance-core/inventory"
	"github.com/meridianerp/finance-core/orders"
)

const (
	defaultMaxStepAttempts = 3
	defaultStepRetryDelay  = 100 * time.Millisecond
)

// OrchestratorOptions configures the orchestrator. Registry, Publisher
// and Stock are optional; a nil Stock fails flows requesting stock
// reservation.
type OrchestratorOptions struct {
	// MaxStepAttempts bounds retries of a step failing with an
	// infrastructure error. Domain failures are terminal immediately.
	MaxStepAttempts int
	// StepRetryDelay is the pause between step attempts.
	StepRetryDelay time.Duration
	Registry       Registry
	Publisher      events.Publisher
	Stock          inventory.Reserver
}

// Orchestrator sequences credit service calls (plus the optional stock
// step) as a saga with per-step compensation.
type Orchestrator struct {
	service   *credit.Service
	stock     inventory.Reserver
	registry  Registry
	publisher events.Publisher
	log       logger.Logger

	maxStepAttempts int
	stepRetryDelay  time.Duration
}

// NewOrchestrator creates a checkout orchestrator on top of the credit
// service.
func NewOrchestrator(service *credit.Service, opts OrchestratorOptions, log logger.Logger) *Orchestrator {
	if opts.MaxStepAttempts <= 0 {
		opts.MaxStepAttempts = defaultMaxStepAttempts
	}
	if opts.StepRetryDelay <= 0 {
		opts.StepRetryDelay = defaultStepRetryDelay
	}
	return &Orchestrator{
		service:         service,
		stock:           opts.Stock,
		registry:        opts.Registry,
		publisher:       opts.Publisher,
		log:             log,
		maxStepAttempts: opts.MaxStepAttempts,
		stepRetryDelay:  opts.StepRetryDelay,
	}
}

// step pairs an action with its compensation. compensate is nil for steps
// with nothing to undo.
type step struct {
	name               string
	run                func(ctx context.Context) error
	compensationAction string
	compensate         func(ctx context.Context) error
}

// ExecuteCheckoutFlow runs the checkout saga for one cart. It never
// returns a Go error: every outcome, including infrastructure failures,
// is reported through the Result so callers observe which step failed and
// which compensations ran.
func (o *Orchestrator) ExecuteCheckoutFlow(ctx context.Context, req Request, opts FlowOptions) *Result {
	result := &Result{
		RunID:      uuid.New().String(),
		CartID:     req.CartID,
		CustomerID: req.CustomerID,
		StartedAt:  time.Now().UTC(),
	}

	cart, err := o.service.GetCart(ctx, req.CartID)
	if err != nil {
		return o.finish(ctx, result, "", err)
	}
	if req.CustomerID == "" {
		result.CustomerID = cart.CustomerID
	}

	// The order ID is allocated up front so the credit reservation can
	// reference the order before the order row exists.
	orderID := uuid.New().String()
	steps := o.buildSteps(cart, orderID, result, opts)
	result.Steps = make([]*StepRecord, len(steps))
	for i, s := range steps {
		result.Steps[i] = &StepRecord{Name: s.name, Status: StepPending}
	}
	o.persist(ctx, result)

	for i, s := range steps {
		record := result.Steps[i]
		err := o.runStep(ctx, s, record, result)
		if err != nil {
			o.compensate(ctx, steps[:i], result)
			return o.finish(ctx, result, s.name, err)
		}
	}
	return o.finish(ctx, result, "", nil)
}

func (o *Orchestrator) buildSteps(cart *orders.Cart, orderID string, result *Result, opts FlowOptions) []step {
	steps := make([]step, 0, 4)

	if opts.ReserveCredit {
		steps = append(steps, step{
			name: StepReserveCredit,
			run: func(ctx context.Context) error {
				resp, err := o.service.ReserveCredit(ctx, credit.ReserveCreditRequest{
					CustomerID: result.CustomerID,
					OrderID:    orderID,
					Amount:     cart.Total,
					Notes:      "checkout run " + result.RunID,
				})
				if err != nil {
					return err
				}
				result.ReservationID = resp.ReservationID
				return nil
			},
			compensationAction: CompensationReleaseCredit,
			compensate: func(ctx context.Context) error {
				_, err := o.service.ReleaseCredit(ctx, credit.ReleaseCreditRequest{
					OrderID: orderID,
					Reason:  "checkout compensation",
				})
				return err
			},
		})
	}

	steps = append(steps, step{
		name: StepCreateOrder,
		run: func(ctx context.Context) error {
			resp, err := o.service.CreateOrder(ctx, credit.CreateOrderRequest{
				CartID:     result.CartID,
				CustomerID: result.CustomerID,
				OrderID:    orderID,
			})
			if err != nil {
				return err
			}
			result.OrderID = resp.OrderID
			result.OrderNumber = resp.OrderNumber
			return nil
		},
		compensationAction: CompensationCancelOrder,
		compensate: func(ctx context.Context) error {
			// Credit and stock have their own compensations; here we only
			// mark the order cancelled.
			_, err := o.service.RollbackOrder(ctx, credit.RollbackOrderRequest{
				OrderID: orderID,
				Reason:  "checkout compensation",
			})
			return err
		},
	})

	if opts.ReserveStock {
		steps = append(steps, step{
			name: StepReserveStock,
			run: func(ctx context.Context) error {
				if o.stock == nil {
					return credit.NewError(credit.KindValidation, "stock reservation requested but no stock collaborator is configured")
				}
				return o.stock.Reserve(ctx, orderID, cart.Items)
			},
			compensationAction: CompensationReleaseStock,
			compensate: func(ctx context.Context) error {
				return o.stock.Release(ctx, orderID)
			},
		})
	}

	if opts.ReserveCredit {
		// Capture is the pivot: once it completes the flow cannot fail,
		// so it carries no compensation.
		steps = append(steps, step{
			name: StepCaptureCredit,
			run: func(ctx context.Context) error {
				resp, err := o.service.CaptureCredit(ctx, credit.CaptureCreditRequest{OrderID: orderID})
				if err != nil {
					return err
				}
				result.TransactionID = resp.TransactionID
				return nil
			},
		})
	}

	return steps
}

// runStep executes one step with bounded retries. Domain failures
// (credit.Error kinds) are terminal on the first occurrence;
// infrastructure errors retry up to maxStepAttempts.
func (o *Orchestrator) runStep(ctx context.Context, s step, record *StepRecord, result *Result) error {
	record.Status = StepRunning
	o.persist(ctx, result)

	var err error
	for attempt := 1; attempt <= o.maxStepAttempts; attempt++ {
		record.Attempts = attempt
		err = s.run(ctx)
		if err == nil {
			record.Status = StepCompleted
			record.Error = ""
			o.persist(ctx, result)
			return nil
		}
		record.Error = err.Error()

		if credit.KindOf(err) != credit.KindNone {
			break
		}
		if attempt < o.maxStepAttempts {
			o.log.Warnf("Checkout run %s step %s attempt %d failed, retrying: %v", result.RunID, s.name, attempt, err)
			select {
			case <-time.After(o.stepRetryDelay):
			case <-ctx.Done():
				err = ctx.Err()
				attempt = o.maxStepAttempts
			}
		}
	}

	record.Status = StepFailed
	o.persist(ctx, result)
	return err
}

// compensate walks the completed steps in reverse, executing each one's
// compensating action. Compensation failures are recorded and logged but
// do not stop the walk.
func (o *Orchestrator) compensate(ctx context.Context, completed []step, result *Result) {
	var errs error
	for i := len(completed) - 1; i >= 0; i-- {
		s := completed[i]
		if s.compensate == nil {
			continue
		}
		record := result.Step(s.name)
		record.Compensation = &Compensation{Action: s.compensationAction}

		err := s.compensate(ctx)
		if err != nil {
			record.Compensation.Error = err.Error()
			errs = multierr.Append(errs, err)
			o.log.Errorf("Checkout run %s compensation %s for step %s failed: %v", result.RunID, s.compensationAction, s.name, err)
			continue
		}
		record.Compensation.Executed = true
		o.persist(ctx, result)
	}
	if errs != nil {
		o.log.Errorf("Checkout run %s finished compensation with errors: %v", result.RunID, errs)
	}
}

func (o *Orchestrator) finish(ctx context.Context, result *Result, failedStep string, err error) *Result {
	result.FinishedAt = time.Now().UTC()
	if err == nil {
		result.Success = true
	} else {
		result.FailedStep = failedStep
		result.Error = err.Error()
	}
	o.persist(ctx, result)
	o.publish(ctx, result)
	return result
}

// persist saves the run after every transition. Registry failures are
// logged and ignored: observability must not break the flow.
func (o *Orchestrator) persist(ctx context.Context, result *Result) {
	if o.registry == nil {
		return
	}
	err := o.registry.Save(ctx, result)
	if err != nil {
		o.log.Warnf("Failed to persist checkout run %s: %v", result.RunID, err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, result *Result) {
	if o.publisher == nil {
		return
	}
	event := &events.CheckoutEvent{
		Type:          events.TypeCheckoutCompleted,
		RunID:         result.RunID,
		CartID:        result.CartID,
		CustomerID:    result.CustomerID,
		OrderID:       result.OrderID,
		ReservationID: result.ReservationID,
		OccurredAt:    result.FinishedAt,
	}
	if !result.Success {
		event.Type = events.TypeCheckoutFailed
		event.FailedStep = result.FailedStep
		event.Error = result.Error
	}
	err := o.publisher.Publish(ctx, event)
	if err != nil {
		o.log.Warnf("Failed to publish %s event for run %s: %v", event.Type, result.RunID, err)
	}
}
