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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dapr/kit/logger"
	"github.com/dapr/kit/retry"

	"github.com/meridianerp/finance-core/metadata"
	"github.com/meridianerp/finance-core/orders"
	"github.com/meridianerp/finance-core/transactor"
)

// DefaultReservationTimeout is how long a reservation stays capturable
// when the options don't say otherwise.
const DefaultReservationTimeout = 30 * time.Minute

// StockReleaser releases reserved stock for an order. Implemented by the
// inventory collaborator; the stock subsystem itself is outside this
// module.
type StockReleaser interface {
	Release(ctx context.Context, orderID string) error
}

// Stores bundles the storage interfaces the service operates on. Accounts,
// Reservations and Ledger belong to the financial module; Carts and Orders
// to the order module.
type Stores struct {
	Accounts     AccountStore
	Reservations ReservationStore
	Ledger       LedgerStore
	Carts        orders.CartStore
	Orders       orders.OrderStore
}

// ServiceOptions configures the service.
type ServiceOptions struct {
	// ReservationTimeout sets each reservation's ExpiresAt relative to its
	// ReservedAt. Defaults to DefaultReservationTimeout.
	ReservationTimeout time.Duration
	// Isolation is the level used by the credit-mutating operations
	// (reserve, capture, release, rollback). Defaults to SERIALIZABLE:
	// the credit account row is the most contended resource in the
	// system. Order creation runs at the driver default level.
	Isolation transactor.IsolationLevel
	// Timeout bounds each transaction attempt.
	Timeout time.Duration
	// Retry governs retries of deadlocks and serialization conflicts.
	Retry *retry.Config
	// Stock is the optional stock collaborator used by RollbackOrder.
	Stock StockReleaser
	// Clock overrides the time source. Tests use it to drive reservation
	// expiry; nil means time.Now.
	Clock func() time.Time
}

func (o *ServiceOptions) setDefaults() {
	if o.ReservationTimeout <= 0 {
		o.ReservationTimeout = DefaultReservationTimeout
	}
	if o.Isolation == transactor.IsolationDefault {
		o.Isolation = transactor.IsolationSerializable
	}
	if o.Retry == nil {
		cfg := retry.DefaultConfig()
		cfg.Policy = retry.PolicyConstant
		cfg.Duration = 100 * time.Millisecond
		cfg.MaxRetries = 3
		o.Retry = &cfg
	}
}

// OptionsFromMetadata builds ServiceOptions from component metadata.
// Recognized properties: reservationTimeout, isolationLevel, timeout, and
// the txRetry* family (txRetryPolicy, txRetryMaxRetries, txRetryDuration,
// ...).
func OptionsFromMetadata(meta metadata.Base) (ServiceOptions, error) {
	var opts ServiceOptions

	var m struct {
		ReservationTimeout time.Duration `mapstructure:"reservationTimeout"`
		IsolationLevel     string        `mapstructure:"isolationLevel"`
		Timeout            time.Duration `mapstructure:"timeout"`
	}
	err := metadata.DecodeMetadata(meta.Properties, &m)
	if err != nil {
		return opts, err
	}

	opts.ReservationTimeout = m.ReservationTimeout
	opts.Timeout = m.Timeout
	opts.Isolation, err = transactor.ParseIsolationLevel(m.IsolationLevel)
	if err != nil {
		return opts, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.Policy = retry.PolicyConstant
	retryCfg.Duration = 100 * time.Millisecond
	retryCfg.MaxRetries = 3
	err = retry.DecodeConfigWithPrefix(&retryCfg, meta.Properties, "txRetry")
	if err != nil {
		return opts, fmt.Errorf("failed to decode txRetry options: %w", err)
	}
	opts.Retry = &retryCfg

	return opts, nil
}

// Service implements the credit reservation operations. Every operation
// executes inside exactly one Executor call; any failure restores the
// pre-operation state.
type Service struct {
	exec         *transactor.Executor
	accounts     AccountStore
	reservations ReservationStore
	ledger       LedgerStore
	carts        orders.CartStore
	orders       orders.OrderStore
	stock        StockReleaser
	opts         ServiceOptions
	log          logger.Logger

	// now is replaceable in tests to drive expiry.
	now func() time.Time
}

// NewService creates the credit reservation service.
func NewService(exec *transactor.Executor, stores Stores, opts ServiceOptions, log logger.Logger) *Service {
	opts.setDefaults()
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		exec:         exec,
		accounts:     stores.Accounts,
		reservations: stores.Reservations,
		ledger:       stores.Ledger,
		carts:        stores.Carts,
		orders:       stores.Orders,
		stock:        opts.Stock,
		opts:         opts,
		log:          log,
		now:          now,
	}
}

func (s *Service) mutationOptions() transactor.Options {
	return transactor.Options{
		Isolation: s.opts.Isolation,
		Timeout:   s.opts.Timeout,
		Retry:     s.opts.Retry,
	}
}

func (s *Service) defaultOptions() transactor.Options {
	return transactor.Options{
		Timeout: s.opts.Timeout,
		Retry:   s.opts.Retry,
	}
}

// ReserveCredit holds amount against the customer's credit limit for one
// order. The operation is idempotent per order: if a reservation already
// exists for the order it is returned unchanged and no second debit
// happens, regardless of the requested amount.
func (s *Service) ReserveCredit(ctx context.Context, req ReserveCreditRequest) (*ReserveCreditResponse, error) {
	if req.CustomerID == "" || req.OrderID == "" {
		return nil, NewError(KindValidation, "customerId and orderId are required")
	}
	if req.Amount <= 0 {
		return nil, NewError(KindValidation, "amount must be positive, got %d", req.Amount)
	}

	resp := &ReserveCreditResponse{}
	res, err := s.exec.Execute(ctx, s.mutationOptions(), func(ctx context.Context, sess *transactor.Session) error {
		return s.reserveCreditTx(ctx, sess, req, resp)
	})
	if err != nil {
		return nil, err
	}
	resp.TxMeta = txMetaFromResult(res)
	return resp, nil
}

func (s *Service) reserveCreditTx(ctx context.Context, sess *transactor.Session, req ReserveCreditRequest, resp *ReserveCreditResponse) error {
	tx := sess.Tx

	existing, err := s.reservations.GetByOrderID(ctx, tx, req.OrderID)
	if err != nil {
		return fmt.Errorf("failed to look up reservation for order %s: %w", req.OrderID, err)
	}
	if existing != nil {
		return s.reserveIdempotent(ctx, tx, req, existing, resp)
	}

	acct, err := s.accounts.GetForUpdate(ctx, tx, req.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load credit account for customer %s: %w", req.CustomerID, err)
	}
	if acct == nil {
		return NewError(KindNotFound, "customer %s has no credit account", req.CustomerID)
	}
	if !acct.IsActive {
		return NewError(KindInactiveCustomer, "credit account for customer %s is inactive", req.CustomerID)
	}

	available := acct.Available()
	if req.Amount > available {
		return NewError(KindInsufficientCredit, "requested %d exceeds available credit %d for customer %s", req.Amount, available, req.CustomerID)
	}

	now := s.now().UTC()
	reservation := &Reservation{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Status:        ReservationActive,
		BalanceBefore: acct.UsedCredit,
		BalanceAfter:  acct.UsedCredit + req.Amount,
		ReservedAt:    now,
		ExpiresAt:     now.Add(s.opts.ReservationTimeout),
		CreatedBy:     req.UserID,
		Notes:         req.Notes,
	}

	// Savepoint before the insert: a concurrent reservation for the same
	// order surfaces as a unique violation, which aborts the rest of the
	// transaction on PostgreSQL unless we can roll back to this point.
	spID, err := s.exec.CreateSavepoint(ctx, sess.ID, "reserve_insert")
	if err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	err = s.reservations.Create(ctx, tx, reservation)
	if errors.Is(err, ErrDuplicateReservation) {
		// Lost the race on the unique (order_id) constraint: undo the
		// failed insert and take the idempotent path.
		rbErr := s.exec.RollbackToSavepoint(ctx, sess.ID, spID)
		if rbErr != nil {
			return fmt.Errorf("failed to roll back to savepoint after duplicate reservation: %w", rbErr)
		}
		existing, err = s.reservations.GetByOrderID(ctx, tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to re-read reservation for order %s: %w", req.OrderID, err)
		}
		if existing == nil {
			return fmt.Errorf("reservation for order %s vanished after duplicate insert", req.OrderID)
		}
		return s.reserveIdempotent(ctx, tx, req, existing, resp)
	}
	if err != nil {
		return fmt.Errorf("failed to create reservation for order %s: %w", req.OrderID, err)
	}

	err = s.accounts.SetUsedCredit(ctx, tx, acct.CustomerID, reservation.BalanceAfter)
	if err != nil {
		return fmt.Errorf("failed to update used credit for customer %s: %w", acct.CustomerID, err)
	}

	resp.ReservationID = reservation.ID
	resp.ReservedAmount = reservation.Amount
	resp.AvailableCredit = acct.CreditLimit - reservation.BalanceAfter
	return nil
}

func (s *Service) reserveIdempotent(ctx context.Context, tx transactor.Tx, req ReserveCreditRequest, existing *Reservation, resp *ReserveCreditResponse) error {
	if existing.Amount != req.Amount {
		s.log.Warnf("Reservation %s for order %s already exists with amount %d; ignoring requested amount %d", existing.ID, req.OrderID, existing.Amount, req.Amount)
	}

	var available int64
	acct, err := s.accounts.Get(ctx, tx, existing.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load credit account for customer %s: %w", existing.CustomerID, err)
	}
	if acct != nil {
		available = acct.Available()
	}

	resp.ReservationID = existing.ID
	resp.ReservedAmount = existing.Amount
	resp.AvailableCredit = available
	return nil
}

// CaptureCredit converts the order's ACTIVE reservation into a DEBIT
// ledger entry and marks the order PAID. Capturing an expired reservation
// releases the held credit, marks the reservation EXPIRED and fails with
// KindExpired; the reconciliation commits even though the capture fails.
// A second capture fails with KindNoActiveReservation: captures are
// deliberately not idempotent.
func (s *Service) CaptureCredit(ctx context.Context, req CaptureCreditRequest) (*CaptureCreditResponse, error) {
	if req.OrderID == "" {
		return nil, NewError(KindValidation, "orderId is required")
	}

	resp := &CaptureCreditResponse{}
	var expiredErr *Error
	res, err := s.exec.Execute(ctx, s.mutationOptions(), func(ctx context.Context, sess *transactor.Session) error {
		expiredErr = nil

		reservation, err := s.reservations.GetByOrderID(ctx, sess.Tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to look up reservation for order %s: %w", req.OrderID, err)
		}
		if reservation == nil || reservation.Status != ReservationActive {
			return NewError(KindNoActiveReservation, "no active reservation for order %s", req.OrderID)
		}

		now := s.now().UTC()
		if reservation.Expired(now) {
			// Lazy expiry: reconcile here, atomically with the capture
			// attempt. The transaction commits; the capture still fails.
			err = s.releaseReservation(ctx, sess.Tx, reservation, now, ReservationExpired,
				fmt.Sprintf("credit released for order %s: reservation expired", req.OrderID))
			if err != nil {
				return err
			}
			s.log.Warnf("Reservation %s for order %s expired at %s; credit released", reservation.ID, req.OrderID, reservation.ExpiresAt.Format(time.RFC3339))
			expiredErr = NewError(KindExpired, "reservation %s for order %s expired at %s", reservation.ID, req.OrderID, reservation.ExpiresAt.Format(time.RFC3339))
			return nil
		}

		entry := &LedgerTransaction{
			ID:          uuid.New().String(),
			Type:        LedgerDebit,
			Amount:      reservation.Amount,
			ReferenceID: reservation.OrderID,
			CustomerID:  reservation.CustomerID,
			Description: fmt.Sprintf("credit captured for order %s", reservation.OrderID),
			CreatedAt:   now,
		}
		err = s.ledger.Append(ctx, sess.Tx, entry)
		if err != nil {
			return fmt.Errorf("failed to append ledger entry: %w", err)
		}

		reservation.Status = ReservationCaptured
		reservation.CapturedAt = &now
		err = s.reservations.Update(ctx, sess.Tx, reservation)
		if err != nil {
			return fmt.Errorf("failed to update reservation %s: %w", reservation.ID, err)
		}

		order, err := s.orders.Get(ctx, sess.Tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order %s: %w", req.OrderID, err)
		}
		if order == nil {
			// Credit can be captured before the order record exists when
			// the service is driven directly rather than by the checkout
			// orchestrator.
			s.log.Warnf("Captured credit for order %s but no order record exists to mark as paid", req.OrderID)
		} else {
			order.PaymentStatus = orders.PaymentPaid
			err = s.orders.Update(ctx, sess.Tx, order)
			if err != nil {
				return fmt.Errorf("failed to mark order %s as paid: %w", req.OrderID, err)
			}
		}

		resp.TransactionID = entry.ID
		resp.CapturedAmount = reservation.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredErr != nil {
		return nil, expiredErr
	}
	resp.TxMeta = txMetaFromResult(res)
	return resp, nil
}

// ReleaseCredit cancels the order's ACTIVE reservation, restores the held
// credit and writes a CREDIT ledger entry. A second release fails with
// KindNoActiveReservation; credit is never restored twice.
func (s *Service) ReleaseCredit(ctx context.Context, req ReleaseCreditRequest) (*ReleaseCreditResponse, error) {
	if req.OrderID == "" {
		return nil, NewError(KindValidation, "orderId is required")
	}

	resp := &ReleaseCreditResponse{}
	res, err := s.exec.Execute(ctx, s.mutationOptions(), func(ctx context.Context, sess *transactor.Session) error {
		reservation, err := s.reservations.GetByOrderID(ctx, sess.Tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to look up reservation for order %s: %w", req.OrderID, err)
		}
		if reservation == nil || reservation.Status != ReservationActive {
			return NewError(KindNoActiveReservation, "no active reservation for order %s", req.OrderID)
		}

		description := fmt.Sprintf("credit released for order %s", req.OrderID)
		if req.Reason != "" {
			description += ": " + req.Reason
		}
		err = s.releaseReservation(ctx, sess.Tx, reservation, s.now().UTC(), ReservationReleased, description)
		if err != nil {
			return err
		}

		resp.ReleasedAmount = reservation.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.TxMeta = txMetaFromResult(res)
	return resp, nil
}

// releaseReservation restores the reservation's amount to the account,
// writes the CREDIT ledger entry and moves the reservation to its terminal
// status. Callers have already verified the reservation is ACTIVE.
func (s *Service) releaseReservation(ctx context.Context, tx transactor.Tx, reservation *Reservation, now time.Time, terminal ReservationStatus, description string) error {
	acct, err := s.accounts.GetForUpdate(ctx, tx, reservation.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load credit account for customer %s: %w", reservation.CustomerID, err)
	}
	if acct == nil {
		return NewError(KindNotFound, "customer %s has no credit account", reservation.CustomerID)
	}

	used := acct.UsedCredit - reservation.Amount
	if used < 0 {
		s.log.Warnf("Releasing reservation %s would drive used credit below zero (%d - %d); clamping", reservation.ID, acct.UsedCredit, reservation.Amount)
		used = 0
	}
	err = s.accounts.SetUsedCredit(ctx, tx, acct.CustomerID, used)
	if err != nil {
		return fmt.Errorf("failed to update used credit for customer %s: %w", acct.CustomerID, err)
	}

	entry := &LedgerTransaction{
		ID:          uuid.New().String(),
		Type:        LedgerCredit,
		Amount:      reservation.Amount,
		ReferenceID: reservation.OrderID,
		CustomerID:  reservation.CustomerID,
		Description: description,
		CreatedAt:   now,
	}
	err = s.ledger.Append(ctx, tx, entry)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	reservation.Status = terminal
	reservation.ReleasedAt = &now
	err = s.reservations.Update(ctx, tx, reservation)
	if err != nil {
		return fmt.Errorf("failed to update reservation %s: %w", reservation.ID, err)
	}
	return nil
}

// CreateOrder converts an OPEN cart into an order. The cart's
// OPEN -> CONVERTED transition happens in the same transaction, so a
// concurrent retry cannot create a second order from the same cart.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	if req.CartID == "" {
		return nil, NewError(KindValidation, "cartId is required")
	}

	resp := &CreateOrderResponse{}
	res, err := s.exec.Execute(ctx, s.defaultOptions(), func(ctx context.Context, sess *transactor.Session) error {
		cart, err := s.carts.Get(ctx, sess.Tx, req.CartID)
		if err != nil {
			return fmt.Errorf("failed to load cart %s: %w", req.CartID, err)
		}
		if cart == nil {
			return NewError(KindNotFound, "cart %s not found", req.CartID)
		}
		if len(cart.Items) == 0 {
			return NewError(KindEmptyCart, "cart %s has no items", req.CartID)
		}
		if cart.Status != orders.CartOpen {
			return NewError(KindAlreadyConverted, "cart %s was already converted to an order", req.CartID)
		}
		if req.CustomerID != "" && req.CustomerID != cart.CustomerID {
			return NewError(KindValidation, "cart %s belongs to customer %s, not %s", req.CartID, cart.CustomerID, req.CustomerID)
		}

		orderID := req.OrderID
		if orderID == "" {
			orderID = uuid.New().String()
		}
		order := &orders.Order{
			ID:            orderID,
			CartID:        cart.ID,
			CustomerID:    cart.CustomerID,
			Status:        orders.OrderNew,
			PaymentStatus: orders.PaymentUnpaid,
			Total:         cart.Total,
			CreatedAt:     s.now().UTC(),
		}
		err = s.orders.Create(ctx, sess.Tx, order)
		if err != nil {
			return fmt.Errorf("failed to create order from cart %s: %w", req.CartID, err)
		}

		err = s.carts.SetStatus(ctx, sess.Tx, cart.ID, orders.CartConverted)
		if err != nil {
			return fmt.Errorf("failed to mark cart %s as converted: %w", req.CartID, err)
		}

		resp.OrderID = order.ID
		resp.OrderNumber = order.Number
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.TxMeta = txMetaFromResult(res)
	return resp, nil
}

// RollbackOrder cancels an order. With ReleaseCredit it also releases the
// order's ACTIVE reservation, restoring the held credit; an order without
// an ACTIVE reservation rolls back with CreditReleased zero. With
// ReleaseStock it delegates to the stock collaborator after the
// transaction commits.
func (s *Service) RollbackOrder(ctx context.Context, req RollbackOrderRequest) (*RollbackOrderResponse, error) {
	if req.OrderID == "" {
		return nil, NewError(KindValidation, "orderId is required")
	}

	resp := &RollbackOrderResponse{}
	res, err := s.exec.Execute(ctx, s.mutationOptions(), func(ctx context.Context, sess *transactor.Session) error {
		resp.CreditReleased = 0

		order, err := s.orders.Get(ctx, sess.Tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to load order %s: %w", req.OrderID, err)
		}
		if order == nil {
			return NewError(KindNotFound, "order %s not found", req.OrderID)
		}

		now := s.now().UTC()
		order.Status = orders.OrderCancelled
		order.CancelledAt = &now
		err = s.orders.Update(ctx, sess.Tx, order)
		if err != nil {
			return fmt.Errorf("failed to cancel order %s: %w", req.OrderID, err)
		}

		if !req.ReleaseCredit {
			return nil
		}
		reservation, err := s.reservations.GetByOrderID(ctx, sess.Tx, req.OrderID)
		if err != nil {
			return fmt.Errorf("failed to look up reservation for order %s: %w", req.OrderID, err)
		}
		if reservation == nil || reservation.Status != ReservationActive {
			// Nothing held; not an error.
			return nil
		}

		description := fmt.Sprintf("credit released for order %s: order rolled back", req.OrderID)
		if req.Reason != "" {
			description += ": " + req.Reason
		}
		err = s.releaseReservation(ctx, sess.Tx, reservation, now, ReservationReleased, description)
		if err != nil {
			return err
		}
		resp.CreditReleased = reservation.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.ReleaseStock && s.stock != nil {
		// The stock collaborator lives in a different store; its release
		// is best effort and logged, not rolled into this transaction.
		err = s.stock.Release(ctx, req.OrderID)
		if err != nil {
			s.log.Warnf("Failed to release stock for order %s: %v", req.OrderID, err)
		}
	}

	resp.TxMeta = txMetaFromResult(res)
	return resp, nil
}

// GetCart loads a cart in a read-only transaction. Used by the checkout
// orchestrator to price the credit reservation before the flow starts.
func (s *Service) GetCart(ctx context.Context, cartID string) (*orders.Cart, error) {
	var cart *orders.Cart
	_, err := s.exec.Execute(ctx, s.defaultOptions(), func(ctx context.Context, sess *transactor.Session) error {
		c, err := s.carts.Get(ctx, sess.Tx, cartID)
		if err != nil {
			return fmt.Errorf("failed to load cart %s: %w", cartID, err)
		}
		if c == nil {
			return NewError(KindNotFound, "cart %s not found", cartID)
		}
		cart = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// GetAccount loads a customer's credit account in a read-only transaction.
func (s *Service) GetAccount(ctx context.Context, customerID string) (*CreditAccount, error) {
	var acct *CreditAccount
	_, err := s.exec.Execute(ctx, s.defaultOptions(), func(ctx context.Context, sess *transactor.Session) error {
		a, err := s.accounts.Get(ctx, sess.Tx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load credit account for customer %s: %w", customerID, err)
		}
		if a == nil {
			return NewError(KindNotFound, "customer %s has no credit account", customerID)
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// GetReservation loads the reservation for an order in a read-only
// transaction, or (nil, nil) when none exists.
func (s *Service) GetReservation(ctx context.Context, orderID string) (*Reservation, error) {
	var reservation *Reservation
	_, err := s.exec.Execute(ctx, s.defaultOptions(), func(ctx context.Context, sess *transactor.Session) error {
		r, err := s.reservations.GetByOrderID(ctx, sess.Tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to look up reservation for order %s: %w", orderID, err)
		}
		reservation = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// GetOrder loads an order in a read-only transaction, or (nil, nil) when
// none exists.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	var order *orders.Order
	_, err := s.exec.Execute(ctx, s.defaultOptions(), func(ctx context.Context, sess *transactor.Session) error {
		o, err := s.orders.Get(ctx, sess.Tx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
