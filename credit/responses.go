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

import "github.com/meridianerp/finance-core/transactor"

// TxMeta describes the transaction an operation ran in.
type TxMeta struct {
	TransactionID  string `json:"transactionId"`
	Status         string `json:"status"`
	IsolationLevel string `json:"isolationLevel,omitempty"`
}

func txMetaFromResult(res *transactor.Result) TxMeta {
	if res == nil {
		return TxMeta{}
	}
	return TxMeta{
		TransactionID:  res.TransactionID,
		Status:         string(res.Status),
		IsolationLevel: string(res.Isolation),
	}
}

// ReserveCreditResponse reports the reservation holding the credit. For an
// idempotent re-reserve it carries the original reservation's ID and
// amount.
type ReserveCreditResponse struct {
	ReservationID   string `json:"reservationId"`
	ReservedAmount  int64  `json:"reservedAmount"`
	AvailableCredit int64  `json:"availableCredit"`
	TxMeta          TxMeta `json:"-"`
}

// CaptureCreditResponse reports the ledger transaction written by the
// capture.
type CaptureCreditResponse struct {
	TransactionID  string `json:"transactionId"`
	CapturedAmount int64  `json:"capturedAmount"`
	TxMeta         TxMeta `json:"-"`
}

// ReleaseCreditResponse reports the credit restored by the release.
type ReleaseCreditResponse struct {
	ReleasedAmount int64  `json:"releasedAmount"`
	TxMeta         TxMeta `json:"-"`
}

// CreateOrderResponse reports the created order.
type CreateOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	TxMeta      TxMeta `json:"-"`
}

// RollbackOrderResponse reports how much credit the rollback released.
// CreditReleased is zero when the order had no ACTIVE reservation or
// ReleaseCredit was not requested.
type RollbackOrderResponse struct {
	CreditReleased int64  `json:"creditReleased"`
	TxMeta         TxMeta `json:"-"`
}

// EnvelopeError is the error half of an Envelope.
type EnvelopeError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Envelope is the uniform result shape exposed to API surfaces:
// {success, data?, error?, metadata}.
type Envelope struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    *EnvelopeError `json:"error,omitempty"`
	Metadata TxMeta         `json:"metadata"`
}

// OKEnvelope wraps a successful operation result.
func OKEnvelope(data any, meta TxMeta) Envelope {
	return Envelope{
		Success:  true,
		Data:     data,
		Metadata: meta,
	}
}

// ErrEnvelope wraps a failed operation result.
func ErrEnvelope(err error, meta TxMeta) Envelope {
	return Envelope{
		Success: false,
		Error: &EnvelopeError{
			Kind:    KindOf(err),
			Message: err.Error(),
		},
		Metadata: meta,
	}
}
