// Package payment abstracts payment confirmation. Real gateways are out of
// scope; Mock stands in for them and honors idempotency keys the way a
// gateway would.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

var (
	ErrDeclined        = errors.New("payment: charge declined")
	ErrInvalidAmount   = errors.New("payment: amount must be positive")
	ErrUnknownCharge   = errors.New("payment: unknown charge reference")
	ErrAlreadyRefunded = errors.New("payment: charge already refunded")
)

// Charge is a request to capture money from a payer.
type Charge struct {
	// IdempotencyKey makes retries of the same logical charge return the
	// original receipt instead of capturing twice.
	IdempotencyKey string
	Payer          id.ProfileID
	Payee          id.ProfileID
	Amount         types.Money
	Description    string
}

type Receipt struct {
	Reference  string      `json:"reference"`
	Amount     types.Money `json:"amount"`
	CapturedAt time.Time   `json:"captured_at"`
}

// Processor confirms payments.
type Processor interface {
	Charge(ctx context.Context, c Charge) (*Receipt, error)
	// Refund reverses a captured charge. Refunding twice returns ErrAlreadyRefunded.
	Refund(ctx context.Context, reference string) error
}
