// Package ledger constructs immutable monetization transactions.
//
// Record is pure: the fee rate is taken from the settings passed in and the
// timestamp from the caller, so a transaction can be rebuilt deterministically.
// Stores only append; there is no update or delete.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/types"
)

var (
	ErrInvalidType       = errors.New("ledger: invalid transaction type")
	ErrNonPositiveAmount = errors.New("ledger: gross amount must be positive")
	ErrCurrencyMismatch  = errors.New("ledger: currency does not match platform currency")
	ErrMissingCreator    = errors.New("ledger: creator is required")
	ErrInvalidFeeRate    = errors.New("ledger: invalid fee rate")
	ErrMissingPaymentRef = errors.New("ledger: payment reference is required")
	ErrSettingsRequired  = errors.New("ledger: settings are required")
)

type Type string

const (
	TypeSubscription Type = "subscription"
	TypeTip          Type = "tip"
	TypePPV          Type = "ppv"
)

// Types lists every transaction type in reporting order.
var Types = []Type{TypeSubscription, TypeTip, TypePPV}

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeSubscription, TypeTip, TypePPV:
		return true
	}
	return false
}

// Transaction satisfies Net + Fee == Gross.
type Transaction struct {
	ID         id.TransactionID `json:"id"`
	CreatorID  id.ProfileID     `json:"creator_id"`
	FanID      id.ProfileID     `json:"fan_id,omitempty"`
	Type       Type             `json:"type"`
	Gross      types.Money      `json:"gross"`
	Fee        types.Money      `json:"fee"`
	Net        types.Money      `json:"net"`
	FeeRate    types.Rate       `json:"fee_rate"`
	SourceID   id.ID            `json:"source_id,omitempty"`
	PaymentRef string           `json:"payment_ref"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Event is the monetization fact a transaction is recorded for.
type Event struct {
	Creator    id.ProfileID
	Fan        id.ProfileID
	Type       Type
	Gross      types.Money
	Source     id.ID
	PaymentRef string
}

// Record builds the transaction for ev using the fee rate in s.
func Record(ev Event, s *settings.Settings, now time.Time) (*Transaction, error) {
	if s == nil {
		return nil, ErrSettingsRequired
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ev.Type)
	}
	if ev.Creator.IsNil() {
		return nil, ErrMissingCreator
	}
	if !ev.Gross.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrNonPositiveAmount, ev.Gross)
	}
	if ev.Gross.Currency != s.Currency {
		return nil, fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, ev.Gross.Currency, s.Currency)
	}
	if !s.FeeRate.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFeeRate, s.FeeRate)
	}
	if ev.PaymentRef == "" {
		return nil, ErrMissingPaymentRef
	}

	fee := ev.Gross.ApplyRate(s.FeeRate)

	return &Transaction{
		ID:         id.NewTransactionID(),
		CreatorID:  ev.Creator,
		FanID:      ev.Fan,
		Type:       ev.Type,
		Gross:      ev.Gross,
		Fee:        fee,
		Net:        ev.Gross.Subtract(fee),
		FeeRate:    s.FeeRate,
		SourceID:   ev.Source,
		PaymentRef: ev.PaymentRef,
		CreatedAt:  now.UTC(),
	}, nil
}
