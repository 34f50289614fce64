// Package settings holds the platform-wide singleton configuration that
// governs fees and subscription price bounds.
package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

var (
	ErrInvalidFeeRate     = errors.New("settings: fee rate must be between 0% and 100%")
	ErrInvalidPriceBounds = errors.New("settings: price bounds must satisfy 0 <= min <= max")
	ErrMissingCurrency    = errors.New("settings: currency is required")
)

type Settings struct {
	FeeRate              types.Rate   `json:"fee_rate"`
	MinSubscriptionPrice types.Money  `json:"min_subscription_price"`
	MaxSubscriptionPrice types.Money  `json:"max_subscription_price"`
	Currency             string       `json:"currency"`
	UpdatedAt            time.Time    `json:"updated_at"`
	UpdatedBy            id.ProfileID `json:"updated_by,omitempty"`
}

// Default returns the settings used until an admin stores others: a 20% fee
// and subscription prices from 0.00 to 1000.00 USD.
func Default() *Settings {
	return &Settings{
		FeeRate:              types.BasisPoints(2000),
		MinSubscriptionPrice: types.USD(0),
		MaxSubscriptionPrice: types.USD(100000),
		Currency:             "usd",
	}
}

// Validate checks the fee rate and price bounds.
func (s *Settings) Validate() error {
	if !s.FeeRate.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidFeeRate, s.FeeRate)
	}
	if strings.TrimSpace(s.Currency) == "" {
		return ErrMissingCurrency
	}
	if s.MinSubscriptionPrice.Currency != s.Currency || s.MaxSubscriptionPrice.Currency != s.Currency {
		return fmt.Errorf("%w: bounds must be in %s", ErrInvalidPriceBounds, s.Currency)
	}
	if s.MinSubscriptionPrice.IsNegative() || s.MinSubscriptionPrice.GreaterThan(s.MaxSubscriptionPrice) {
		return fmt.Errorf("%w: min %s, max %s", ErrInvalidPriceBounds, s.MinSubscriptionPrice, s.MaxSubscriptionPrice)
	}
	return nil
}

// PriceAllowed reports whether a creator may charge price for a subscription.
// A zero price (free subscription) is always allowed.
func (s *Settings) PriceAllowed(price types.Money) bool {
	if price.Currency != s.Currency {
		return false
	}
	if price.IsZero() {
		return true
	}
	return !price.LessThan(s.MinSubscriptionPrice) && !price.GreaterThan(s.MaxSubscriptionPrice)
}
