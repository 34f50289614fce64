// Package tip defines one-off payments from a fan to a creator.
package tip

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// MaxMessageLength is the longest message, in characters, a tip may carry.
const MaxMessageLength = 500

var (
	ErrNonPositiveAmount = errors.New("tip: amount must be positive")
	ErrSelfTip           = errors.New("tip: cannot tip yourself")
	ErrMessageTooLong    = errors.New("tip: message is too long")
)

type Tip struct {
	ID         id.TipID     `json:"id"`
	FanID      id.ProfileID `json:"fan_id"`
	CreatorID  id.ProfileID `json:"creator_id"`
	Amount     types.Money  `json:"amount"`
	Message    string       `json:"message,omitempty"`
	PaymentRef string       `json:"payment_ref"`
	CreatedAt  time.Time    `json:"created_at"`
}

// New validates a tip before payment. PaymentRef is filled in once the
// charge is captured.
func New(fan, creator id.ProfileID, amount types.Money, message string, now time.Time) (*Tip, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if fan.Equal(creator) {
		return nil, ErrSelfTip
	}
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	return &Tip{
		ID:        id.NewTipID(),
		FanID:     fan,
		CreatorID: creator,
		Amount:    amount,
		Message:   message,
		CreatedAt: now.UTC(),
	}, nil
}
