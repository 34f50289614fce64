package subscription

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
	StatusExpired  Status = "expired"
)

// DefaultPeriod is the length of a subscription period when no other policy is configured.
const DefaultPeriod = 30 * 24 * time.Hour

type Subscription struct {
	types.Entity
	ID                 id.SubscriptionID `json:"id"`
	FanID              id.ProfileID      `json:"fan_id"`
	CreatorID          id.ProfileID      `json:"creator_id"`
	Status             Status            `json:"status"`
	CurrentPeriodStart time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   time.Time         `json:"current_period_end"`
	CanceledAt         *time.Time        `json:"canceled_at,omitempty"`
	ProviderRef        string            `json:"provider_ref,omitempty"`
}

// IsEntitled reports whether the subscription grants access at now: the
// status is active and now lies in [CurrentPeriodStart, CurrentPeriodEnd).
func (s *Subscription) IsEntitled(now time.Time) bool {
	return s.Status == StatusActive &&
		!now.Before(s.CurrentPeriodStart) &&
		now.Before(s.CurrentPeriodEnd)
}

// Elapsed reports whether the subscription is still marked active although
// its period has ended.
func (s *Subscription) Elapsed(now time.Time) bool {
	return s.Status == StatusActive && !now.Before(s.CurrentPeriodEnd)
}

// PeriodPolicy computes the billing period that starts at start.
type PeriodPolicy interface {
	Period(start time.Time) (begin, end time.Time)
}

// FixedPeriod is a PeriodPolicy with a constant length.
type FixedPeriod time.Duration

func (f FixedPeriod) Period(start time.Time) (time.Time, time.Time) {
	return start, start.Add(time.Duration(f))
}

// MonthlyPeriod is a PeriodPolicy that ends on the same day of the next calendar month.
type MonthlyPeriod struct{}

func (MonthlyPeriod) Period(start time.Time) (time.Time, time.Time) {
	return start, start.AddDate(0, 1, 0)
}
