package subscription

import (
	"context"
	"time"

	"github.com/xraph/patron/id"
)

type Store interface {
	// CreateSubscription fails with an already-exists error when an
	// active row already exists for the same fan and creator.
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	// GetActiveSubscription returns the row with status active for the pair,
	// regardless of whether its period has elapsed.
	GetActiveSubscription(ctx context.Context, fanID, creatorID id.ProfileID) (*Subscription, error)
	ListSubscriptionsByFan(ctx context.Context, fanID id.ProfileID, opts ListOpts) ([]*Subscription, error)
	ListSubscriptionsByCreator(ctx context.Context, creatorID id.ProfileID, opts ListOpts) ([]*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
	// CountEntitledSubscribers counts active subscriptions whose period contains now.
	CountEntitledSubscribers(ctx context.Context, creatorID id.ProfileID, now time.Time) (int64, error)
	// ListElapsedSubscriptions returns active subscriptions whose period ended at or before now.
	ListElapsedSubscriptions(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
