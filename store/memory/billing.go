package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

func cloneSubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := clone(sub)
	if sub.CanceledAt != nil {
		c.CanceledAt = clone(sub.CanceledAt)
	}
	return c
}

func activeFor(st *state, fanID, creatorID id.ProfileID) *subscription.Subscription {
	for _, sub := range st.subscriptions {
		if sub.Status == subscription.StatusActive && sub.FanID.Equal(fanID) && sub.CreatorID.Equal(creatorID) {
			return sub
		}
	}
	return nil
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	return s.write(func(st *state) error {
		if _, exists := st.subscriptions[sub.ID.String()]; exists {
			return fmt.Errorf("%w: subscription %s", patron.ErrAlreadyExists, sub.ID)
		}
		if sub.Status == subscription.StatusActive && activeFor(st, sub.FanID, sub.CreatorID) != nil {
			return fmt.Errorf("%w: active subscription for %s to %s", patron.ErrAlreadyExists, sub.FanID, sub.CreatorID)
		}
		st.subscriptions[sub.ID.String()] = cloneSubscription(sub)
		return nil
	})
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var out *subscription.Subscription
	err := s.read(func(st *state) error {
		sub, ok := st.subscriptions[subID.String()]
		if !ok {
			return patron.ErrSubscriptionNotFound
		}
		out = cloneSubscription(sub)
		return nil
	})
	return out, err
}

func (s *Store) GetActiveSubscription(_ context.Context, fanID, creatorID id.ProfileID) (*subscription.Subscription, error) {
	var out *subscription.Subscription
	err := s.read(func(st *state) error {
		sub := activeFor(st, fanID, creatorID)
		if sub == nil {
			return patron.ErrNoActiveSubscription
		}
		out = cloneSubscription(sub)
		return nil
	})
	return out, err
}

func (s *Store) listSubscriptions(match func(*subscription.Subscription) bool, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	err := s.read(func(st *state) error {
		for _, sub := range st.subscriptions {
			if !match(sub) || (opts.Status != "" && sub.Status != opts.Status) {
				continue
			}
			out = append(out, cloneSubscription(sub))
		}
		return nil
	})
	newestFirst(out, func(sub *subscription.Subscription) (int64, string) {
		return sub.CreatedAt.UnixNano(), sub.ID.String()
	})
	return page(out, opts.Limit, opts.Offset), err
}

func (s *Store) ListSubscriptionsByFan(_ context.Context, fanID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(func(sub *subscription.Subscription) bool { return sub.FanID.Equal(fanID) }, opts)
}

func (s *Store) ListSubscriptionsByCreator(_ context.Context, creatorID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(func(sub *subscription.Subscription) bool { return sub.CreatorID.Equal(creatorID) }, opts)
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	return s.write(func(st *state) error {
		if _, ok := st.subscriptions[sub.ID.String()]; !ok {
			return patron.ErrSubscriptionNotFound
		}
		if sub.Status == subscription.StatusActive {
			if other := activeFor(st, sub.FanID, sub.CreatorID); other != nil && !other.ID.Equal(sub.ID) {
				return fmt.Errorf("%w: active subscription for %s to %s", patron.ErrAlreadyExists, sub.FanID, sub.CreatorID)
			}
		}
		st.subscriptions[sub.ID.String()] = cloneSubscription(sub)
		return nil
	})
}

func (s *Store) CountEntitledSubscribers(_ context.Context, creatorID id.ProfileID, now time.Time) (int64, error) {
	var n int64
	err := s.read(func(st *state) error {
		for _, sub := range st.subscriptions {
			if sub.CreatorID.Equal(creatorID) && sub.IsEntitled(now) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) ListElapsedSubscriptions(_ context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	var out []*subscription.Subscription
	err := s.read(func(st *state) error {
		for _, sub := range st.subscriptions {
			if sub.Elapsed(now) {
				out = append(out, cloneSubscription(sub))
			}
		}
		return nil
	})
	newestFirst(out, func(sub *subscription.Subscription) (int64, string) {
		return -sub.CurrentPeriodEnd.UnixNano(), sub.ID.String()
	})
	return page(out, limit, 0), err
}

// Purchase Store implementation
func purchaseKey(fanID id.ProfileID, postID id.PostID) string {
	return fanID.String() + ":" + postID.String()
}

func (s *Store) CreatePurchase(_ context.Context, p *purchase.Purchase) error {
	return s.write(func(st *state) error {
		key := purchaseKey(p.FanID, p.PostID)
		if _, exists := st.purchases[key]; exists {
			return fmt.Errorf("%w: purchase of %s by %s", patron.ErrAlreadyExists, p.PostID, p.FanID)
		}
		st.purchases[key] = clone(p)
		return nil
	})
}

func (s *Store) GetPurchase(_ context.Context, fanID id.ProfileID, postID id.PostID) (*purchase.Purchase, error) {
	var out *purchase.Purchase
	err := s.read(func(st *state) error {
		p, ok := st.purchases[purchaseKey(fanID, postID)]
		if !ok {
			return patron.ErrPurchaseNotFound
		}
		out = clone(p)
		return nil
	})
	return out, err
}

func (s *Store) ListPurchasesByFan(_ context.Context, fanID id.ProfileID) ([]*purchase.Purchase, error) {
	var out []*purchase.Purchase
	err := s.read(func(st *state) error {
		for _, p := range st.purchases {
			if p.FanID.Equal(fanID) {
				out = append(out, clone(p))
			}
		}
		return nil
	})
	newestFirst(out, func(p *purchase.Purchase) (int64, string) { return p.CreatedAt.UnixNano(), p.ID.String() })
	return out, err
}

// Tip Store implementation
func (s *Store) CreateTip(_ context.Context, t *tip.Tip) error {
	return s.write(func(st *state) error {
		st.tips = append(st.tips, clone(t))
		return nil
	})
}

func (s *Store) ListTipsByCreator(_ context.Context, creatorID id.ProfileID, limit int) ([]*tip.Tip, error) {
	var out []*tip.Tip
	err := s.read(func(st *state) error {
		for _, t := range st.tips {
			if t.CreatorID.Equal(creatorID) {
				out = append(out, clone(t))
			}
		}
		return nil
	})
	newestFirst(out, func(t *tip.Tip) (int64, string) { return t.CreatedAt.UnixNano(), t.ID.String() })
	return page(out, limit, 0), err
}

// Ledger Store implementation
func (s *Store) AppendTransaction(_ context.Context, t *ledger.Transaction) error {
	return s.write(func(st *state) error {
		for _, existing := range st.transactions {
			if existing.ID.Equal(t.ID) {
				return fmt.Errorf("%w: transaction %s", patron.ErrAlreadyExists, t.ID)
			}
		}
		st.transactions = append(st.transactions, clone(t))
		return nil
	})
}

func (s *Store) ListTransactions(_ context.Context, creatorID id.ProfileID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	err := s.read(func(st *state) error {
		for _, t := range st.transactions {
			if !t.CreatorID.Equal(creatorID) {
				continue
			}
			if opts.Type != "" && t.Type != opts.Type {
				continue
			}
			if !opts.Since.IsZero() && t.CreatedAt.Before(opts.Since) {
				continue
			}
			out = append(out, clone(t))
		}
		return nil
	})
	newestFirst(out, func(t *ledger.Transaction) (int64, string) { return t.CreatedAt.UnixNano(), t.ID.String() })
	return page(out, opts.Limit, 0), err
}
