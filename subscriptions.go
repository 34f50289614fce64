package patron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// Subscribe subscribes the caller to a creator. When the caller already has
// an entitled subscription it is returned with created set to false.
func (p *Patron) Subscribe(ctx context.Context, creatorID id.ProfileID) (sub *subscription.Subscription, created bool, err error) {
	fan, err := p.caller(ctx)
	if err != nil {
		return nil, false, err
	}
	if fan.Equal(creatorID) {
		return nil, false, ErrSelfSubscription
	}
	creator, err := p.requireCreator(ctx, creatorID)
	if err != nil {
		return nil, false, err
	}

	now := p.now()
	cur, err := p.store.GetActiveSubscription(ctx, fan, creatorID)
	switch {
	case err == nil && cur.IsEntitled(now):
		return cur, false, nil
	case err != nil && !IsNotFound(err):
		return nil, false, err
	}

	var receipt *payment.Receipt
	if price := creator.SubscriptionPrice; price.IsPositive() {
		key, keyErr := p.subscriptionKey(ctx, fan, creatorID, now)
		if keyErr != nil {
			return nil, false, keyErr
		}
		receipt, err = p.payments.Charge(ctx, payment.Charge{
			IdempotencyKey: key,
			Payer:          fan,
			Payee:          creatorID,
			Amount:         price,
			Description:    "subscription " + creatorID.String(),
		})
		if err != nil {
			return nil, false, p.fail(ctx, "subscribe", fmt.Errorf("%w: %w", ErrPaymentFailed, err))
		}
	}

	var (
		existing *subscription.Subscription
		expired  *subscription.Subscription
		txn      *ledger.Transaction
	)
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		existing, expired, sub, txn = nil, nil, nil, nil

		if err := tx.Lock(ctx, "sub:"+fan.String()+":"+creatorID.String()); err != nil {
			return err
		}

		cur, err := tx.GetActiveSubscription(ctx, fan, creatorID)
		switch {
		case err == nil && cur.IsEntitled(now):
			existing = cur
			return nil
		case err == nil:
			cur.Status = subscription.StatusExpired
			cur.Touch(now)
			if err := tx.UpdateSubscription(ctx, cur); err != nil {
				return err
			}
			expired = cur
		case !IsNotFound(err):
			return err
		}

		begin, end := p.periods.Period(now)
		sub = &subscription.Subscription{
			Entity:             types.NewEntity(now),
			ID:                 id.NewSubscriptionID(),
			FanID:              fan,
			CreatorID:          creatorID,
			Status:             subscription.StatusActive,
			CurrentPeriodStart: begin.UTC(),
			CurrentPeriodEnd:   end.UTC(),
		}
		if receipt != nil {
			sub.ProviderRef = receipt.Reference
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		if receipt == nil {
			return nil
		}

		txn, err = p.record(ctx, tx, ledger.Event{
			Creator:    creatorID,
			Fan:        fan,
			Type:       ledger.TypeSubscription,
			Gross:      creator.SubscriptionPrice,
			Source:     sub.ID,
			PaymentRef: receipt.Reference,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})

	// A writer in another process won the race for the active row.
	if err != nil && IsAlreadyExists(err) {
		if won, getErr := p.store.GetActiveSubscription(ctx, fan, creatorID); getErr == nil && won.IsEntitled(now) {
			existing, expired, sub, txn, err = won, nil, nil, nil, nil
		}
	}
	if err != nil {
		if receipt != nil {
			p.refund(ctx, receipt.Reference, err)
		}
		return nil, false, p.fail(ctx, "subscribe", err)
	}
	if existing != nil {
		if receipt != nil && existing.ProviderRef != receipt.Reference {
			p.refund(ctx, receipt.Reference, ErrAlreadySubscribed)
		}
		return existing, false, nil
	}

	if expired != nil {
		p.plugins.EmitSubscriptionExpired(ctx, expired)
	}
	p.plugins.EmitSubscriptionCreated(ctx, sub)
	if txn != nil {
		p.plugins.EmitTransactionRecorded(ctx, txn)
	}
	p.invalidateViewer(ctx, fan)
	p.plugins.EmitEntitlementChanged(ctx, plugin.EntitlementChange{FanID: fan, CreatorID: creatorID, Cause: "subscribed"})
	p.notify(ctx, creatorID, notification.TypeNewSubscription, "New subscriber", "", sub.ID)

	p.logger.Debug("subscription created",
		"subscription_id", sub.ID,
		"fan_id", fan,
		"creator_id", creatorID,
		"period_end", sub.CurrentPeriodEnd,
	)

	return sub, true, nil
}

// subscriptionKey is the idempotency key of the caller's next subscription to
// creatorID. It counts the pair's past subscriptions, so concurrent attempts
// at the same period derive the same key even after one of them committed.
func (p *Patron) subscriptionKey(ctx context.Context, fan, creatorID id.ProfileID, now time.Time) (string, error) {
	subs, err := p.store.ListSubscriptionsByFan(ctx, fan, subscription.ListOpts{})
	if err != nil {
		return "", err
	}
	n := 0
	for _, s := range subs {
		if s.CreatorID.Equal(creatorID) && !s.IsEntitled(now) {
			n++
		}
	}
	return "sub:" + fan.String() + ":" + creatorID.String() + ":" + strconv.Itoa(n), nil
}

// Unsubscribe cancels the caller's active subscription to a creator. The
// record is kept. Without an active subscription it does nothing.
func (p *Patron) Unsubscribe(ctx context.Context, creatorID id.ProfileID) error {
	fan, err := p.caller(ctx)
	if err != nil {
		return err
	}

	now := p.now()
	var canceled *subscription.Subscription
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		canceled = nil
		cur, err := tx.GetActiveSubscription(ctx, fan, creatorID)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}
		cur.Status = subscription.StatusCanceled
		cur.CanceledAt = &now
		cur.Touch(now)
		if err := tx.UpdateSubscription(ctx, cur); err != nil {
			return err
		}
		canceled = cur
		return nil
	})
	if err != nil {
		return p.fail(ctx, "unsubscribe", err)
	}
	if canceled == nil {
		return nil
	}

	p.invalidateViewer(ctx, fan)
	p.plugins.EmitSubscriptionCanceled(ctx, canceled)
	p.plugins.EmitEntitlementChanged(ctx, plugin.EntitlementChange{FanID: fan, CreatorID: creatorID, Cause: "canceled"})
	return nil
}

// IsActive reports whether fanID holds an active subscription to creatorID
// whose period contains now.
func (p *Patron) IsActive(ctx context.Context, fanID, creatorID id.ProfileID, now time.Time) (bool, error) {
	if fanID.IsNil() {
		return false, nil
	}
	sub, err := p.store.GetActiveSubscription(ctx, fanID, creatorID)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return sub.IsEntitled(now), nil
}

// RenewSubscription moves a subscription to a new period reported by the
// billing provider. Renewing an inactive subscription reactivates it. When
// the creator charges for subscriptions a transaction is recorded against
// providerRef.
func (p *Patron) RenewSubscription(ctx context.Context, subID id.SubscriptionID, start, end time.Time, providerRef string) (*subscription.Subscription, error) {
	if _, err := p.requireCaller(ctx, profile.RoleAdmin); err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, ValidationError{Field: "end", Message: "period end must be after its start"}
	}

	now := p.now()
	var (
		sub *subscription.Subscription
		txn *ledger.Transaction
	)
	err := p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		txn = nil
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if err := tx.Lock(ctx, "sub:"+sub.FanID.String()+":"+sub.CreatorID.String()); err != nil {
			return err
		}

		if sub.Status != subscription.StatusActive {
			if other, err := tx.GetActiveSubscription(ctx, sub.FanID, sub.CreatorID); err == nil && !other.ID.Equal(sub.ID) {
				return fmt.Errorf("%w: another subscription is active for this pair", ErrInvalidState)
			} else if err != nil && !IsNotFound(err) {
				return err
			}
		}

		sub.Status = subscription.StatusActive
		sub.CurrentPeriodStart = start.UTC()
		sub.CurrentPeriodEnd = end.UTC()
		sub.CanceledAt = nil
		if providerRef != "" {
			sub.ProviderRef = providerRef
		}
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		creator, err := tx.GetProfile(ctx, sub.CreatorID)
		if err != nil {
			return err
		}
		if !creator.SubscriptionPrice.IsPositive() || providerRef == "" {
			return nil
		}
		txn, err = p.record(ctx, tx, ledger.Event{
			Creator:    sub.CreatorID,
			Fan:        sub.FanID,
			Type:       ledger.TypeSubscription,
			Gross:      creator.SubscriptionPrice,
			Source:     sub.ID,
			PaymentRef: providerRef,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		return nil, p.fail(ctx, "renew_subscription", err)
	}

	p.invalidateViewer(ctx, sub.FanID)
	p.plugins.EmitSubscriptionRenewed(ctx, sub)
	if txn != nil {
		p.plugins.EmitTransactionRecorded(ctx, txn)
	}
	p.plugins.EmitEntitlementChanged(ctx, plugin.EntitlementChange{FanID: sub.FanID, CreatorID: sub.CreatorID, Cause: "renewed"})
	return sub, nil
}

// ExpireSubscriptions moves every active subscription whose period ended at
// or before now to expired and returns how many it moved.
func (p *Patron) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		batch, err := p.store.ListElapsedSubscriptions(ctx, now, p.sweepBatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		moved := 0
		for _, candidate := range batch {
			sub, err := p.expire(ctx, candidate.ID, now)
			if err != nil {
				return total, err
			}
			if sub == nil {
				continue
			}
			moved++
			p.invalidateViewer(ctx, sub.FanID)
			p.plugins.EmitSubscriptionExpired(ctx, sub)
			p.plugins.EmitEntitlementChanged(ctx, plugin.EntitlementChange{FanID: sub.FanID, CreatorID: sub.CreatorID, Cause: "expired"})
		}
		total += moved

		if moved == 0 || len(batch) < p.sweepBatchSize {
			return total, nil
		}
	}
}

// expire moves one subscription to expired if it is still elapsed. It
// returns nil when another writer got there first.
func (p *Patron) expire(ctx context.Context, subID id.SubscriptionID, now time.Time) (*subscription.Subscription, error) {
	var expired *subscription.Subscription
	err := p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		expired = nil
		sub, err := tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if !sub.Elapsed(now) {
			return nil
		}
		sub.Status = subscription.StatusExpired
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		expired = sub
		return nil
	})
	return expired, err
}

// ListSubscriptions returns the caller's subscriptions.
func (p *Patron) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	fan, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.store.ListSubscriptionsByFan(ctx, fan, opts)
}

// ListSubscribers returns the subscriptions to the calling creator.
func (p *Patron) ListSubscribers(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	creator, err := p.requireCaller(ctx, profile.RoleCreator)
	if err != nil {
		return nil, err
	}
	return p.store.ListSubscriptionsByCreator(ctx, creator, opts)
}

// GetSubscription returns a subscription by ID.
func (p *Patron) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return p.store.GetSubscription(ctx, subID)
}

// record builds a ledger transaction using the platform settings visible to s.
func (p *Patron) record(ctx context.Context, s store.Store, ev ledger.Event, now time.Time) (*ledger.Transaction, error) {
	st, err := p.currentSettings(ctx, s)
	if err != nil {
		return nil, err
	}
	txn, err := ledger.Record(ev, st, now)
	if err != nil {
		return nil, invalid("amount", err)
	}
	return txn, nil
}
