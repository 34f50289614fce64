package patron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/types"
)

func TestSubscribeLifecycle(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")
	ctx := f.as(fan)

	sub, created, err := f.Subscribe(ctx, creator)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, t0, sub.CurrentPeriodStart)
	assert.Equal(t, t0.Add(subscription.DefaultPeriod), sub.CurrentPeriodEnd)
	assert.NotEmpty(t, sub.ProviderRef)

	active, err := f.IsActive(ctx, fan, creator, f.clock.Now())
	require.NoError(t, err)
	assert.True(t, active)

	txns := f.transactions(t, creator)
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.TypeSubscription, txns[0].Type)
	assert.True(t, txns[0].SourceID.Equal(sub.ID))
	assert.Equal(t, sub.ProviderRef, txns[0].PaymentRef)

	// Subscribing again is a success that neither charges nor records.
	again, created, err := f.Subscribe(ctx, creator)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, again.ID.Equal(sub.ID))
	assert.Len(t, f.pay.Charges(), 1)
	assert.Len(t, f.transactions(t, creator), 1)

	notes, err := f.Notifications(f.as(creator), 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeNewSubscription, notes[0].Type)
	assert.True(t, notes[0].RelatedID.Equal(sub.ID))

	require.NoError(t, f.Unsubscribe(ctx, creator))
	active, err = f.IsActive(ctx, fan, creator, f.clock.Now())
	require.NoError(t, err)
	assert.False(t, active)

	// The canceled record is kept.
	subs, err := f.ListSubscriptions(ctx, subscription.ListOpts{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, subscription.StatusCanceled, subs[0].Status)
	require.NotNil(t, subs[0].CanceledAt)

	// Without an active subscription Unsubscribe does nothing.
	require.NoError(t, f.Unsubscribe(ctx, creator))
}

func TestSubscriptionLapsesWithoutUnsubscribe(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")
	ctx := f.as(fan)

	first, _, err := f.Subscribe(ctx, creator)
	require.NoError(t, err)

	f.clock.Advance(subscription.DefaultPeriod)
	active, err := f.IsActive(ctx, fan, creator, f.clock.Now())
	require.NoError(t, err)
	assert.False(t, active, "period end is exclusive")

	active, err = f.IsActive(ctx, fan, creator, f.clock.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, active)

	// Resubscribing expires the elapsed row and charges for a new period.
	second, created, err := f.Subscribe(ctx, creator)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, second.ID.Equal(first.ID))
	assert.Len(t, f.pay.Charges(), 2)

	old, err := f.GetSubscription(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusExpired, old.Status)
	assert.Len(t, f.transactions(t, creator), 2)
}

func TestSubscribeRejections(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")
	other := f.user(t, "other")

	_, _, err := f.Subscribe(f.as(creator), creator)
	assert.ErrorIs(t, err, patron.ErrSelfSubscription)

	_, _, err = f.Subscribe(f.as(fan), other)
	assert.ErrorIs(t, err, patron.ErrNotCreator)

	_, _, err = f.Subscribe(f.as(fan), id.NewProfileID())
	assert.True(t, patron.IsNotFound(err), "got %v", err)

	assert.Empty(t, f.pay.Charges())
}

func TestSubscribeFreeCreator(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(0))
	fan := f.user(t, "fan")

	sub, created, err := f.Subscribe(f.as(fan), creator)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Empty(t, sub.ProviderRef)
	assert.Empty(t, f.pay.Charges())
	assert.Empty(t, f.transactions(t, creator))
}

func TestSubscribePaymentDeclined(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")
	f.pay.Decide = func(payment.Charge) error { return errors.New("insufficient funds") }

	_, _, err := f.Subscribe(f.as(fan), creator)
	require.ErrorIs(t, err, patron.ErrPaymentFailed)
	assert.ErrorIs(t, err, payment.ErrDeclined)

	active, err := f.IsActive(context.Background(), fan, creator, f.clock.Now())
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, f.transactions(t, creator))
}

func TestSubscribeConcurrent(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")
	ctx := f.as(fan)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := f.Subscribe(ctx, creator)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, f.pay.Charges(), 1)
	assert.Len(t, f.transactions(t, creator), 1)
	assert.Empty(t, f.rec.Refunds())

	subs, err := f.ListSubscriptions(ctx, subscription.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestExpireSubscriptions(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(999))
	fans := []id.ProfileID{f.user(t, "fana"), f.user(t, "fanb")}
	for _, fan := range fans {
		_, _, err := f.Subscribe(f.as(fan), creator)
		require.NoError(t, err)
	}

	n, err := f.ExpireSubscriptions(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(subscription.DefaultPeriod + time.Hour)
	n, err = f.ExpireSubscriptions(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, fan := range fans {
		subs, err := f.ListSubscriptions(f.as(fan), subscription.ListOpts{})
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, subscription.StatusExpired, subs[0].Status)
	}

	expired := 0
	for _, c := range f.rec.Changes() {
		if c.Cause == "expired" {
			expired++
		}
	}
	assert.Equal(t, 2, expired)

	n, err = f.ExpireSubscriptions(context.Background(), f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRenewSubscription(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, "admin", profile.RoleAdmin)
	creator := f.creator(t, "creator", types.USD(999))
	fan := f.user(t, "fan")

	sub, _, err := f.Subscribe(f.as(fan), creator)
	require.NoError(t, err)

	start, end := sub.CurrentPeriodEnd, sub.CurrentPeriodEnd.AddDate(0, 1, 0)
	f.clock.Advance(time.Hour)

	_, err = f.RenewSubscription(f.as(fan), sub.ID, start, end, "prov_2")
	assert.ErrorIs(t, err, patron.ErrPermissionDenied)

	_, err = f.RenewSubscription(f.as(admin), sub.ID, end, start, "prov_2")
	assert.ErrorIs(t, err, patron.ErrInvalidInput)

	renewed, err := f.RenewSubscription(f.as(admin), sub.ID, start, end, "prov_2")
	require.NoError(t, err)
	assert.Equal(t, end, renewed.CurrentPeriodEnd)
	assert.Equal(t, "prov_2", renewed.ProviderRef)

	f.clock.Advance(subscription.DefaultPeriod + time.Hour)
	active, err := f.IsActive(context.Background(), fan, creator, f.clock.Now())
	require.NoError(t, err)
	assert.True(t, active)

	txns := f.transactions(t, creator)
	require.Len(t, txns, 2)
	assert.Equal(t, "prov_2", txns[0].PaymentRef, "newest first")
}

func TestListSubscribersRequiresCreator(t *testing.T) {
	f := newFixture(t)
	creator := f.creator(t, "creator", types.USD(0))
	fan := f.user(t, "fan")
	_, _, err := f.Subscribe(f.as(fan), creator)
	require.NoError(t, err)

	subs, err := f.ListSubscribers(f.as(creator), subscription.ListOpts{})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].FanID.Equal(fan))

	_, err = f.ListSubscribers(f.as(fan), subscription.ListOpts{})
	assert.ErrorIs(t, err, patron.ErrPermissionDenied)
}
