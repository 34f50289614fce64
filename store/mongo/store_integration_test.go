//go:build integration

package mongo_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/mongo"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

// Transactions need a replica set.
func newTestStore(t *testing.T) *mongo.Store {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := mongo.Open(ctx, uri, "patron")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	return s
}

// race runs fn from n goroutines at once and counts the nil results.
func race(n int, fn func() error) int {
	var wg sync.WaitGroup
	var ok atomic.Int64
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if fn() == nil {
				ok.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return int(ok.Load())
}

func TestMongoStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	creator := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "Creator", DisplayName: "The Creator", SubscriptionPrice: types.USD(999)}
	fan := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "fan"}
	anon := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID()}
	require.NoError(t, s.CreateProfile(ctx, creator))
	require.NoError(t, s.CreateProfile(ctx, fan))
	// A second profile without a username must not trip the unique index.
	require.NoError(t, s.CreateProfile(ctx, anon))
	require.NoError(t, s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: creator.ID, Role: profile.RoleCreator, GrantedAt: now}))

	t.Run("Profiles", func(t *testing.T) {
		dup := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "CREATOR"}
		assert.ErrorIs(t, s.CreateProfile(ctx, dup), patron.ErrUsernameTaken)

		got, err := s.GetProfileByUsername(ctx, "creator")
		require.NoError(t, err)
		assert.True(t, got.ID.Equal(creator.ID))
		assert.Equal(t, types.USD(999), got.SubscriptionPrice)

		got.Bio = "hi"
		require.NoError(t, s.UpdateProfile(ctx, got))
		got, err = s.GetProfile(ctx, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Bio)

		err = s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: creator.ID, Role: profile.RoleCreator, GrantedAt: now})
		assert.ErrorIs(t, err, patron.ErrAlreadyExists)
		ok, err := s.HasRole(ctx, creator.ID, profile.RoleCreator)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Settings", func(t *testing.T) {
		_, err := s.GetSettings(ctx)
		assert.ErrorIs(t, err, patron.ErrSettingsNotFound)
		ps := settings.Default()
		ps.FeeRate = types.Percent(15)
		require.NoError(t, s.PutSettings(ctx, ps))
		require.NoError(t, s.PutSettings(ctx, ps))
		got, err := s.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.Percent(15), got.FeeRate)
	})

	t.Run("ConcurrentSubscribe", func(t *testing.T) {
		key := "sub:" + fan.ID.String() + ":" + creator.ID.String()
		created := race(5, func() error {
			return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
				if err := tx.Lock(ctx, key); err != nil {
					return err
				}
				if _, err := tx.GetActiveSubscription(ctx, fan.ID, creator.ID); err == nil {
					return patron.ErrAlreadySubscribed
				}
				return tx.CreateSubscription(ctx, &subscription.Subscription{
					Entity: types.NewEntity(now), ID: id.NewSubscriptionID(),
					FanID: fan.ID, CreatorID: creator.ID, Status: subscription.StatusActive,
					CurrentPeriodStart: now, CurrentPeriodEnd: now.Add(subscription.DefaultPeriod),
				})
			})
		})
		assert.Equal(t, 1, created)

		subs, err := s.ListSubscriptionsByFan(ctx, fan.ID, subscription.ListOpts{Status: subscription.StatusActive})
		require.NoError(t, err)
		require.Len(t, subs, 1)

		n, err := s.CountEntitledSubscribers(ctx, creator.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		sub := subs[0]
		sub.Status = subscription.StatusCanceled
		require.NoError(t, s.UpdateSubscription(ctx, sub))
		_, err = s.GetActiveSubscription(ctx, fan.ID, creator.ID)
		assert.ErrorIs(t, err, patron.ErrNoActiveSubscription)
	})

	t.Run("ConcurrentPurchase", func(t *testing.T) {
		p, err := post.New(creator.ID, "exclusive", post.VisibilityPayPerView, types.USD(500),
			[]post.Media{{Kind: post.MediaImage, URL: "https://cdn.example/x.jpg"}}, now)
		require.NoError(t, err)
		require.NoError(t, s.CreatePost(ctx, p))

		created := race(5, func() error {
			return s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
				if err := tx.Lock(ctx, purchase.IdempotencyKey(fan.ID, p.ID)); err != nil {
					return err
				}
				if _, err := tx.GetPurchase(ctx, fan.ID, p.ID); err == nil {
					return patron.ErrAlreadyPurchased
				}
				pur := &purchase.Purchase{ID: id.NewPurchaseID(), FanID: fan.ID, PostID: p.ID, CreatorID: creator.ID, Amount: p.PPVPrice, CreatedAt: now}
				if err := tx.CreatePurchase(ctx, pur); err != nil {
					return err
				}
				txn, err := ledger.Record(ledger.Event{Creator: creator.ID, Fan: fan.ID, Type: ledger.TypePPV, Gross: p.PPVPrice, Source: pur.ID, PaymentRef: "ref"}, settings.Default(), now)
				if err != nil {
					return err
				}
				return tx.AppendTransaction(ctx, txn)
			})
		})
		assert.Equal(t, 1, created)

		purchases, err := s.ListPurchasesByFan(ctx, fan.ID)
		require.NoError(t, err)
		assert.Len(t, purchases, 1)

		txns, err := s.ListTransactions(ctx, creator.ID, ledger.ListOpts{Type: ledger.TypePPV})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, types.USD(400), txns[0].Net)
	})

	t.Run("Rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
			tp := &tip.Tip{ID: id.NewTipID(), FanID: fan.ID, CreatorID: creator.ID, Amount: types.USD(300), CreatedAt: now}
			if err := tx.CreateTip(ctx, tp); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		tips, err := s.ListTipsByCreator(ctx, creator.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, tips)
	})

	t.Run("LockOutsideTransaction", func(t *testing.T) {
		assert.ErrorIs(t, s.Lock(ctx, "k"), patron.ErrInvalidState)
	})

	t.Run("FeedAndSearch", func(t *testing.T) {
		public, err := post.New(fan.ID, "hello", post.VisibilityPublic, types.Money{}, nil, now.Add(time.Second))
		require.NoError(t, err)
		require.NoError(t, s.CreatePost(ctx, public))

		feed, err := s.ListFeed(ctx, post.ListOpts{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(feed), 2)
		assert.True(t, feed[0].ID.Equal(public.ID))

		publicOnly, err := s.ListFeed(ctx, post.ListOpts{Visibility: post.VisibilityPublic})
		require.NoError(t, err)
		require.Len(t, publicOnly, 1)

		found, err := s.SearchCreators(ctx, "REAT", profile.ListOpts{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.True(t, found[0].ID.Equal(creator.ID))

		found, err = s.SearchCreators(ctx, "the creator", profile.ListOpts{Limit: 5})
		require.NoError(t, err)
		assert.Len(t, found, 1)

		found, err = s.SearchCreators(ctx, ".*", profile.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = s.SearchCreators(ctx, "fan", profile.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, found)

		all, err := s.ListProfiles(ctx, profile.ListOpts{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		page, err := s.ListProfiles(ctx, profile.ListOpts{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, page, 1)
	})
}
