//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/postgres"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("patron"),
		tcpostgres.WithUsername("patron"),
		tcpostgres.WithPassword("patron"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(ctx))
	// Migrating twice is a no-op.
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	creator := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "Creator", SubscriptionPrice: types.USD(999)}
	fan := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "fan"}
	require.NoError(t, s.CreateProfile(ctx, creator))
	require.NoError(t, s.CreateProfile(ctx, fan))

	t.Run("Profiles", func(t *testing.T) {
		dup := &profile.Profile{Entity: types.NewEntity(now), ID: id.NewProfileID(), Username: "creator"}
		assert.ErrorIs(t, s.CreateProfile(ctx, dup), patron.ErrUsernameTaken)

		got, err := s.GetProfileByUsername(ctx, "CREATOR")
		require.NoError(t, err)
		assert.True(t, got.ID.Equal(creator.ID))
		assert.Equal(t, types.USD(999), got.SubscriptionPrice)

		require.NoError(t, s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: creator.ID, Role: profile.RoleCreator, GrantedAt: now}))
		err = s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: creator.ID, Role: profile.RoleCreator, GrantedAt: now})
		assert.ErrorIs(t, err, patron.ErrAlreadyExists)
		roles, err := s.ListRoles(ctx, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, []profile.Role{profile.RoleCreator}, roles)
	})

	t.Run("Settings", func(t *testing.T) {
		_, err := s.GetSettings(ctx)
		assert.ErrorIs(t, err, patron.ErrSettingsNotFound)
		require.NoError(t, s.PutSettings(ctx, settings.Default()))
		ps := settings.Default()
		ps.FeeRate = types.Percent(15)
		require.NoError(t, s.PutSettings(ctx, ps))
		got, err := s.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.Percent(15), got.FeeRate)
	})

	t.Run("SingleActiveSubscription", func(t *testing.T) {
		sub := &subscription.Subscription{
			Entity: types.NewEntity(now), ID: id.NewSubscriptionID(),
			FanID: fan.ID, CreatorID: creator.ID, Status: subscription.StatusActive,
			CurrentPeriodStart: now, CurrentPeriodEnd: now.Add(subscription.DefaultPeriod),
		}
		require.NoError(t, s.CreateSubscription(ctx, sub))
		again := *sub
		again.ID = id.NewSubscriptionID()
		assert.ErrorIs(t, s.CreateSubscription(ctx, &again), patron.ErrAlreadyExists)

		n, err := s.CountEntitledSubscribers(ctx, creator.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("PurchaseAndLedger", func(t *testing.T) {
		p, err := post.New(creator.ID, "exclusive", post.VisibilityPayPerView, types.USD(500),
			[]post.Media{{Kind: post.MediaImage, URL: "https://cdn.example/x.jpg"}}, now)
		require.NoError(t, err)
		require.NoError(t, s.CreatePost(ctx, p))

		got, err := s.GetPost(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Media, got.Media)

		var wg sync.WaitGroup
		var created int
		var mu sync.Mutex
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
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
				if err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, created)

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

	t.Run("Messages", func(t *testing.T) {
		conv, err := message.NewConversation(fan.ID, creator.ID, now)
		require.NoError(t, err)
		require.NoError(t, s.CreateConversation(ctx, conv))
		found, err := s.FindConversation(ctx, creator.ID, fan.ID)
		require.NoError(t, err)
		assert.True(t, found.ID.Equal(conv.ID))

		m, err := message.NewMessage(conv, fan.ID, "hello", now)
		require.NoError(t, err)
		require.NoError(t, s.CreateMessage(ctx, m))
		n, err := s.MarkMessagesRead(ctx, conv.ID, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("FeedAndSearch", func(t *testing.T) {
		public, err := post.New(fan.ID, "hello 100%", post.VisibilityPublic, types.Money{}, nil, now.Add(time.Second))
		require.NoError(t, err)
		require.NoError(t, s.CreatePost(ctx, public))

		feed, err := s.ListFeed(ctx, post.ListOpts{})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(feed), 2)
		assert.True(t, feed[0].ID.Equal(public.ID))

		publicOnly, err := s.ListFeed(ctx, post.ListOpts{Visibility: post.VisibilityPublic})
		require.NoError(t, err)
		require.Len(t, publicOnly, 1)

		found, err := s.SearchCreators(ctx, "reat", profile.ListOpts{})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.True(t, found[0].ID.Equal(creator.ID))

		found, err = s.SearchCreators(ctx, "%", profile.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, found)

		found, err = s.SearchCreators(ctx, "fan", profile.ListOpts{})
		require.NoError(t, err)
		assert.Empty(t, found)

		all, err := s.ListProfiles(ctx, profile.ListOpts{Limit: 10})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}
