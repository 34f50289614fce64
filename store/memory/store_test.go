package memory_test

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
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/memory"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/types"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newProfile(t *testing.T, s *memory.Store, username string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		Entity:      types.NewEntity(t0),
		ID:          id.NewProfileID(),
		Username:    username,
		DisplayName: username,
	}
	require.NoError(t, s.CreateProfile(context.Background(), p))
	return p
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	alice := newProfile(t, s, "Alice")

	got, err := s.GetProfileByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, got.ID.Equal(alice.ID))

	dup := &profile.Profile{ID: id.NewProfileID(), Username: "ALICE"}
	assert.ErrorIs(t, s.CreateProfile(ctx, dup), patron.ErrUsernameTaken)

	got.Username = "alice2"
	require.NoError(t, s.UpdateProfile(ctx, got))
	_, err = s.GetProfileByUsername(ctx, "alice")
	assert.ErrorIs(t, err, patron.ErrProfileNotFound)
	_, err = s.GetProfileByUsername(ctx, "alice2")
	assert.NoError(t, err)

	// Callers own returned values.
	got.DisplayName = "mutated"
	again, err := s.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.DisplayName)

	_, err = s.GetProfile(ctx, id.NewProfileID())
	assert.ErrorIs(t, err, patron.ErrProfileNotFound)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p := newProfile(t, s, "bob")

	require.NoError(t, s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: p.ID, Role: profile.RoleFan, GrantedAt: t0}))
	require.NoError(t, s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: p.ID, Role: profile.RoleCreator, GrantedAt: t0}))

	err := s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: p.ID, Role: profile.RoleFan, GrantedAt: t0})
	assert.ErrorIs(t, err, patron.ErrAlreadyExists)

	err = s.GrantRole(ctx, &profile.RoleAssignment{ProfileID: id.NewProfileID(), Role: profile.RoleFan})
	assert.ErrorIs(t, err, patron.ErrProfileNotFound)

	roles, err := s.ListRoles(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []profile.Role{profile.RoleCreator, profile.RoleFan}, roles)

	ok, err := s.HasRole(ctx, p.ID, profile.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, patron.ErrSettingsNotFound)

	ps := settings.Default()
	require.NoError(t, s.PutSettings(ctx, ps))
	ps.FeeRate = types.Percent(50)

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Percent(20), got.FeeRate)
}

func TestPostsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	creator := newProfile(t, s, "carol")

	var ids []id.PostID
	for i, vis := range []post.Visibility{post.VisibilityPublic, post.VisibilityPayPerView, post.VisibilityPublic} {
		price := types.Zero("usd")
		if vis == post.VisibilityPayPerView {
			price = types.USD(500)
		}
		p, err := post.New(creator.ID, "hello", vis, price, nil, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, s.CreatePost(ctx, p))
		ids = append(ids, p.ID)
	}

	all, err := s.ListPosts(ctx, creator.ID, post.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].ID.Equal(ids[2]))
	assert.True(t, all[2].ID.Equal(ids[0]))

	public, err := s.ListPosts(ctx, creator.ID, post.ListOpts{Visibility: post.VisibilityPublic, Limit: 1})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.True(t, public[0].ID.Equal(ids[2]))

	require.NoError(t, s.DeletePost(ctx, ids[1]))
	assert.ErrorIs(t, s.DeletePost(ctx, ids[1]), patron.ErrPostNotFound)
}

func newSubscription(fan, creator id.ProfileID, start time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:             types.NewEntity(start),
		ID:                 id.NewSubscriptionID(),
		FanID:              fan,
		CreatorID:          creator,
		Status:             subscription.StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.Add(subscription.DefaultPeriod),
	}
}

func TestSingleActiveSubscription(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	fan, creator := id.NewProfileID(), id.NewProfileID()

	first := newSubscription(fan, creator, t0)
	require.NoError(t, s.CreateSubscription(ctx, first))

	err := s.CreateSubscription(ctx, newSubscription(fan, creator, t0))
	assert.ErrorIs(t, err, patron.ErrAlreadyExists)

	first.Status = subscription.StatusCanceled
	require.NoError(t, s.UpdateSubscription(ctx, first))

	_, err = s.GetActiveSubscription(ctx, fan, creator)
	assert.ErrorIs(t, err, patron.ErrNoActiveSubscription)

	second := newSubscription(fan, creator, t0.Add(time.Hour))
	require.NoError(t, s.CreateSubscription(ctx, second))

	active, err := s.GetActiveSubscription(ctx, fan, creator)
	require.NoError(t, err)
	assert.True(t, active.ID.Equal(second.ID))

	first.Status = subscription.StatusActive
	assert.ErrorIs(t, s.UpdateSubscription(ctx, first), patron.ErrAlreadyExists)
}

func TestEntitledAndElapsed(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	creator := id.NewProfileID()

	current := newSubscription(id.NewProfileID(), creator, t0)
	old := newSubscription(id.NewProfileID(), creator, t0.Add(-40*24*time.Hour))
	require.NoError(t, s.CreateSubscription(ctx, current))
	require.NoError(t, s.CreateSubscription(ctx, old))

	now := t0.Add(time.Hour)
	n, err := s.CountEntitledSubscribers(ctx, creator, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	elapsed, err := s.ListElapsedSubscriptions(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, elapsed, 1)
	assert.True(t, elapsed[0].ID.Equal(old.ID))
}

func TestPurchaseUnique(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	fan, postID := id.NewProfileID(), id.NewPostID()

	p := &purchase.Purchase{ID: id.NewPurchaseID(), FanID: fan, PostID: postID, Amount: types.USD(500), CreatedAt: t0}
	require.NoError(t, s.CreatePurchase(ctx, p))

	again := &purchase.Purchase{ID: id.NewPurchaseID(), FanID: fan, PostID: postID, Amount: types.USD(500), CreatedAt: t0}
	assert.ErrorIs(t, s.CreatePurchase(ctx, again), patron.ErrAlreadyExists)

	got, err := s.GetPurchase(ctx, fan, postID)
	require.NoError(t, err)
	assert.True(t, got.ID.Equal(p.ID))

	_, err = s.GetPurchase(ctx, id.NewProfileID(), postID)
	assert.ErrorIs(t, err, patron.ErrPurchaseNotFound)
}

func TestTransactionFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	creator := id.NewProfileID()

	for i, typ := range []ledger.Type{ledger.TypeSubscription, ledger.TypePPV, ledger.TypeTip} {
		require.NoError(t, s.AppendTransaction(ctx, &ledger.Transaction{
			ID:        id.NewTransactionID(),
			CreatorID: creator,
			Type:      typ,
			Gross:     types.USD(100),
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		}))
	}

	all, err := s.ListTransactions(ctx, creator, ledger.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ledger.TypeTip, all[0].Type)

	ppv, err := s.ListTransactions(ctx, creator, ledger.ListOpts{Type: ledger.TypePPV})
	require.NoError(t, err)
	assert.Len(t, ppv, 1)

	recent, err := s.ListTransactions(ctx, creator, ledger.ListOpts{Since: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestTransactRollback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	fan, creator := id.NewProfileID(), id.NewProfileID()
	boom := errors.New("boom")

	err := s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateSubscription(ctx, newSubscription(fan, creator, t0)); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &ledger.Transaction{ID: id.NewTransactionID(), CreatorID: creator}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetActiveSubscription(ctx, fan, creator)
	assert.ErrorIs(t, err, patron.ErrNoActiveSubscription)
	txns, err := s.ListTransactions(ctx, creator, ledger.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	err = s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.Transact(ctx, func(ctx context.Context, inner store.Store) error {
			return inner.CreateSubscription(ctx, newSubscription(fan, creator, t0))
		})
	})
	require.NoError(t, err)
	_, err = s.GetActiveSubscription(ctx, fan, creator)
	assert.NoError(t, err)
}

func TestTransactSerializes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	fan, creator := id.NewProfileID(), id.NewProfileID()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Transact(ctx, func(ctx context.Context, tx store.Store) error {
				if _, err := tx.GetActiveSubscription(ctx, fan, creator); err == nil {
					return patron.ErrAlreadySubscribed
				}
				return tx.CreateSubscription(ctx, newSubscription(fan, creator, t0))
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
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	recipient := id.NewProfileID()

	var first *notification.Notification
	for i := range 3 {
		n := &notification.Notification{
			ID:          id.NewNotificationID(),
			RecipientID: recipient,
			Type:        notification.TypeNewPost,
			Title:       "New post",
			CreatedAt:   t0.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.CreateNotification(ctx, n))
		if first == nil {
			first = n
		}
	}

	list, err := s.ListNotifications(ctx, recipient, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))

	require.NoError(t, s.MarkNotificationRead(ctx, recipient, first.ID))
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, id.NewProfileID(), first.ID), patron.ErrNotificationNotFound)

	unread, err := s.CountUnreadNotifications(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	marked, err := s.MarkAllNotificationsRead(ctx, recipient)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, b := id.NewProfileID(), id.NewProfileID()

	conv, err := message.NewConversation(a, b, t0)
	require.NoError(t, err)
	require.NoError(t, s.CreateConversation(ctx, conv))

	reversed, err := message.NewConversation(b, a, t0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.CreateConversation(ctx, reversed), patron.ErrAlreadyExists)

	found, err := s.FindConversation(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, found.ID.Equal(conv.ID))

	for i, sender := range []id.ProfileID{a, b, a} {
		m, err := message.NewMessage(conv, sender, "hi", t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, s.CreateMessage(ctx, m))
		require.NoError(t, s.TouchConversation(ctx, conv.ID, m.CreatedAt))
	}

	msgs, err := s.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].SenderID.Equal(a))
	assert.True(t, msgs[1].SenderID.Equal(b))

	marked, err := s.MarkMessagesRead(ctx, conv.ID, b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	convs, err := s.ListConversations(ctx, a)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, t0.Add(2*time.Second), convs[0].LastMessageAt)

	_, err = s.ListMessages(ctx, id.NewConversationID())
	assert.ErrorIs(t, err, patron.ErrConversationNotFound)
}
