package patron_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron"
	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/store/memory"
	"github.com/xraph/patron/types"
)

var t0 = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder captures the hooks the tests assert on.
type recorder struct {
	mu            sync.Mutex
	transactions  []*ledger.Transaction
	changes       []plugin.EntitlementChange
	refunds       []string
	notifications []*notification.Notification
	failures      []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnTransactionRecorded(_ context.Context, txn *ledger.Transaction) error {
	r.mu.Lock()
	r.transactions = append(r.transactions, txn)
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnEntitlementChanged(_ context.Context, c plugin.EntitlementChange) error {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnPaymentRefunded(_ context.Context, reference string, _ error) error {
	r.mu.Lock()
	r.refunds = append(r.refunds, reference)
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnNotificationCreated(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnOperationFailed(_ context.Context, op string, _ error) error {
	r.mu.Lock()
	r.failures = append(r.failures, op)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Refunds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refunds...)
}

func (r *recorder) Changes() []plugin.EntitlementChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]plugin.EntitlementChange(nil), r.changes...)
}

type fixture struct {
	*patron.Patron
	store *memory.Store
	pay   *payment.Mock
	blobs *media.MemoryStore
	clock *testClock
	rec   *recorder
}

func newFixture(t *testing.T, opts ...patron.Option) *fixture {
	t.Helper()
	f := newFixtureOn(t, memory.New(), opts...)
	return f
}

func newFixtureOn(t *testing.T, s store.Store, opts ...patron.Option) *fixture {
	t.Helper()
	f := &fixture{
		pay:   payment.NewMock(),
		blobs: media.NewMemoryStore("https://cdn.test"),
		clock: &testClock{now: t0},
		rec:   &recorder{},
	}
	if ms, ok := s.(*memory.Store); ok {
		f.store = ms
	}
	base := []patron.Option{
		patron.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		patron.WithPaymentProcessor(f.pay),
		patron.WithBlobStore(f.blobs),
		patron.WithClock(f.clock.Now),
		patron.WithPlugin(f.rec),
		patron.WithExpirySweep(0, 0),
	}
	f.Patron = patron.New(s, append(base, opts...)...)
	return f
}

// user creates a profile as itself and grants extra roles directly.
func (f *fixture) user(t *testing.T, name string, roles ...profile.Role) id.ProfileID {
	t.Helper()
	ctx := context.Background()
	pid := id.NewProfileID()
	_, err := f.CreateProfile(auth.WithProfile(ctx, pid), profile.Draft{Username: name, DisplayName: name})
	require.NoError(t, err)
	for _, r := range roles {
		require.NoError(t, f.Store().GrantRole(ctx, &profile.RoleAssignment{ProfileID: pid, Role: r, GrantedAt: t0}))
	}
	return pid
}

// creator creates a creator charging price per period.
func (f *fixture) creator(t *testing.T, name string, price types.Money) id.ProfileID {
	t.Helper()
	pid := f.user(t, name)
	ctx := f.as(pid)
	_, err := f.BecomeCreator(ctx)
	require.NoError(t, err)
	_, err = f.UpdateProfile(ctx, profile.Update{SubscriptionPrice: &price})
	require.NoError(t, err)
	return pid
}

func (f *fixture) post(t *testing.T, creator id.ProfileID, vis post.Visibility, price types.Money) *post.Post {
	t.Helper()
	pst, err := f.CreatePost(f.as(creator), patron.PostDraft{Content: "hello " + string(vis), Visibility: vis, Price: price})
	require.NoError(t, err)
	return pst
}

func (f *fixture) as(pid id.ProfileID) context.Context {
	return auth.WithProfile(context.Background(), pid)
}

func (f *fixture) transactions(t *testing.T, creator id.ProfileID) []*ledger.Transaction {
	t.Helper()
	txns, err := f.Store().ListTransactions(context.Background(), creator, ledger.ListOpts{})
	require.NoError(t, err)
	return txns
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, patron.WithExpirySweep(10*time.Millisecond, 10))
	ctx := context.Background()

	require.NoError(t, f.Start(ctx))
	require.NoError(t, f.Stop())
	// A second Stop must not panic on the closed channel.
	require.NoError(t, f.Stop())
}

func TestNotAuthenticated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.creator(t, "creator", types.USD(500))

	_, _, err := f.Subscribe(ctx, creator)
	assert.ErrorIs(t, err, patron.ErrNotAuthenticated)

	_, err = f.Tip(ctx, creator, types.USD(100), "")
	assert.ErrorIs(t, err, patron.ErrNotAuthenticated)

	_, err = f.CreatePost(ctx, patron.PostDraft{Content: "x", Visibility: post.VisibilityPublic})
	assert.ErrorIs(t, err, patron.ErrNotAuthenticated)

	_, err = f.Notifications(ctx, 0)
	assert.ErrorIs(t, err, patron.ErrNotAuthenticated)

	_, err = f.BecomeCreator(ctx)
	assert.ErrorIs(t, err, patron.ErrNotAuthenticated)
}
