// Package memory provides an in-memory store.Store for tests and local
// development.
//
// Units of work are exclusive: Transact holds a store-wide lock and snapshots
// the state, restoring it when fn fails. Standalone writes take the same
// lock, so they never interleave with a unit of work. Reads only take the
// read lock and may observe a unit of work in progress.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// state holds every record. Stored values are private copies that are
// replaced, never mutated, so a shallow clone is a consistent snapshot.
type state struct {
	profiles      map[string]*profile.Profile
	usernames     map[string]string
	roles         map[string]map[profile.Role]time.Time
	posts         map[string]*post.Post
	subscriptions map[string]*subscription.Subscription
	purchases     map[string]*purchase.Purchase
	tips          []*tip.Tip
	transactions  []*ledger.Transaction
	settings      *settings.Settings
	reports       map[string]*moderation.Report
	notifications map[string]*notification.Notification
	conversations map[string]*message.Conversation
	pairs         map[string]string
	messages      map[string][]*message.Message
}

func newState() *state {
	return &state{
		profiles:      make(map[string]*profile.Profile),
		usernames:     make(map[string]string),
		roles:         make(map[string]map[profile.Role]time.Time),
		posts:         make(map[string]*post.Post),
		subscriptions: make(map[string]*subscription.Subscription),
		purchases:     make(map[string]*purchase.Purchase),
		reports:       make(map[string]*moderation.Report),
		notifications: make(map[string]*notification.Notification),
		conversations: make(map[string]*message.Conversation),
		pairs:         make(map[string]string),
		messages:      make(map[string][]*message.Message),
	}
}

func (st *state) clone() *state {
	roles := make(map[string]map[profile.Role]time.Time, len(st.roles))
	for k, v := range st.roles {
		roles[k] = maps.Clone(v)
	}
	return &state{
		profiles:      maps.Clone(st.profiles),
		usernames:     maps.Clone(st.usernames),
		roles:         roles,
		posts:         maps.Clone(st.posts),
		subscriptions: maps.Clone(st.subscriptions),
		purchases:     maps.Clone(st.purchases),
		tips:          st.tips[:len(st.tips):len(st.tips)],
		transactions:  st.transactions[:len(st.transactions):len(st.transactions)],
		settings:      st.settings,
		reports:       maps.Clone(st.reports),
		notifications: maps.Clone(st.notifications),
		conversations: maps.Clone(st.conversations),
		pairs:         maps.Clone(st.pairs),
		messages:      maps.Clone(st.messages),
	}
}

// Store is an in-memory store.Store.
type Store struct {
	txMu *sync.Mutex
	mu   *sync.RWMutex
	st   **state
	inTx bool
}

// New creates an empty Store.
func New() *Store {
	st := newState()
	return &Store{txMu: &sync.Mutex{}, mu: &sync.RWMutex{}, st: &st}
}

// write applies fn under the write lock, joining the current unit of work if any.
func (s *Store) write(fn func(st *state) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(*s.st)
}

// read applies fn under the read lock.
func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(*s.st)
}

func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := (*s.st).clone()
	s.mu.RUnlock()

	tx := &Store{txMu: s.txMu, mu: s.mu, st: s.st, inTx: true}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		*s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Lock is satisfied by the exclusivity of units of work.
func (s *Store) Lock(context.Context, string) error { return nil }

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}
