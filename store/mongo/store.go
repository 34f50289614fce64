// Package mongo implements store.Store on MongoDB via the Grove ORM. Units
// of work run in a session transaction, so the server must be a replica set
// or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/patron"
	"github.com/xraph/patron/store"
)

// Collection name constants.
const (
	colProfiles      = "patron_profiles"
	colRoles         = "patron_roles"
	colPosts         = "patron_posts"
	colSubscriptions = "patron_subscriptions"
	colPurchases     = "patron_purchases"
	colTips          = "patron_tips"
	colTransactions  = "patron_transactions"
	colSettings      = "patron_settings"
	colReports       = "patron_reports"
	colNotifications = "patron_notifications"
	colConversations = "patron_conversations"
	colMessages      = "patron_messages"
	colLocks         = "patron_locks"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db   *grove.DB
	mdb  *mongodriver.MongoDB
	inTx bool
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects a mongodriver client to uri and uses database name.
func Open(ctx context.Context, uri, name string) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, mongodriver.WithDatabase(name)); err != nil {
		return nil, fmt.Errorf("patron/mongo: connect: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("patron/mongo: open grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all Patron collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: %s indexes: %w", patron.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a session transaction. Queries pick the session
// up from the callback context. The driver retries fn on transient errors,
// so fn must be safe to run more than once. Nested calls join the outer
// transaction.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	sess, err := s.mdb.Client().StartSession()
	if err != nil {
		return fmt.Errorf("patron/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	tx := &Store{db: s.db, mdb: s.mdb, inTx: true}
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, tx)
	})
	return err
}

// Lock writes the key's lock document. Concurrent transactions writing the
// same document conflict, and the loser is retried after the winner commits.
func (s *Store) Lock(ctx context.Context, key string) error {
	if !s.inTx {
		return fmt.Errorf("%w: lock %q outside a transaction", patron.ErrInvalidState, key)
	}
	_, err := s.mdb.NewUpdate((*lockModel)(nil)).
		Filter(bson.M{"_id": key}).
		SetUpdate(bson.M{"$inc": bson.M{"n": 1}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("patron/mongo: lock %q: %w", key, err)
	}
	return nil
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// usernameKey is the case-folded username the unique index covers. Profiles
// without a username store null so the partial index skips them.
func usernameKey(username string) *string {
	if username == "" {
		return nil
	}
	k := strings.ToLower(username)
	return &k
}

// wrap maps driver errors onto Patron sentinels.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "username_key") {
			return patron.ErrUsernameTaken
		}
		return fmt.Errorf("%w: %s", patron.ErrAlreadyExists, op)
	}
	return fmt.Errorf("patron/mongo: %s: %w", op, err)
}

// updated is satisfied by the grove mongo update result.
type updated interface{ MatchedCount() int64 }

func findOne[M, T any](ctx context.Context, mdb *mongodriver.MongoDB, op string, notFound error, filter bson.M, from func(*M) (*T, error)) (*T, error) {
	var m M
	if err := mdb.NewFind(&m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, notFound
		}
		return nil, wrap(op, err)
	}
	return from(&m)
}

// findMany runs a sorted find. Zero limit or offset leaves it unset.
func findMany[M, T any](ctx context.Context, mdb *mongodriver.MongoDB, op string, filter bson.M, sort bson.D, limit, offset int, from func(*M) (*T, error)) ([]*T, error) {
	var models []M
	q := mdb.NewFind(&models).Filter(filter).Sort(sort)
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if offset > 0 {
		q = q.Skip(int64(offset))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrap(op, err)
	}
	return fromModels(op, models, from)
}

func fromModels[M, T any](op string, models []M, from func(*M) (*T, error)) ([]*T, error) {
	out := make([]*T, 0, len(models))
	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, fmt.Errorf("patron/mongo: %s: %w", op, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func matched(res updated, err error, op string, notFound error) error {
	if err != nil {
		return wrap(op, err)
	}
	if res.MatchedCount() == 0 {
		return notFound
	}
	return nil
}

// migrationIndexes returns the index definitions for all Patron collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colProfiles: {
			{
				Keys: bson.D{{Key: "username_key", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"username_key": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "created_us", Value: -1}}},
		},
		colRoles: {
			{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "role", Value: 1}}},
		},
		colPosts: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_us", Value: -1}}},
			{Keys: bson.D{{Key: "created_us", Value: -1}}},
		},
		colSubscriptions: {
			{
				Keys: bson.D{{Key: "fan_id", Value: 1}, {Key: "creator_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "active"}),
			},
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "current_period_end", Value: 1}}},
		},
		colPurchases: {
			{
				Keys:    bson.D{{Key: "fan_id", Value: 1}, {Key: "post_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTips: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "creator_id", Value: 1}, {Key: "created_us", Value: -1}}},
		},
		colReports: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_us", Value: -1}}},
		},
		colConversations: {
			{
				Keys:    bson.D{{Key: "participant_a", Value: 1}, {Key: "participant_b", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colMessages: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_us", Value: 1}}},
		},
	}
}
