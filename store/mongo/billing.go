package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

var createdDesc = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.mdb.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	return wrap("create subscription", err)
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return findOne(ctx, s.mdb, "get subscription", patron.ErrSubscriptionNotFound,
		bson.M{"_id": subID.String()}, fromSubscriptionModel)
}

func (s *Store) GetActiveSubscription(ctx context.Context, fanID, creatorID id.ProfileID) (*subscription.Subscription, error) {
	filter := bson.M{
		"fan_id":     fanID.String(),
		"creator_id": creatorID.String(),
		"status":     string(subscription.StatusActive),
	}
	return findOne(ctx, s.mdb, "get active subscription", patron.ErrNoActiveSubscription,
		filter, fromSubscriptionModel)
}

func (s *Store) listSubscriptions(ctx context.Context, filter bson.M, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	return findMany(ctx, s.mdb, "list subscriptions", filter, createdDesc, opts.Limit, opts.Offset, fromSubscriptionModel)
}

func (s *Store) ListSubscriptionsByFan(ctx context.Context, fanID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(ctx, bson.M{"fan_id": fanID.String()}, opts)
}

func (s *Store) ListSubscriptionsByCreator(ctx context.Context, creatorID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(ctx, bson.M{"creator_id": creatorID.String()}, opts)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	return matched(res, err, "update subscription", patron.ErrSubscriptionNotFound)
}

func (s *Store) CountEntitledSubscribers(ctx context.Context, creatorID id.ProfileID, now time.Time) (int64, error) {
	n, err := s.mdb.NewFind((*subscriptionModel)(nil)).Filter(bson.M{
		"creator_id":           creatorID.String(),
		"status":               string(subscription.StatusActive),
		"current_period_start": bson.M{"$lte": now},
		"current_period_end":   bson.M{"$gt": now},
	}).Count(ctx)
	if err != nil {
		return 0, wrap("count entitled subscribers", err)
	}
	return n, nil
}

func (s *Store) ListElapsedSubscriptions(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	filter := bson.M{
		"status":             string(subscription.StatusActive),
		"current_period_end": bson.M{"$lte": now},
	}
	sort := bson.D{{Key: "current_period_end", Value: 1}, {Key: "_id", Value: 1}}
	return findMany(ctx, s.mdb, "list elapsed subscriptions", filter, sort, limit, 0, fromSubscriptionModel)
}

// ==================== Purchase Store ====================

func (s *Store) CreatePurchase(ctx context.Context, p *purchase.Purchase) error {
	_, err := s.mdb.NewInsert(toPurchaseModel(p)).Exec(ctx)
	return wrap("create purchase", err)
}

func (s *Store) GetPurchase(ctx context.Context, fanID id.ProfileID, postID id.PostID) (*purchase.Purchase, error) {
	return findOne(ctx, s.mdb, "get purchase", patron.ErrPurchaseNotFound,
		bson.M{"fan_id": fanID.String(), "post_id": postID.String()}, fromPurchaseModel)
}

func (s *Store) ListPurchasesByFan(ctx context.Context, fanID id.ProfileID) ([]*purchase.Purchase, error) {
	return findMany(ctx, s.mdb, "list purchases", bson.M{"fan_id": fanID.String()}, createdDesc, 0, 0, fromPurchaseModel)
}

// ==================== Tip Store ====================

func (s *Store) CreateTip(ctx context.Context, t *tip.Tip) error {
	_, err := s.mdb.NewInsert(toTipModel(t)).Exec(ctx)
	return wrap("create tip", err)
}

func (s *Store) ListTipsByCreator(ctx context.Context, creatorID id.ProfileID, limit int) ([]*tip.Tip, error) {
	return findMany(ctx, s.mdb, "list tips", bson.M{"creator_id": creatorID.String()}, createdDesc, limit, 0, fromTipModel)
}

// ==================== Ledger Store ====================

func (s *Store) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.mdb.NewInsert(toTransactionModel(t)).Exec(ctx)
	return wrap("append transaction", err)
}

func (s *Store) ListTransactions(ctx context.Context, creatorID id.ProfileID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	filter := bson.M{"creator_id": creatorID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if !opts.Since.IsZero() {
		filter["created_us"] = bson.M{"$gte": opts.Since.UnixMicro()}
	}
	return findMany(ctx, s.mdb, "list transactions", filter, newestFirst, opts.Limit, 0, fromTransactionModel)
}
