package postgres

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

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.q.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	return wrap("create subscription", err)
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	q := s.q.NewSelect(m).Where("id = $1", subID.String())
	if err := scanOne(ctx, q, "get subscription", patron.ErrSubscriptionNotFound); err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, fanID, creatorID id.ProfileID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	q := s.q.NewSelect(m).
		Where("fan_id = $1", fanID.String()).
		Where("creator_id = $2", creatorID.String()).
		Where("status = $3", string(subscription.StatusActive))
	if err := scanOne(ctx, q, "get active subscription", patron.ErrNoActiveSubscription); err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) listSubscriptions(ctx context.Context, column string, profileID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.q.NewSelect(&models).Where(column+" = $1", profileID.String())
	if opts.Status != "" {
		q = q.Where("status = $2", string(opts.Status))
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("list subscriptions", err)
	}
	return fromModels(models, fromSubscriptionModel)
}

func (s *Store) ListSubscriptionsByFan(ctx context.Context, fanID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(ctx, "fan_id", fanID, opts)
}

func (s *Store) ListSubscriptionsByCreator(ctx context.Context, creatorID id.ProfileID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return s.listSubscriptions(ctx, "creator_id", creatorID, opts)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.q.NewUpdate((*subscriptionModel)(nil)).
		Set("status = $1", string(sub.Status)).
		Set("current_period_start = $2", sub.CurrentPeriodStart).
		Set("current_period_end = $3", sub.CurrentPeriodEnd).
		Set("canceled_at = $4", sub.CanceledAt).
		Set("provider_ref = $5", sub.ProviderRef).
		Set("updated_at = $6", sub.UpdatedAt).
		Where("id = $7", sub.ID.String()).
		Exec(ctx)
	return affected("update subscription", patron.ErrSubscriptionNotFound, res, err)
}

func (s *Store) CountEntitledSubscribers(ctx context.Context, creatorID id.ProfileID, now time.Time) (int64, error) {
	n, err := s.q.NewSelect((*subscriptionModel)(nil)).
		Where("creator_id = $1", creatorID.String()).
		Where("status = $2", string(subscription.StatusActive)).
		Where("current_period_start <= $3", now).
		Where("current_period_end > $3").
		Count(ctx)
	if err != nil {
		return 0, wrap("count entitled subscribers", err)
	}
	return n, nil
}

func (s *Store) ListElapsedSubscriptions(ctx context.Context, now time.Time, limit int) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.q.NewSelect(&models).
		Where("status = $1", string(subscription.StatusActive)).
		Where("current_period_end <= $2", now).
		OrderExpr("current_period_end, id")
	if err := page(q, limit, 0).Scan(ctx); err != nil {
		return nil, wrap("list elapsed subscriptions", err)
	}
	return fromModels(models, fromSubscriptionModel)
}

// ==================== Purchase Store ====================

func (s *Store) CreatePurchase(ctx context.Context, p *purchase.Purchase) error {
	_, err := s.q.NewInsert(toPurchaseModel(p)).Exec(ctx)
	return wrap("create purchase", err)
}

func (s *Store) GetPurchase(ctx context.Context, fanID id.ProfileID, postID id.PostID) (*purchase.Purchase, error) {
	m := new(purchaseModel)
	q := s.q.NewSelect(m).
		Where("fan_id = $1", fanID.String()).
		Where("post_id = $2", postID.String())
	if err := scanOne(ctx, q, "get purchase", patron.ErrPurchaseNotFound); err != nil {
		return nil, err
	}
	return fromPurchaseModel(m)
}

func (s *Store) ListPurchasesByFan(ctx context.Context, fanID id.ProfileID) ([]*purchase.Purchase, error) {
	var models []purchaseModel
	err := s.q.NewSelect(&models).
		Where("fan_id = $1", fanID.String()).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list purchases", err)
	}
	return fromModels(models, fromPurchaseModel)
}

// ==================== Tip Store ====================

func (s *Store) CreateTip(ctx context.Context, t *tip.Tip) error {
	_, err := s.q.NewInsert(toTipModel(t)).Exec(ctx)
	return wrap("create tip", err)
}

func (s *Store) ListTipsByCreator(ctx context.Context, creatorID id.ProfileID, limit int) ([]*tip.Tip, error) {
	var models []tipModel
	q := s.q.NewSelect(&models).
		Where("creator_id = $1", creatorID.String()).
		OrderExpr("created_at DESC, id DESC")
	if err := page(q, limit, 0).Scan(ctx); err != nil {
		return nil, wrap("list tips", err)
	}
	return fromModels(models, fromTipModel)
}

// ==================== Ledger Store ====================

func (s *Store) AppendTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.q.NewInsert(toTransactionModel(t)).Exec(ctx)
	return wrap("append transaction", err)
}

func (s *Store) ListTransactions(ctx context.Context, creatorID id.ProfileID, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	var models []transactionModel
	q := s.q.NewSelect(&models).Where("creator_id = $1", creatorID.String())

	argIdx := 1
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since)
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, 0).Scan(ctx); err != nil {
		return nil, wrap("list transactions", err)
	}
	return fromModels(models, fromTransactionModel)
}
