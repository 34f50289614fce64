// Package entitlement decides whether a viewer may see a post.
//
// Evaluate is a pure function of its inputs: the subscription and purchase
// lookups are injected, so the same rules run against any store and in tests.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/post"
)

type Reason string

const (
	ReasonOwner             Reason = "owner"
	ReasonPublic            Reason = "public"
	ReasonSubscribed        Reason = "subscribed"
	ReasonPurchased         Reason = "purchased"
	ReasonNeedsSubscription Reason = "needs_subscription"
	ReasonNeedsPurchase     Reason = "needs_purchase"
)

type Result struct {
	Allowed  bool         `json:"allowed"`
	ViewerID id.ProfileID `json:"viewer_id,omitempty"`
	PostID   id.PostID    `json:"post_id"`
	Reason   Reason       `json:"reason"`
	// Price is what unlocking costs when Reason is needs_purchase.
	Price string `json:"price,omitempty"`
}

// SubscriptionChecker reports whether fan holds a subscription to creator
// that is active and whose period contains now.
type SubscriptionChecker interface {
	IsActive(ctx context.Context, fanID, creatorID id.ProfileID, now time.Time) (bool, error)
}

// PurchaseChecker reports whether fan has unlocked the post.
type PurchaseChecker interface {
	HasPurchased(ctx context.Context, fanID id.ProfileID, postID id.PostID) (bool, error)
}

// SubscriptionCheckerFunc adapts a function to SubscriptionChecker.
type SubscriptionCheckerFunc func(ctx context.Context, fanID, creatorID id.ProfileID, now time.Time) (bool, error)

func (f SubscriptionCheckerFunc) IsActive(ctx context.Context, fanID, creatorID id.ProfileID, now time.Time) (bool, error) {
	return f(ctx, fanID, creatorID, now)
}

// PurchaseCheckerFunc adapts a function to PurchaseChecker.
type PurchaseCheckerFunc func(ctx context.Context, fanID id.ProfileID, postID id.PostID) (bool, error)

func (f PurchaseCheckerFunc) HasPurchased(ctx context.Context, fanID id.ProfileID, postID id.PostID) (bool, error) {
	return f(ctx, fanID, postID)
}

// Evaluate applies the access rules in order: the owner always sees their
// post, public posts are visible to everyone including anonymous viewers
// (nil viewer), subscriber_only posts need an entitled subscription, and
// pay_per_view posts need a purchase.
func Evaluate(ctx context.Context, viewer id.ProfileID, p *post.Post, now time.Time, subs SubscriptionChecker, ppv PurchaseChecker) (*Result, error) {
	res := &Result{ViewerID: viewer, PostID: p.ID}

	switch {
	case !viewer.IsNil() && viewer.Equal(p.CreatorID):
		res.Allowed, res.Reason = true, ReasonOwner
		return res, nil
	case p.Visibility == post.VisibilityPublic:
		res.Allowed, res.Reason = true, ReasonPublic
		return res, nil
	}

	switch p.Visibility {
	case post.VisibilitySubscriberOnly:
		res.Reason = ReasonNeedsSubscription
		if viewer.IsNil() {
			return res, nil
		}
		ok, err := subs.IsActive(ctx, viewer, p.CreatorID, now)
		if err != nil {
			return nil, fmt.Errorf("entitlement: check subscription: %w", err)
		}
		if ok {
			res.Allowed, res.Reason = true, ReasonSubscribed
		}
		return res, nil

	case post.VisibilityPayPerView:
		res.Reason = ReasonNeedsPurchase
		res.Price = p.PPVPrice.String()
		if viewer.IsNil() {
			return res, nil
		}
		ok, err := ppv.HasPurchased(ctx, viewer, p.ID)
		if err != nil {
			return nil, fmt.Errorf("entitlement: check purchase: %w", err)
		}
		if ok {
			res.Allowed, res.Reason, res.Price = true, ReasonPurchased, ""
		}
		return res, nil
	}

	return nil, fmt.Errorf("%w: %q", post.ErrInvalidVisibility, p.Visibility)
}
