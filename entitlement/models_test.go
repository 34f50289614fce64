package entitlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/types"
)

type fakeChecks struct {
	subscribed map[string]bool
	purchased  map[string]bool
	subCalls   int
	ppvCalls   int
	err        error
}

func (f *fakeChecks) IsActive(_ context.Context, fan, creator id.ProfileID, _ time.Time) (bool, error) {
	f.subCalls++
	return f.subscribed[fan.String()+creator.String()], f.err
}

func (f *fakeChecks) HasPurchased(_ context.Context, fan id.ProfileID, p id.PostID) (bool, error) {
	f.ppvCalls++
	return f.purchased[fan.String()+p.String()], f.err
}

func mustPost(t *testing.T, creator id.ProfileID, v post.Visibility) *post.Post {
	t.Helper()
	price := types.Zero("usd")
	if v == post.VisibilityPayPerView {
		price = types.USD(500)
	}
	p, err := post.New(creator, "content", v, price, nil, time.Now())
	if err != nil {
		t.Fatalf("post.New: %v", err)
	}
	return p
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	creator := id.NewProfileID()
	fan := id.NewProfileID()
	stranger := id.NewProfileID()

	public := mustPost(t, creator, post.VisibilityPublic)
	subOnly := mustPost(t, creator, post.VisibilitySubscriberOnly)
	ppv := mustPost(t, creator, post.VisibilityPayPerView)

	checks := &fakeChecks{
		subscribed: map[string]bool{fan.String() + creator.String(): true},
		purchased:  map[string]bool{fan.String() + ppv.ID.String(): true},
	}

	tests := []struct {
		name    string
		viewer  id.ProfileID
		post    *post.Post
		allowed bool
		reason  entitlement.Reason
	}{
		{"owner sees public", creator, public, true, entitlement.ReasonOwner},
		{"owner sees subscriber only", creator, subOnly, true, entitlement.ReasonOwner},
		{"owner sees ppv", creator, ppv, true, entitlement.ReasonOwner},
		{"anonymous sees public", id.Nil, public, true, entitlement.ReasonPublic},
		{"anonymous denied subscriber only", id.Nil, subOnly, false, entitlement.ReasonNeedsSubscription},
		{"anonymous denied ppv", id.Nil, ppv, false, entitlement.ReasonNeedsPurchase},
		{"subscriber sees subscriber only", fan, subOnly, true, entitlement.ReasonSubscribed},
		{"purchaser sees ppv", fan, ppv, true, entitlement.ReasonPurchased},
		{"stranger denied subscriber only", stranger, subOnly, false, entitlement.ReasonNeedsSubscription},
		{"stranger denied ppv", stranger, ppv, false, entitlement.ReasonNeedsPurchase},
		{"stranger sees public", stranger, public, true, entitlement.ReasonPublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := entitlement.Evaluate(ctx, tt.viewer, tt.post, now, checks, checks)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Allowed != tt.allowed {
				t.Errorf("Allowed: got %v, want %v", res.Allowed, tt.allowed)
			}
			if res.Reason != tt.reason {
				t.Errorf("Reason: got %q, want %q", res.Reason, tt.reason)
			}
		})
	}
}

func TestEvaluateSubscriptionDoesNotUnlockPPV(t *testing.T) {
	creator, fan := id.NewProfileID(), id.NewProfileID()
	ppv := mustPost(t, creator, post.VisibilityPayPerView)
	checks := &fakeChecks{subscribed: map[string]bool{fan.String() + creator.String(): true}}

	res, err := entitlement.Evaluate(context.Background(), fan, ppv, time.Now(), checks, checks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Error("an active subscription must not unlock a pay-per-view post")
	}
	if res.Price != "$5.00" {
		t.Errorf("Price: got %q, want $5.00", res.Price)
	}
}

func TestEvaluateSkipsLookupsWhenUnneeded(t *testing.T) {
	creator := id.NewProfileID()
	checks := &fakeChecks{}

	for _, v := range []post.Visibility{post.VisibilityPublic, post.VisibilitySubscriberOnly, post.VisibilityPayPerView} {
		if _, err := entitlement.Evaluate(context.Background(), creator, mustPost(t, creator, v), time.Now(), checks, checks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := entitlement.Evaluate(context.Background(), id.Nil, mustPost(t, creator, v), time.Now(), checks, checks); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if checks.subCalls != 0 || checks.ppvCalls != 0 {
		t.Errorf("owner and anonymous viewers need no lookups, got %d/%d calls", checks.subCalls, checks.ppvCalls)
	}
}

func TestEvaluateLookupError(t *testing.T) {
	boom := errors.New("store down")
	creator := id.NewProfileID()
	checks := &fakeChecks{err: boom}

	_, err := entitlement.Evaluate(context.Background(), id.NewProfileID(), mustPost(t, creator, post.VisibilitySubscriberOnly), time.Now(), checks, checks)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped lookup error, got %v", err)
	}
}

func TestCheckerFuncs(t *testing.T) {
	var subs entitlement.SubscriptionChecker = entitlement.SubscriptionCheckerFunc(
		func(context.Context, id.ProfileID, id.ProfileID, time.Time) (bool, error) { return true, nil })
	var ppv entitlement.PurchaseChecker = entitlement.PurchaseCheckerFunc(
		func(context.Context, id.ProfileID, id.PostID) (bool, error) { return false, nil })

	creator := id.NewProfileID()
	res, err := entitlement.Evaluate(context.Background(), id.NewProfileID(), mustPost(t, creator, post.VisibilitySubscriberOnly), time.Now(), subs, ppv)
	if err != nil || !res.Allowed {
		t.Errorf("expected access through func adapter, got %+v, %v", res, err)
	}
}
