package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/subscription"
)

type recorder struct {
	name     string
	subs     atomic.Int32
	txns     atomic.Int32
	failWith error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnSubscriptionCreated(context.Context, *subscription.Subscription) error {
	r.subs.Add(1)
	return r.failWith
}

func (r *recorder) OnTransactionRecorded(context.Context, *ledger.Transaction) error {
	r.txns.Add(1)
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnSubscriptionCreated(ctx context.Context, _ *subscription.Subscription) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func TestRegisterAndDispatch(t *testing.T) {
	reg := plugin.NewRegistry()
	a := &recorder{name: "a"}
	b := &recorder{name: "b", failWith: errors.New("boom")}

	if err := reg.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := reg.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := reg.Register(&recorder{name: "a"}); err == nil {
		t.Error("expected duplicate registration error")
	}
	if reg.Count() != 2 || reg.Get("b") == nil || reg.Get("c") != nil {
		t.Errorf("unexpected registry contents: %v", reg.List())
	}

	ctx := context.Background()
	reg.EmitSubscriptionCreated(ctx, &subscription.Subscription{})
	reg.EmitTransactionRecorded(ctx, &ledger.Transaction{})
	// Hooks nobody implements are a no-op.
	reg.EmitOperationFailed(ctx, "subscribe", errors.New("x"))

	if a.subs.Load() != 1 || b.subs.Load() != 1 {
		t.Errorf("a failing hook must not stop dispatch: a=%d b=%d", a.subs.Load(), b.subs.Load())
	}
	if a.txns.Load() != 1 {
		t.Errorf("expected one transaction hook call, got %d", a.txns.Load())
	}
}

func TestDispatchTimeout(t *testing.T) {
	reg := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	after := &recorder{name: "after"}
	_ = reg.Register(slow{})
	_ = reg.Register(after)

	start := time.Now()
	reg.EmitSubscriptionCreated(context.Background(), &subscription.Subscription{})

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow hook blocked dispatch for %v", elapsed)
	}
	if after.subs.Load() != 1 {
		t.Error("plugins after a slow one must still run")
	}
}
