package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration, so dispatch is a
// slice walk.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onSubscriptionCreated  []OnSubscriptionCreated
	onSubscriptionCanceled []OnSubscriptionCanceled
	onSubscriptionExpired  []OnSubscriptionExpired
	onSubscriptionRenewed  []OnSubscriptionRenewed
	onPurchaseCompleted    []OnPurchaseCompleted
	onTipSent              []OnTipSent
	onTransactionRecorded  []OnTransactionRecorded
	onPaymentRefunded      []OnPaymentRefunded
	onEntitlementChecked   []OnEntitlementChecked
	onEntitlementChanged   []OnEntitlementChanged
	onRoleGranted          []OnRoleGranted
	onProfileUpdated       []OnProfileUpdated
	onSettingsUpdated      []OnSettingsUpdated
	onPostCreated          []OnPostCreated
	onPostDeleted          []OnPostDeleted
	onReportCreated        []OnReportCreated
	onReportTransitioned   []OnReportTransitioned
	onNotificationCreated  []OnNotificationCreated
	onMessageSent          []OnMessageSent
	onOperationFailed      []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnSubscriptionRenewed); ok {
		r.onSubscriptionRenewed = append(r.onSubscriptionRenewed, v)
	}
	if v, ok := p.(OnPurchaseCompleted); ok {
		r.onPurchaseCompleted = append(r.onPurchaseCompleted, v)
	}
	if v, ok := p.(OnTipSent); ok {
		r.onTipSent = append(r.onTipSent, v)
	}
	if v, ok := p.(OnTransactionRecorded); ok {
		r.onTransactionRecorded = append(r.onTransactionRecorded, v)
	}
	if v, ok := p.(OnPaymentRefunded); ok {
		r.onPaymentRefunded = append(r.onPaymentRefunded, v)
	}
	if v, ok := p.(OnEntitlementChecked); ok {
		r.onEntitlementChecked = append(r.onEntitlementChecked, v)
	}
	if v, ok := p.(OnEntitlementChanged); ok {
		r.onEntitlementChanged = append(r.onEntitlementChanged, v)
	}
	if v, ok := p.(OnRoleGranted); ok {
		r.onRoleGranted = append(r.onRoleGranted, v)
	}
	if v, ok := p.(OnProfileUpdated); ok {
		r.onProfileUpdated = append(r.onProfileUpdated, v)
	}
	if v, ok := p.(OnSettingsUpdated); ok {
		r.onSettingsUpdated = append(r.onSettingsUpdated, v)
	}
	if v, ok := p.(OnPostCreated); ok {
		r.onPostCreated = append(r.onPostCreated, v)
	}
	if v, ok := p.(OnPostDeleted); ok {
		r.onPostDeleted = append(r.onPostDeleted, v)
	}
	if v, ok := p.(OnReportCreated); ok {
		r.onReportCreated = append(r.onReportCreated, v)
	}
	if v, ok := p.(OnReportTransitioned); ok {
		r.onReportTransitioned = append(r.onReportTransitioned, v)
	}
	if v, ok := p.(OnNotificationCreated); ok {
		r.onNotificationCreated = append(r.onNotificationCreated, v)
	}
	if v, ok := p.(OnMessageSent); ok {
		r.onMessageSent = append(r.onMessageSent, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnSubscriptionCreated", reflect.TypeFor[OnSubscriptionCreated]()},
	{"OnSubscriptionCanceled", reflect.TypeFor[OnSubscriptionCanceled]()},
	{"OnSubscriptionExpired", reflect.TypeFor[OnSubscriptionExpired]()},
	{"OnSubscriptionRenewed", reflect.TypeFor[OnSubscriptionRenewed]()},
	{"OnPurchaseCompleted", reflect.TypeFor[OnPurchaseCompleted]()},
	{"OnTipSent", reflect.TypeFor[OnTipSent]()},
	{"OnTransactionRecorded", reflect.TypeFor[OnTransactionRecorded]()},
	{"OnPaymentRefunded", reflect.TypeFor[OnPaymentRefunded]()},
	{"OnEntitlementChecked", reflect.TypeFor[OnEntitlementChecked]()},
	{"OnEntitlementChanged", reflect.TypeFor[OnEntitlementChanged]()},
	{"OnRoleGranted", reflect.TypeFor[OnRoleGranted]()},
	{"OnProfileUpdated", reflect.TypeFor[OnProfileUpdated]()},
	{"OnSettingsUpdated", reflect.TypeFor[OnSettingsUpdated]()},
	{"OnPostCreated", reflect.TypeFor[OnPostCreated]()},
	{"OnPostDeleted", reflect.TypeFor[OnPostDeleted]()},
	{"OnReportCreated", reflect.TypeFor[OnReportCreated]()},
	{"OnReportTransitioned", reflect.TypeFor[OnReportTransitioned]()},
	{"OnNotificationCreated", reflect.TypeFor[OnNotificationCreated]()},
	{"OnMessageSent", reflect.TypeFor[OnMessageSent]()},
	{"OnOperationFailed", reflect.TypeFor[OnOperationFailed]()},
}

// implementedInterfaces returns the hook names implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for every plugin in hooks. Failures are logged, never
// returned: a hook cannot undo a committed change.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, hooks *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *hooks
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	dispatch(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionCreated", &r.onSubscriptionCreated, func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, sub)
	})
}

func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionCanceled", &r.onSubscriptionCanceled, func(p OnSubscriptionCanceled) error {
		return p.OnSubscriptionCanceled(ctx, sub)
	})
}

func (r *Registry) EmitSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionExpired", &r.onSubscriptionExpired, func(p OnSubscriptionExpired) error {
		return p.OnSubscriptionExpired(ctx, sub)
	})
}

func (r *Registry) EmitSubscriptionRenewed(ctx context.Context, sub *subscription.Subscription) {
	dispatch(ctx, r, "OnSubscriptionRenewed", &r.onSubscriptionRenewed, func(p OnSubscriptionRenewed) error {
		return p.OnSubscriptionRenewed(ctx, sub)
	})
}

func (r *Registry) EmitPurchaseCompleted(ctx context.Context, pur *purchase.Purchase) {
	dispatch(ctx, r, "OnPurchaseCompleted", &r.onPurchaseCompleted, func(p OnPurchaseCompleted) error {
		return p.OnPurchaseCompleted(ctx, pur)
	})
}

func (r *Registry) EmitTipSent(ctx context.Context, t *tip.Tip) {
	dispatch(ctx, r, "OnTipSent", &r.onTipSent, func(p OnTipSent) error { return p.OnTipSent(ctx, t) })
}

func (r *Registry) EmitTransactionRecorded(ctx context.Context, txn *ledger.Transaction) {
	dispatch(ctx, r, "OnTransactionRecorded", &r.onTransactionRecorded, func(p OnTransactionRecorded) error {
		return p.OnTransactionRecorded(ctx, txn)
	})
}

func (r *Registry) EmitPaymentRefunded(ctx context.Context, reference string, cause error) {
	dispatch(ctx, r, "OnPaymentRefunded", &r.onPaymentRefunded, func(p OnPaymentRefunded) error {
		return p.OnPaymentRefunded(ctx, reference, cause)
	})
}

func (r *Registry) EmitEntitlementChecked(ctx context.Context, result *entitlement.Result) {
	dispatch(ctx, r, "OnEntitlementChecked", &r.onEntitlementChecked, func(p OnEntitlementChecked) error {
		return p.OnEntitlementChecked(ctx, result)
	})
}

func (r *Registry) EmitEntitlementChanged(ctx context.Context, change EntitlementChange) {
	dispatch(ctx, r, "OnEntitlementChanged", &r.onEntitlementChanged, func(p OnEntitlementChanged) error {
		return p.OnEntitlementChanged(ctx, change)
	})
}

func (r *Registry) EmitRoleGranted(ctx context.Context, ra *profile.RoleAssignment) {
	dispatch(ctx, r, "OnRoleGranted", &r.onRoleGranted, func(p OnRoleGranted) error { return p.OnRoleGranted(ctx, ra) })
}

func (r *Registry) EmitProfileUpdated(ctx context.Context, prof *profile.Profile) {
	dispatch(ctx, r, "OnProfileUpdated", &r.onProfileUpdated, func(p OnProfileUpdated) error {
		return p.OnProfileUpdated(ctx, prof)
	})
}

func (r *Registry) EmitSettingsUpdated(ctx context.Context, old, updated *settings.Settings) {
	dispatch(ctx, r, "OnSettingsUpdated", &r.onSettingsUpdated, func(p OnSettingsUpdated) error {
		return p.OnSettingsUpdated(ctx, old, updated)
	})
}

func (r *Registry) EmitPostCreated(ctx context.Context, pst *post.Post) {
	dispatch(ctx, r, "OnPostCreated", &r.onPostCreated, func(p OnPostCreated) error { return p.OnPostCreated(ctx, pst) })
}

func (r *Registry) EmitPostDeleted(ctx context.Context, pst *post.Post) {
	dispatch(ctx, r, "OnPostDeleted", &r.onPostDeleted, func(p OnPostDeleted) error { return p.OnPostDeleted(ctx, pst) })
}

func (r *Registry) EmitReportCreated(ctx context.Context, rep *moderation.Report) {
	dispatch(ctx, r, "OnReportCreated", &r.onReportCreated, func(p OnReportCreated) error {
		return p.OnReportCreated(ctx, rep)
	})
}

func (r *Registry) EmitReportTransitioned(ctx context.Context, rep *moderation.Report, from moderation.Status) {
	dispatch(ctx, r, "OnReportTransitioned", &r.onReportTransitioned, func(p OnReportTransitioned) error {
		return p.OnReportTransitioned(ctx, rep, from)
	})
}

func (r *Registry) EmitNotificationCreated(ctx context.Context, n *notification.Notification) {
	dispatch(ctx, r, "OnNotificationCreated", &r.onNotificationCreated, func(p OnNotificationCreated) error {
		return p.OnNotificationCreated(ctx, n)
	})
}

func (r *Registry) EmitMessageSent(ctx context.Context, m *message.Message, conv *message.Conversation) {
	dispatch(ctx, r, "OnMessageSent", &r.onMessageSent, func(p OnMessageSent) error {
		return p.OnMessageSent(ctx, m, conv)
	})
}

func (r *Registry) EmitOperationFailed(ctx context.Context, op string, err error) {
	dispatch(ctx, r, "OnOperationFailed", &r.onOperationFailed, func(p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, op, err)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the request that emitted the event.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
