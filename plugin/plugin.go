// Package plugin provides the hook system Patron uses to fan out domain
// events. Plugins implement any subset of the hook interfaces; the Registry
// discovers them at registration time and calls them after the change they
// describe has been committed.
package plugin

import (
	"context"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
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

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// EntitlementChange describes a change in what a fan may see from a creator.
// PostID is set when a single post was unlocked.
type EntitlementChange struct {
	FanID     id.ProfileID `json:"fan_id"`
	CreatorID id.ProfileID `json:"creator_id"`
	PostID    id.PostID    `json:"post_id,omitempty"`
	Cause     string       `json:"cause"`
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Subscription hooks
// ──────────────────────────────────────────────────

type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error
}

type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error
}

type OnSubscriptionRenewed interface {
	Plugin
	OnSubscriptionRenewed(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Monetization hooks
// ──────────────────────────────────────────────────

type OnPurchaseCompleted interface {
	Plugin
	OnPurchaseCompleted(ctx context.Context, p *purchase.Purchase) error
}

type OnTipSent interface {
	Plugin
	OnTipSent(ctx context.Context, t *tip.Tip) error
}

// OnTransactionRecorded is called once per ledger transaction.
type OnTransactionRecorded interface {
	Plugin
	OnTransactionRecorded(ctx context.Context, txn *ledger.Transaction) error
}

// OnPaymentRefunded is called when a captured charge was refunded because
// recording it failed.
type OnPaymentRefunded interface {
	Plugin
	OnPaymentRefunded(ctx context.Context, reference string, cause error) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

type OnEntitlementChecked interface {
	Plugin
	OnEntitlementChecked(ctx context.Context, result *entitlement.Result) error
}

type OnEntitlementChanged interface {
	Plugin
	OnEntitlementChanged(ctx context.Context, change EntitlementChange) error
}

// ──────────────────────────────────────────────────
// Profile, role, and settings hooks
// ──────────────────────────────────────────────────

type OnRoleGranted interface {
	Plugin
	OnRoleGranted(ctx context.Context, ra *profile.RoleAssignment) error
}

type OnProfileUpdated interface {
	Plugin
	OnProfileUpdated(ctx context.Context, p *profile.Profile) error
}

type OnSettingsUpdated interface {
	Plugin
	OnSettingsUpdated(ctx context.Context, old, updated *settings.Settings) error
}

// ──────────────────────────────────────────────────
// Content and moderation hooks
// ──────────────────────────────────────────────────

type OnPostCreated interface {
	Plugin
	OnPostCreated(ctx context.Context, p *post.Post) error
}

type OnPostDeleted interface {
	Plugin
	OnPostDeleted(ctx context.Context, p *post.Post) error
}

type OnReportCreated interface {
	Plugin
	OnReportCreated(ctx context.Context, r *moderation.Report) error
}

type OnReportTransitioned interface {
	Plugin
	OnReportTransitioned(ctx context.Context, r *moderation.Report, from moderation.Status) error
}

// ──────────────────────────────────────────────────
// Notification and messaging hooks
// ──────────────────────────────────────────────────

type OnNotificationCreated interface {
	Plugin
	OnNotificationCreated(ctx context.Context, n *notification.Notification) error
}

type OnMessageSent interface {
	Plugin
	OnMessageSent(ctx context.Context, m *message.Message, conv *message.Conversation) error
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed is called when an engine operation fails after
// authentication, with the operation name such as "purchase".
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}
