// Package audithook bridges Patron lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit store. Callers inject a RecorderFunc adapter at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired  = (*Extension)(nil)
	_ plugin.OnSubscriptionRenewed  = (*Extension)(nil)
	_ plugin.OnPurchaseCompleted    = (*Extension)(nil)
	_ plugin.OnTipSent              = (*Extension)(nil)
	_ plugin.OnTransactionRecorded  = (*Extension)(nil)
	_ plugin.OnPaymentRefunded      = (*Extension)(nil)
	_ plugin.OnEntitlementChecked   = (*Extension)(nil)
	_ plugin.OnRoleGranted          = (*Extension)(nil)
	_ plugin.OnSettingsUpdated      = (*Extension)(nil)
	_ plugin.OnReportCreated        = (*Extension)(nil)
	_ plugin.OnReportTransitioned   = (*Extension)(nil)
	_ plugin.OnPostDeleted          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Patron lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.subscription(ctx, ActionSubscriptionCreated, sub)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return e.subscription(ctx, ActionSubscriptionCanceled, sub)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error {
	return e.subscription(ctx, ActionSubscriptionExpired, sub)
}

// OnSubscriptionRenewed implements plugin.OnSubscriptionRenewed.
func (e *Extension) OnSubscriptionRenewed(ctx context.Context, sub *subscription.Subscription) error {
	return e.subscription(ctx, ActionSubscriptionRenewed, sub)
}

func (e *Extension) subscription(ctx context.Context, action string, sub *subscription.Subscription) error {
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"fan_id", sub.FanID.String(),
		"creator_id", sub.CreatorID.String(),
		"status", string(sub.Status),
		"period_end", sub.CurrentPeriodEnd,
	)
}

// ──────────────────────────────────────────────────
// Monetization hooks
// ──────────────────────────────────────────────────

// OnPurchaseCompleted implements plugin.OnPurchaseCompleted.
func (e *Extension) OnPurchaseCompleted(ctx context.Context, p *purchase.Purchase) error {
	return e.record(ctx, ActionPurchaseCompleted, SeverityInfo, OutcomeSuccess,
		ResourcePurchase, p.ID.String(), CategoryPayment, nil,
		"post_id", p.PostID.String(),
		"creator_id", p.CreatorID.String(),
		"amount", p.Amount.String(),
		"payment_ref", p.PaymentRef,
	)
}

// OnTipSent implements plugin.OnTipSent.
func (e *Extension) OnTipSent(ctx context.Context, t *tip.Tip) error {
	return e.record(ctx, ActionTipSent, SeverityInfo, OutcomeSuccess,
		ResourceTip, t.ID.String(), CategoryPayment, nil,
		"creator_id", t.CreatorID.String(),
		"amount", t.Amount.String(),
		"payment_ref", t.PaymentRef,
	)
}

// OnTransactionRecorded implements plugin.OnTransactionRecorded.
func (e *Extension) OnTransactionRecorded(ctx context.Context, txn *ledger.Transaction) error {
	return e.record(ctx, ActionTransactionRecorded, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryPayment, nil,
		"type", string(txn.Type),
		"creator_id", txn.CreatorID.String(),
		"gross", txn.Gross.String(),
		"fee", txn.Fee.String(),
		"net", txn.Net.String(),
		"fee_rate_bps", int64(txn.FeeRate),
	)
}

// OnPaymentRefunded implements plugin.OnPaymentRefunded. A refund means a
// charge was captured but could not be recorded.
func (e *Extension) OnPaymentRefunded(ctx context.Context, reference string, cause error) error {
	return e.record(ctx, ActionPaymentRefunded, SeverityCritical, OutcomeFailure,
		ResourcePayment, reference, CategoryPayment, cause,
	)
}

// ──────────────────────────────────────────────────
// Access hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked implements plugin.OnEntitlementChecked. Only denials
// are audited.
func (e *Extension) OnEntitlementChecked(ctx context.Context, res *entitlement.Result) error {
	if res.Allowed {
		return nil
	}
	return e.record(ctx, ActionEntitlementDenied, SeverityInfo, OutcomeFailure,
		ResourcePost, res.PostID.String(), CategoryAccess, nil,
		"reason", string(res.Reason),
	)
}

// OnRoleGranted implements plugin.OnRoleGranted.
func (e *Extension) OnRoleGranted(ctx context.Context, ra *profile.RoleAssignment) error {
	return e.record(ctx, ActionRoleGranted, SeverityWarning, OutcomeSuccess,
		ResourceProfile, ra.ProfileID.String(), CategoryAdmin, nil,
		"role", string(ra.Role),
	)
}

// OnSettingsUpdated implements plugin.OnSettingsUpdated.
func (e *Extension) OnSettingsUpdated(ctx context.Context, old, updated *settings.Settings) error {
	return e.record(ctx, ActionSettingsUpdated, SeverityWarning, OutcomeSuccess,
		ResourceSettings, "", CategoryAdmin, nil,
		"old_fee_rate_bps", int64(old.FeeRate),
		"new_fee_rate_bps", int64(updated.FeeRate),
		"min_price", updated.MinSubscriptionPrice.String(),
		"max_price", updated.MaxSubscriptionPrice.String(),
	)
}

// ──────────────────────────────────────────────────
// Moderation hooks
// ──────────────────────────────────────────────────

// OnReportCreated implements plugin.OnReportCreated.
func (e *Extension) OnReportCreated(ctx context.Context, r *moderation.Report) error {
	return e.record(ctx, ActionReportCreated, SeverityInfo, OutcomeSuccess,
		ResourceReport, r.ID.String(), CategoryModeration, nil,
		"reported_user_id", r.ReportedUserID.String(),
		"reported_post_id", r.ReportedPostID.String(),
	)
}

// OnReportTransitioned implements plugin.OnReportTransitioned.
func (e *Extension) OnReportTransitioned(ctx context.Context, r *moderation.Report, from moderation.Status) error {
	return e.record(ctx, ActionReportTransitioned, SeverityInfo, OutcomeSuccess,
		ResourceReport, r.ID.String(), CategoryModeration, nil,
		"from", string(from),
		"to", string(r.Status),
	)
}

// OnPostDeleted implements plugin.OnPostDeleted.
func (e *Extension) OnPostDeleted(ctx context.Context, p *post.Post) error {
	return e.record(ctx, ActionPostDeleted, SeverityInfo, OutcomeSuccess,
		ResourcePost, p.ID.String(), CategoryModeration, nil,
		"creator_id", p.CreatorID.String(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}
	if ident, ok := auth.FromContext(ctx); ok {
		evt.ActorID = ident.ProfileID.String()
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
