// Package observability provides a metrics extension for Patron that records
// lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionRenewed  = (*MetricsExtension)(nil)
	_ plugin.OnPurchaseCompleted    = (*MetricsExtension)(nil)
	_ plugin.OnTipSent              = (*MetricsExtension)(nil)
	_ plugin.OnTransactionRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRefunded      = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementChecked   = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementChanged   = (*MetricsExtension)(nil)
	_ plugin.OnPostCreated          = (*MetricsExtension)(nil)
	_ plugin.OnReportCreated        = (*MetricsExtension)(nil)
	_ plugin.OnNotificationCreated  = (*MetricsExtension)(nil)
	_ plugin.OnMessageSent          = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Patron plugin to track monetization metrics.
type MetricsExtension struct {
	// Subscription metrics
	SubscriptionCreated  Counter
	SubscriptionCanceled Counter
	SubscriptionExpired  Counter
	SubscriptionRenewed  Counter

	// Monetization metrics
	PurchaseCompleted   Counter
	TipSent             Counter
	TransactionRecorded Counter
	GrossAmount         Histogram
	FeeAmount           Histogram
	PaymentRefunded     Counter

	// Entitlement metrics
	EntitlementChecks  Counter
	EntitlementDenied  Counter
	EntitlementChanged Counter

	// Content and social metrics
	PostCreated         Counter
	ReportCreated       Counter
	NotificationCreated Counter
	MessageSent         Counter

	// Error metrics
	OperationFailed Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		SubscriptionCreated:  factory.Counter("patron.subscription.created"),
		SubscriptionCanceled: factory.Counter("patron.subscription.canceled"),
		SubscriptionExpired:  factory.Counter("patron.subscription.expired"),
		SubscriptionRenewed:  factory.Counter("patron.subscription.renewed"),

		PurchaseCompleted:   factory.Counter("patron.purchase.completed"),
		TipSent:             factory.Counter("patron.tip.sent"),
		TransactionRecorded: factory.Counter("patron.ledger.transactions"),
		GrossAmount:         factory.Histogram("patron.ledger.gross_amount"),
		FeeAmount:           factory.Histogram("patron.ledger.fee_amount"),
		PaymentRefunded:     factory.Counter("patron.payment.refunded"),

		EntitlementChecks:  factory.Counter("patron.entitlement.checks"),
		EntitlementDenied:  factory.Counter("patron.entitlement.denied"),
		EntitlementChanged: factory.Counter("patron.entitlement.changed"),

		PostCreated:         factory.Counter("patron.post.created"),
		ReportCreated:       factory.Counter("patron.report.created"),
		NotificationCreated: factory.Counter("patron.notification.created"),
		MessageSent:         factory.Counter("patron.message.sent"),

		OperationFailed: factory.Counter("patron.operation.failed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionExpired.Inc()
	return nil
}

func (m *MetricsExtension) OnSubscriptionRenewed(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionRenewed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Monetization hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnPurchaseCompleted(_ context.Context, _ *purchase.Purchase) error {
	m.PurchaseCompleted.Inc()
	return nil
}

func (m *MetricsExtension) OnTipSent(_ context.Context, _ *tip.Tip) error {
	m.TipSent.Inc()
	return nil
}

// OnTransactionRecorded observes amounts in major units.
func (m *MetricsExtension) OnTransactionRecorded(_ context.Context, txn *ledger.Transaction) error {
	m.TransactionRecorded.Inc()
	m.GrossAmount.Observe(major(txn.Gross))
	m.FeeAmount.Observe(major(txn.Fee))
	return nil
}

func (m *MetricsExtension) OnPaymentRefunded(_ context.Context, _ string, _ error) error {
	m.PaymentRefunded.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnEntitlementChecked(_ context.Context, res *entitlement.Result) error {
	m.EntitlementChecks.Inc()
	if !res.Allowed {
		m.EntitlementDenied.Inc()
	}
	return nil
}

func (m *MetricsExtension) OnEntitlementChanged(_ context.Context, _ plugin.EntitlementChange) error {
	m.EntitlementChanged.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Content and social hooks
// ──────────────────────────────────────────────────

func (m *MetricsExtension) OnPostCreated(_ context.Context, _ *post.Post) error {
	m.PostCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnReportCreated(_ context.Context, _ *moderation.Report) error {
	m.ReportCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnNotificationCreated(_ context.Context, _ *notification.Notification) error {
	m.NotificationCreated.Inc()
	return nil
}

func (m *MetricsExtension) OnMessageSent(_ context.Context, _ *message.Message, _ *message.Conversation) error {
	m.MessageSent.Inc()
	return nil
}

func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, _ error) error {
	m.OperationFailed.Inc()
	return nil
}

func major(m types.Money) float64 {
	return float64(m.Amount) / float64(types.Scale)
}
