package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated  = "subscription.created"
	ActionSubscriptionCanceled = "subscription.canceled"
	ActionSubscriptionExpired  = "subscription.expired"
	ActionSubscriptionRenewed  = "subscription.renewed"

	// Monetization actions
	ActionPurchaseCompleted   = "purchase.completed"
	ActionTipSent             = "tip.sent"
	ActionTransactionRecorded = "transaction.recorded"
	ActionPaymentRefunded     = "payment.refunded"

	// Access actions
	ActionEntitlementDenied = "entitlement.denied"
	ActionRoleGranted       = "role.granted"

	// Admin actions
	ActionSettingsUpdated    = "settings.updated"
	ActionReportCreated      = "report.created"
	ActionReportTransitioned = "report.transitioned"
	ActionPostDeleted        = "post.deleted"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourcePurchase     = "purchase"
	ResourceTip          = "tip"
	ResourceTransaction  = "transaction"
	ResourcePayment      = "payment"
	ResourcePost         = "post"
	ResourceProfile      = "profile"
	ResourceSettings     = "settings"
	ResourceReport       = "report"
)

// Category constants for audit events.
const (
	CategorySubscription = "subscription"
	CategoryPayment      = "payment"
	CategoryAccess       = "access"
	CategoryAdmin        = "admin"
	CategoryModeration   = "moderation"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
