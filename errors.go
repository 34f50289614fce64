package patron

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound         = errors.New("patron: not found")
	ErrAlreadyExists    = errors.New("patron: already exists")
	ErrInvalidInput     = errors.New("patron: invalid input")
	ErrInvalidState     = errors.New("patron: invalid state")
	ErrNotAuthenticated = errors.New("patron: not authenticated")
	ErrPermissionDenied = errors.New("patron: permission denied")

	// Profile errors
	ErrProfileNotFound = errors.New("patron: profile not found")
	ErrNotCreator      = errors.New("patron: profile is not a creator")
	ErrUsernameTaken   = errors.New("patron: username already taken")
	ErrPriceOutOfRange = errors.New("patron: subscription price outside platform bounds")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("patron: subscription not found")
	ErrNoActiveSubscription = errors.New("patron: no active subscription")
	ErrAlreadySubscribed    = errors.New("patron: already subscribed")
	ErrSelfSubscription     = errors.New("patron: cannot subscribe to yourself")

	// Content errors
	ErrPostNotFound = errors.New("patron: post not found")
	ErrNotPPV       = errors.New("patron: post is not pay-per-view")

	// Purchase and payment errors
	ErrPurchaseNotFound = errors.New("patron: purchase not found")
	ErrAlreadyPurchased = errors.New("patron: already purchased")
	ErrPaymentFailed    = errors.New("patron: payment failed")

	// Moderation errors
	ErrReportNotFound = errors.New("patron: report not found")

	// Messaging errors
	ErrConversationNotFound = errors.New("patron: conversation not found")
	ErrNotificationNotFound = errors.New("patron: notification not found")

	// Settings errors
	ErrSettingsNotFound = errors.New("patron: settings not found")
	ErrCurrencyLocked   = errors.New("patron: platform currency cannot change once profiles exist")

	// Store errors
	ErrStoreNotReady     = errors.New("patron: store not ready")
	ErrStoreClosed       = errors.New("patron: store is closed")
	ErrTransactionFailed = errors.New("patron: transaction failed")
	ErrMigrationFailed   = errors.New("patron: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("patron: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match both ErrInvalidInput and the underlying cause.
func (e ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

func invalid(field string, err error) error {
	return ValidationError{Field: field, Message: err.Error(), Err: err}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrNoActiveSubscription) ||
		errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrSettingsNotFound)
}

// IsAlreadyExists returns true if the error reports a uniqueness conflict.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrAlreadyPurchased) ||
		errors.Is(err, ErrUsernameTaken)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
