package patron

import (
	"context"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/notification"
)

// ──────────────────────────────────────────────────
// Notifications
// ──────────────────────────────────────────────────

// Notifications returns the caller's newest notifications. A non-positive
// limit uses the default of 50.
func (p *Patron) Notifications(ctx context.Context, limit int) ([]*notification.Notification, error) {
	recipient, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = p.notificationLimit
	}
	return p.store.ListNotifications(ctx, recipient, limit)
}

// UnreadCount returns how many of the caller's notifications are unread.
func (p *Patron) UnreadCount(ctx context.Context) (int64, error) {
	recipient, err := p.caller(ctx)
	if err != nil {
		return 0, err
	}
	return p.store.CountUnreadNotifications(ctx, recipient)
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (p *Patron) MarkNotificationRead(ctx context.Context, notificationID id.NotificationID) error {
	recipient, err := p.caller(ctx)
	if err != nil {
		return err
	}
	return p.store.MarkNotificationRead(ctx, recipient, notificationID)
}

// MarkAllNotificationsRead marks every notification of the caller as read and
// returns how many changed.
func (p *Patron) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	recipient, err := p.caller(ctx)
	if err != nil {
		return 0, err
	}
	return p.store.MarkAllNotificationsRead(ctx, recipient)
}
