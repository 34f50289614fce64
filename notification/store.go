package notification

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	// ListNotifications returns the recipient's notifications, newest first.
	ListNotifications(ctx context.Context, recipientID id.ProfileID, limit int) ([]*Notification, error)
	CountUnreadNotifications(ctx context.Context, recipientID id.ProfileID) (int64, error)
	MarkNotificationRead(ctx context.Context, recipientID id.ProfileID, notificationID id.NotificationID) error
	MarkAllNotificationsRead(ctx context.Context, recipientID id.ProfileID) (int64, error)
}
