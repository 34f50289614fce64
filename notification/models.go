// Package notification defines in-app notifications and the ordering helper
// that keeps per-recipient timestamps non-decreasing.
package notification

import (
	"time"

	"github.com/xraph/patron/id"
)

type Type string

const (
	TypeNewPost         Type = "new_post"
	TypeNewMessage      Type = "new_message"
	TypeNewSubscription Type = "new_subscription"
	TypeTipReceived     Type = "tip_received"
	TypePPVPurchased    Type = "ppv_purchased"
)

// DefaultLimit is the page size used when listing notifications without a limit.
const DefaultLimit = 50

type Notification struct {
	ID          id.NotificationID `json:"id"`
	RecipientID id.ProfileID      `json:"recipient_id"`
	Type        Type              `json:"type"`
	Title       string            `json:"title"`
	Message     string            `json:"message,omitempty"`
	RelatedID   id.ID             `json:"related_id,omitempty"`
	Read        bool              `json:"read"`
	CreatedAt   time.Time         `json:"created_at"`
}
