// Package purchase defines one-time pay-per-view unlocks of a post.
package purchase

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// Purchase is unique per (FanID, PostID).
type Purchase struct {
	ID         id.PurchaseID `json:"id"`
	FanID      id.ProfileID  `json:"fan_id"`
	PostID     id.PostID     `json:"post_id"`
	CreatorID  id.ProfileID  `json:"creator_id"`
	Amount     types.Money   `json:"amount"`
	PaymentRef string        `json:"payment_ref"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IdempotencyKey is the deterministic key that identifies a fan's unlock of
// a post across retries and processes.
func IdempotencyKey(fanID id.ProfileID, postID id.PostID) string {
	return "ppv:" + fanID.String() + ":" + postID.String()
}
