package purchase

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	// CreatePurchase fails with an already-exists error on a duplicate (fan, post).
	CreatePurchase(ctx context.Context, p *Purchase) error
	GetPurchase(ctx context.Context, fanID id.ProfileID, postID id.PostID) (*Purchase, error)
	ListPurchasesByFan(ctx context.Context, fanID id.ProfileID) ([]*Purchase, error)
}
