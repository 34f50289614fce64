package tip

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	CreateTip(ctx context.Context, t *Tip) error
	ListTipsByCreator(ctx context.Context, creatorID id.ProfileID, limit int) ([]*Tip, error)
}
