package ledger

import (
	"context"
	"time"

	"github.com/xraph/patron/id"
)

// Store is append-only.
type Store interface {
	AppendTransaction(ctx context.Context, t *Transaction) error
	// ListTransactions returns a creator's transactions, newest first.
	ListTransactions(ctx context.Context, creatorID id.ProfileID, opts ListOpts) ([]*Transaction, error)
}

type ListOpts struct {
	Type  Type
	Since time.Time
	Limit int
}
