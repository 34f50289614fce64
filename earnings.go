package patron

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/patron/earnings"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/profile"
)

// ──────────────────────────────────────────────────
// Earnings
// ──────────────────────────────────────────────────

// Earnings summarizes a creator's ledger as of asOf. Only the creator and
// admins may read it.
func (p *Patron) Earnings(ctx context.Context, creatorID id.ProfileID, asOf time.Time) (*earnings.Summary, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.Equal(creatorID) {
		if err := p.requireRole(ctx, caller, profile.RoleAdmin); err != nil {
			return nil, err
		}
	}
	if asOf.IsZero() {
		asOf = p.now()
	}

	var (
		txns        []*ledger.Transaction
		subscribers int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txns, err = p.store.ListTransactions(gctx, creatorID, ledger.ListOpts{})
		return err
	})
	g.Go(func() error {
		var err error
		subscribers, err = p.store.CountEntitledSubscribers(gctx, creatorID, asOf)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := earnings.Summarize(creatorID, txns, subscribers, asOf)
	return &summary, nil
}

// Transactions returns the ledger entries of the calling creator.
func (p *Patron) Transactions(ctx context.Context, opts ledger.ListOpts) ([]*ledger.Transaction, error) {
	creator, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.store.ListTransactions(ctx, creator, opts)
}
