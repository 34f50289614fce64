package patron

import (
	"context"
	"fmt"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Tips
// ──────────────────────────────────────────────────

// Tip sends amount from the caller to a creator.
func (p *Patron) Tip(ctx context.Context, creatorID id.ProfileID, amount types.Money, message string) (*tip.Tip, error) {
	fan, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now()
	t, err := tip.New(fan, creatorID, amount, message, now)
	if err != nil {
		return nil, invalid("tip", err)
	}
	if _, err := p.requireCreator(ctx, creatorID); err != nil {
		return nil, err
	}
	st, err := p.currentSettings(ctx, p.store)
	if err != nil {
		return nil, err
	}
	if amount.Currency != st.Currency {
		return nil, invalid("amount", fmt.Errorf("%w: %s", ledger.ErrCurrencyMismatch, amount.Currency))
	}

	receipt, err := p.payments.Charge(ctx, payment.Charge{
		IdempotencyKey: "tip:" + t.ID.String(),
		Payer:          fan,
		Payee:          creatorID,
		Amount:         amount,
		Description:    "tip " + creatorID.String(),
	})
	if err != nil {
		return nil, p.fail(ctx, "tip", fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}
	t.PaymentRef = receipt.Reference

	var txn *ledger.Transaction
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateTip(ctx, t); err != nil {
			return err
		}
		var err error
		txn, err = p.record(ctx, tx, ledger.Event{
			Creator:    creatorID,
			Fan:        fan,
			Type:       ledger.TypeTip,
			Gross:      amount,
			Source:     t.ID,
			PaymentRef: receipt.Reference,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		p.refund(ctx, receipt.Reference, err)
		return nil, p.fail(ctx, "tip", err)
	}

	p.plugins.EmitTipSent(ctx, t)
	p.plugins.EmitTransactionRecorded(ctx, txn)
	p.notify(ctx, creatorID, notification.TypeTipReceived, "Tip received "+amount.String(), t.Message, t.ID)

	return t, nil
}

// ListTips returns the most recent tips received by the calling creator.
func (p *Patron) ListTips(ctx context.Context, limit int) ([]*tip.Tip, error) {
	creator, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.store.ListTipsByCreator(ctx, creator, limit)
}
