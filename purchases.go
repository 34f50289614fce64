package patron

import (
	"context"
	"fmt"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/plugin"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/store"
)

// ──────────────────────────────────────────────────
// Pay-per-view
// ──────────────────────────────────────────────────

type purchaseOutcome struct {
	purchase *purchase.Purchase
	created  bool
}

// Purchase unlocks a pay-per-view post for the caller. An existing purchase
// is returned without charging again, with created set to false.
func (p *Patron) Purchase(ctx context.Context, postID id.PostID) (*purchase.Purchase, bool, error) {
	fan, err := p.caller(ctx)
	if err != nil {
		return nil, false, err
	}

	pst, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	if !pst.IsPPV() {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidState, ErrNotPPV)
	}
	if pst.CreatorID.Equal(fan) {
		return nil, false, fmt.Errorf("%w: owner already has access", ErrInvalidState)
	}

	if existing, err := p.store.GetPurchase(ctx, fan, postID); err == nil {
		return existing, false, nil
	} else if !IsNotFound(err) {
		return nil, false, err
	}

	key := purchase.IdempotencyKey(fan, postID)
	// Do reports shared to the leader as well once a duplicate joined, so
	// only the caller whose function ran may claim the creation.
	leader := false
	v, err, _ := p.flights.Do(key, func() (any, error) {
		leader = true
		return p.purchase(ctx, fan, pst, key)
	})
	if err != nil {
		return nil, false, err
	}
	out := v.(*purchaseOutcome) //nolint:forcetypeassert // the flight only returns *purchaseOutcome
	return out.purchase, out.created && leader, nil
}

// purchase charges and records one unlock. Calls for the same key are
// collapsed by the caller; the store lock covers other processes.
func (p *Patron) purchase(ctx context.Context, fan id.ProfileID, pst *post.Post, key string) (*purchaseOutcome, error) {
	receipt, err := p.payments.Charge(ctx, payment.Charge{
		IdempotencyKey: key,
		Payer:          fan,
		Payee:          pst.CreatorID,
		Amount:         pst.PPVPrice,
		Description:    "unlock " + pst.ID.String(),
	})
	if err != nil {
		return nil, p.fail(ctx, "purchase", fmt.Errorf("%w: %w", ErrPaymentFailed, err))
	}

	now := p.now()
	var (
		existing *purchase.Purchase
		pur      *purchase.Purchase
		txn      *ledger.Transaction
	)
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		existing, pur, txn = nil, nil, nil

		if err := tx.Lock(ctx, key); err != nil {
			return err
		}
		found, err := tx.GetPurchase(ctx, fan, pst.ID)
		if err == nil {
			existing = found
			return nil
		}
		if !IsNotFound(err) {
			return err
		}

		pur = &purchase.Purchase{
			ID:         id.NewPurchaseID(),
			FanID:      fan,
			PostID:     pst.ID,
			CreatorID:  pst.CreatorID,
			Amount:     pst.PPVPrice,
			PaymentRef: receipt.Reference,
			CreatedAt:  now,
		}
		if err := tx.CreatePurchase(ctx, pur); err != nil {
			return err
		}

		txn, err = p.record(ctx, tx, ledger.Event{
			Creator:    pst.CreatorID,
			Fan:        fan,
			Type:       ledger.TypePPV,
			Gross:      pst.PPVPrice,
			Source:     pur.ID,
			PaymentRef: receipt.Reference,
		}, now)
		if err != nil {
			return err
		}
		return tx.AppendTransaction(ctx, txn)
	})

	if err != nil && IsAlreadyExists(err) {
		if found, getErr := p.store.GetPurchase(ctx, fan, pst.ID); getErr == nil {
			existing, pur, txn, err = found, nil, nil, nil
		}
	}
	if err != nil {
		p.refund(ctx, receipt.Reference, err)
		return nil, p.fail(ctx, "purchase", err)
	}
	if existing != nil {
		if existing.PaymentRef != receipt.Reference {
			p.refund(ctx, receipt.Reference, ErrAlreadyPurchased)
		}
		return &purchaseOutcome{purchase: existing}, nil
	}

	p.plugins.EmitPurchaseCompleted(ctx, pur)
	p.plugins.EmitTransactionRecorded(ctx, txn)
	p.invalidateViewer(ctx, fan)
	p.plugins.EmitEntitlementChanged(ctx, plugin.EntitlementChange{
		FanID:     fan,
		CreatorID: pst.CreatorID,
		PostID:    pst.ID,
		Cause:     "purchased",
	})
	p.notify(ctx, pst.CreatorID, notification.TypePPVPurchased, "Post unlocked", pst.PPVPrice.String(), pur.ID)

	p.logger.Debug("purchase completed",
		"purchase_id", pur.ID,
		"post_id", pst.ID,
		"fan_id", fan,
		"amount", pur.Amount.String(),
	)

	return &purchaseOutcome{purchase: pur, created: true}, nil
}

// HasAccess reports whether fanID has purchased postID.
func (p *Patron) HasAccess(ctx context.Context, fanID id.ProfileID, postID id.PostID) (bool, error) {
	if fanID.IsNil() {
		return false, nil
	}
	if _, err := p.store.GetPurchase(ctx, fanID, postID); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// HasPurchased is HasAccess under the name the entitlement model expects.
func (p *Patron) HasPurchased(ctx context.Context, fanID id.ProfileID, postID id.PostID) (bool, error) {
	return p.HasAccess(ctx, fanID, postID)
}

// ListPurchases returns the caller's purchases.
func (p *Patron) ListPurchases(ctx context.Context) ([]*purchase.Purchase, error) {
	fan, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.store.ListPurchasesByFan(ctx, fan)
}
