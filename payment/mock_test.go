package payment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/payment"
	"github.com/xraph/patron/types"
)

func TestMockCharge(t *testing.T) {
	ctx := context.Background()
	m := payment.NewMock()

	r, err := m.Charge(ctx, payment.Charge{Payer: id.NewProfileID(), Amount: types.USD(500)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Reference != "mock_1" || !r.Amount.Equal(types.USD(500)) {
		t.Errorf("unexpected receipt: %+v", r)
	}

	if _, err := m.Charge(ctx, payment.Charge{Amount: types.USD(0)}); !errors.Is(err, payment.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMockIdempotency(t *testing.T) {
	ctx := context.Background()
	m := payment.NewMock()
	c := payment.Charge{IdempotencyKey: "ppv:a:b", Amount: types.USD(500)}

	first, err := m.Charge(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Charge(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Reference != second.Reference {
		t.Errorf("same key must return the same receipt: %s != %s", first.Reference, second.Reference)
	}
	if n := len(m.Charges()); n != 1 {
		t.Errorf("expected one capture, got %d", n)
	}

	// A refunded charge no longer satisfies the key.
	if err := m.Refund(ctx, first.Reference); err != nil {
		t.Fatalf("refund: %v", err)
	}
	third, err := m.Charge(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Reference == first.Reference {
		t.Error("refunded receipt reused")
	}
}

func TestMockDecline(t *testing.T) {
	boom := errors.New("insufficient funds")
	m := payment.NewMock()
	m.Decide = func(payment.Charge) error { return boom }

	_, err := m.Charge(context.Background(), payment.Charge{Amount: types.USD(100)})
	if !errors.Is(err, payment.ErrDeclined) || !errors.Is(err, boom) {
		t.Errorf("expected declined wrapping cause, got %v", err)
	}
	if len(m.Charges()) != 0 {
		t.Error("declined charge recorded")
	}
}

func TestMockRefund(t *testing.T) {
	ctx := context.Background()
	m := payment.NewMock()

	if err := m.Refund(ctx, "mock_404"); !errors.Is(err, payment.ErrUnknownCharge) {
		t.Errorf("expected ErrUnknownCharge, got %v", err)
	}

	r, _ := m.Charge(ctx, payment.Charge{Amount: types.USD(100)})
	if err := m.Refund(ctx, r.Reference); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if !m.Refunded(r.Reference) {
		t.Error("expected refunded")
	}
	if err := m.Refund(ctx, r.Reference); !errors.Is(err, payment.ErrAlreadyRefunded) {
		t.Errorf("expected ErrAlreadyRefunded, got %v", err)
	}
}
