package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/types"
)

func TestRecordFeeSplit(t *testing.T) {
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		gross   types.Money
		rate    types.Rate
		wantFee int64
		wantNet int64
	}{
		{"subscription 9.99 at 20%", types.USD(999), types.BasisPoints(2000), 19980, 79920},
		{"ppv 5.00 at 20%", types.USD(500), types.BasisPoints(2000), 10000, 40000},
		{"no fee", types.USD(500), 0, 0, 50000},
		{"full fee", types.USD(500), types.MaxRate, 50000, 0},
		{"12.5% of 0.01", types.USD(1), types.Percent(12.5), 13, 87},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings.Default()
			s.FeeRate = tt.rate

			txn, err := ledger.Record(ledger.Event{
				Creator:    id.NewProfileID(),
				Fan:        id.NewProfileID(),
				Type:       ledger.TypePPV,
				Gross:      tt.gross,
				PaymentRef: "mock_1",
			}, s, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if txn.Fee.Amount != tt.wantFee {
				t.Errorf("fee: got %d, want %d", txn.Fee.Amount, tt.wantFee)
			}
			if txn.Net.Amount != tt.wantNet {
				t.Errorf("net: got %d, want %d", txn.Net.Amount, tt.wantNet)
			}
			if !txn.Net.Add(txn.Fee).Equal(txn.Gross) {
				t.Errorf("net + fee != gross")
			}
			if txn.FeeRate != tt.rate {
				t.Errorf("fee rate: got %v, want %v", txn.FeeRate, tt.rate)
			}
			if !txn.CreatedAt.Equal(now) {
				t.Errorf("created_at: got %v, want %v", txn.CreatedAt, now)
			}
		})
	}
}

func TestRecordUsesSettingsNotAmbientState(t *testing.T) {
	ev := ledger.Event{Creator: id.NewProfileID(), Type: ledger.TypeTip, Gross: types.USD(1000), PaymentRef: "mock_2"}

	low := settings.Default()
	low.FeeRate = types.BasisPoints(1000)
	high := settings.Default()
	high.FeeRate = types.BasisPoints(3000)

	a, err := ledger.Record(ev, low, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ledger.Record(ev, high, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Fee.Equal(b.Fee) {
		t.Errorf("fees should differ per settings: %s vs %s", a.Fee, b.Fee)
	}
	if a.Fee.Amount != 10000 || b.Fee.Amount != 30000 {
		t.Errorf("fees: got %d and %d", a.Fee.Amount, b.Fee.Amount)
	}
}

func TestRecordRejects(t *testing.T) {
	creator := id.NewProfileID()
	valid := ledger.Event{Creator: creator, Type: ledger.TypeSubscription, Gross: types.USD(999), PaymentRef: "mock_3"}

	tests := []struct {
		name     string
		mutate   func(ev *ledger.Event)
		settings *settings.Settings
		wantErr  error
	}{
		{"invalid type", func(ev *ledger.Event) { ev.Type = "refund" }, settings.Default(), ledger.ErrInvalidType},
		{"missing creator", func(ev *ledger.Event) { ev.Creator = id.Nil }, settings.Default(), ledger.ErrMissingCreator},
		{"zero amount", func(ev *ledger.Event) { ev.Gross = types.USD(0) }, settings.Default(), ledger.ErrNonPositiveAmount},
		{"negative amount", func(ev *ledger.Event) { ev.Gross = types.USD(-1) }, settings.Default(), ledger.ErrNonPositiveAmount},
		{"wrong currency", func(ev *ledger.Event) { ev.Gross = types.EUR(999) }, settings.Default(), ledger.ErrCurrencyMismatch},
		{"missing payment ref", func(ev *ledger.Event) { ev.PaymentRef = "" }, settings.Default(), ledger.ErrMissingPaymentRef},
		{"nil settings", func(*ledger.Event) {}, nil, ledger.ErrSettingsRequired},
		{"bad fee rate", func(*ledger.Event) {}, &settings.Settings{FeeRate: types.MaxRate + 1, Currency: "usd"}, ledger.ErrInvalidFeeRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			if _, err := ledger.Record(ev, tt.settings, time.Now()); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
