package tip_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/tip"
	"github.com/xraph/patron/types"
)

func TestNew(t *testing.T) {
	fan, creator := id.NewProfileID(), id.NewProfileID()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		fan     id.ProfileID
		amount  types.Money
		message string
		wantErr error
	}{
		{"valid", fan, types.USD(500), "  thanks  ", nil},
		{"zero amount", fan, types.USD(0), "", tip.ErrNonPositiveAmount},
		{"negative amount", fan, types.USD(-100), "", tip.ErrNonPositiveAmount},
		{"self", creator, types.USD(500), "", tip.ErrSelfTip},
		{"long message", fan, types.USD(500), strings.Repeat("x", tip.MaxMessageLength+1), tip.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tip.New(tt.fan, creator, tt.amount, tt.message, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Message != "thanks" {
				t.Errorf("message not trimmed: %q", got.Message)
			}
			if got.ID.Prefix() != id.PrefixTip {
				t.Errorf("unexpected id prefix %q", got.ID.Prefix())
			}
			if got.PaymentRef != "" {
				t.Errorf("payment ref should be empty before capture, got %q", got.PaymentRef)
			}
		})
	}
}
