package audithook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/types"
)

type sink struct {
	events []*AuditEvent
	err    error
}

func (s *sink) Record(_ context.Context, ev *AuditEvent) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestTransactionRecorded(t *testing.T) {
	s := &sink{}
	e := New(s)
	admin := id.NewProfileID()
	ctx := auth.WithProfile(context.Background(), admin)

	txn := &ledger.Transaction{
		ID:      id.NewTransactionID(),
		Type:    ledger.TypeTip,
		Gross:   types.USD(1000),
		Fee:     types.USD(200),
		Net:     types.USD(800),
		FeeRate: types.BasisPoints(2000),
	}
	require.NoError(t, e.OnTransactionRecorded(ctx, txn))

	require.Len(t, s.events, 1)
	ev := s.events[0]
	assert.Equal(t, ActionTransactionRecorded, ev.Action)
	assert.Equal(t, txn.ID.String(), ev.ResourceID)
	assert.Equal(t, admin.String(), ev.ActorID)
	assert.Equal(t, "tip", ev.Metadata["type"])
	assert.Equal(t, "$8.00", ev.Metadata["net"])
	assert.Equal(t, int64(2000), ev.Metadata["fee_rate_bps"])
}

func TestOnlyDenialsAreAudited(t *testing.T) {
	s := &sink{}
	e := New(s)
	ctx := context.Background()

	require.NoError(t, e.OnEntitlementChecked(ctx, &entitlement.Result{Allowed: true}))
	require.NoError(t, e.OnEntitlementChecked(ctx, &entitlement.Result{Reason: entitlement.ReasonNeedsPurchase}))

	require.Len(t, s.events, 1)
	assert.Equal(t, ActionEntitlementDenied, s.events[0].Action)
	assert.Equal(t, OutcomeFailure, s.events[0].Outcome)
	assert.Empty(t, s.events[0].ActorID)
}

func TestRefundCarriesCause(t *testing.T) {
	s := &sink{}
	require.NoError(t, New(s).OnPaymentRefunded(context.Background(), "mock_7", errors.New("disk full")))

	require.Len(t, s.events, 1)
	assert.Equal(t, SeverityCritical, s.events[0].Severity)
	assert.Equal(t, "mock_7", s.events[0].ResourceID)
	assert.Equal(t, "disk full", s.events[0].Reason)
}

func TestActionFilters(t *testing.T) {
	report := &moderation.Report{ID: id.NewReportID(), Status: moderation.StatusReviewed}
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		s := &sink{}
		e := New(s, WithEnabledActions(ActionReportCreated))
		require.NoError(t, e.OnReportCreated(ctx, report))
		require.NoError(t, e.OnReportTransitioned(ctx, report, moderation.StatusPending))
		require.Len(t, s.events, 1)
		assert.Equal(t, ActionReportCreated, s.events[0].Action)
	})

	t.Run("disabled", func(t *testing.T) {
		s := &sink{}
		e := New(s, WithDisabledActions(ActionReportCreated))
		require.NoError(t, e.OnReportCreated(ctx, report))
		require.NoError(t, e.OnReportTransitioned(ctx, report, moderation.StatusPending))
		require.Len(t, s.events, 1)
		assert.Equal(t, "pending", s.events[0].Metadata["from"])
		assert.Equal(t, "reviewed", s.events[0].Metadata["to"])
	})
}

func TestRecorderErrorIsSwallowed(t *testing.T) {
	s := &sink{err: errors.New("down")}
	report := &moderation.Report{ID: id.NewReportID()}
	assert.NoError(t, New(s).OnReportCreated(context.Background(), report))
	assert.Len(t, s.events, 1)
}
