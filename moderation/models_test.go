package moderation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/moderation"
)

func TestCanTransition(t *testing.T) {
	all := []moderation.Status{
		moderation.StatusPending,
		moderation.StatusReviewed,
		moderation.StatusResolved,
		moderation.StatusDismissed,
	}
	allowed := map[[2]moderation.Status]bool{
		{moderation.StatusPending, moderation.StatusReviewed}:   true,
		{moderation.StatusPending, moderation.StatusResolved}:   true,
		{moderation.StatusPending, moderation.StatusDismissed}:  true,
		{moderation.StatusReviewed, moderation.StatusResolved}:  true,
		{moderation.StatusReviewed, moderation.StatusDismissed}: true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				want := allowed[[2]moderation.Status{from, to}]
				if got := from.CanTransition(to); got != want {
					t.Errorf("CanTransition: got %v, want %v", got, want)
				}
			})
		}
	}
}

func TestTerminal(t *testing.T) {
	if !moderation.StatusResolved.Terminal() || !moderation.StatusDismissed.Terminal() {
		t.Error("resolved and dismissed are terminal")
	}
	if moderation.StatusPending.Terminal() || moderation.StatusReviewed.Terminal() {
		t.Error("pending and reviewed are not terminal")
	}
}

func TestNewReport(t *testing.T) {
	now := time.Now()
	reporter := id.NewProfileID()

	if _, err := moderation.NewReport(reporter, id.NewProfileID(), id.Nil, "  ", now); !errors.Is(err, moderation.ErrEmptyReason) {
		t.Errorf("expected ErrEmptyReason, got %v", err)
	}
	if _, err := moderation.NewReport(reporter, id.Nil, id.Nil, "spam", now); !errors.Is(err, moderation.ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}

	r, err := moderation.NewReport(reporter, id.Nil, id.NewPostID(), "spam", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != moderation.StatusPending {
		t.Errorf("new reports are pending, got %q", r.Status)
	}
}

func TestTransition(t *testing.T) {
	admin := id.NewProfileID()
	r, err := moderation.NewReport(id.NewProfileID(), id.NewProfileID(), id.Nil, "abuse", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Transition(moderation.StatusReviewed, admin, "looking", time.Now()); err != nil {
		t.Fatalf("pending -> reviewed: %v", err)
	}
	if err := r.Transition(moderation.StatusResolved, admin, "banned", time.Now()); err != nil {
		t.Fatalf("reviewed -> resolved: %v", err)
	}
	if r.AdminNotes != "banned" || !r.ReviewedBy.Equal(admin) {
		t.Errorf("unexpected report state: %+v", r)
	}

	err = r.Transition(moderation.StatusPending, admin, "", time.Now())
	if !errors.Is(err, moderation.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from terminal state, got %v", err)
	}
	if r.Status != moderation.StatusResolved {
		t.Errorf("failed transition changed status to %q", r.Status)
	}
}
