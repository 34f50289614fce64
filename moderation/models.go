// Package moderation defines user reports and the admin review state machine.
//
// Transitions:
//
//	pending  -> reviewed | resolved | dismissed
//	reviewed -> resolved | dismissed
//
// resolved and dismissed are terminal.
package moderation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

var (
	ErrInvalidTransition = errors.New("moderation: invalid status transition")
	ErrEmptyReason       = errors.New("moderation: reason is required")
	ErrNoTarget          = errors.New("moderation: a reported user or post is required")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

var transitions = map[Status][]Status{
	StatusPending:  {StatusReviewed, StatusResolved, StatusDismissed},
	StatusReviewed: {StatusResolved, StatusDismissed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusResolved, StatusDismissed:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusResolved || s == StatusDismissed }

// CanTransition reports whether a report in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Report struct {
	types.Entity
	ID             id.ReportID  `json:"id"`
	ReporterID     id.ProfileID `json:"reporter_id"`
	ReportedUserID id.ProfileID `json:"reported_user_id,omitempty"`
	ReportedPostID id.PostID    `json:"reported_post_id,omitempty"`
	Reason         string       `json:"reason"`
	Status         Status       `json:"status"`
	AdminNotes     string       `json:"admin_notes,omitempty"`
	ReviewedBy     id.ProfileID `json:"reviewed_by,omitempty"`
}

// NewReport builds a pending report.
func NewReport(reporter, user id.ProfileID, postID id.PostID, reason string, now time.Time) (*Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}
	if user.IsNil() && postID.IsNil() {
		return nil, ErrNoTarget
	}
	return &Report{
		Entity:         types.NewEntity(now),
		ID:             id.NewReportID(),
		ReporterID:     reporter,
		ReportedUserID: user,
		ReportedPostID: postID,
		Reason:         reason,
		Status:         StatusPending,
	}, nil
}

// Transition moves the report to next, recording the reviewer and notes.
func (r *Report) Transition(next Status, reviewer id.ProfileID, notes string, now time.Time) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.ReviewedBy = reviewer
	if notes != "" {
		r.AdminNotes = notes
	}
	r.Touch(now)
	return nil
}
