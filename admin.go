package patron

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/store"
)

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

// BecomeCreator grants the caller the creator role. Calling it again is a no-op.
func (p *Patron) BecomeCreator(ctx context.Context) (*profile.RoleAssignment, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	return p.grant(ctx, caller, profile.RoleCreator)
}

// GrantRole grants role to a profile. Only admins may call it.
func (p *Patron) GrantRole(ctx context.Context, profileID id.ProfileID, role profile.Role) (*profile.RoleAssignment, error) {
	if _, err := p.requireCaller(ctx, profile.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	return p.grant(ctx, profileID, role)
}

func (p *Patron) grant(ctx context.Context, profileID id.ProfileID, role profile.Role) (*profile.RoleAssignment, error) {
	ra := &profile.RoleAssignment{ProfileID: profileID, Role: role, GrantedAt: p.now()}
	if err := p.store.GrantRole(ctx, ra); err != nil {
		if IsAlreadyExists(err) {
			return ra, nil
		}
		return nil, err
	}
	p.plugins.EmitRoleGranted(ctx, ra)
	p.logger.Info("role granted", "profile_id", profileID, "role", role)
	return ra, nil
}

// ListProfiles returns every profile newest first. Only admins may call it.
func (p *Patron) ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	if _, err := p.requireCaller(ctx, profile.RoleAdmin); err != nil {
		return nil, err
	}
	return p.store.ListProfiles(ctx, opts)
}

// Roles returns the roles held by a profile.
func (p *Patron) Roles(ctx context.Context, profileID id.ProfileID) ([]profile.Role, error) {
	return p.store.ListRoles(ctx, profileID)
}

// ──────────────────────────────────────────────────
// Moderation
// ──────────────────────────────────────────────────

// ReportDraft is the input to CreateReport. At least one of UserID and
// PostID is required.
type ReportDraft struct {
	UserID id.ProfileID
	PostID id.PostID
	Reason string
}

// CreateReport files a moderation report from the caller.
func (p *Patron) CreateReport(ctx context.Context, draft ReportDraft) (*moderation.Report, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := moderation.NewReport(caller, draft.UserID, draft.PostID, draft.Reason, p.now())
	if err != nil {
		return nil, invalid("report", err)
	}
	if !r.ReportedUserID.IsNil() {
		if _, err := p.store.GetProfile(ctx, r.ReportedUserID); err != nil {
			return nil, err
		}
	}
	if !r.ReportedPostID.IsNil() {
		if _, err := p.store.GetPost(ctx, r.ReportedPostID); err != nil {
			return nil, err
		}
	}
	if err := p.store.CreateReport(ctx, r); err != nil {
		return nil, err
	}

	p.plugins.EmitReportCreated(ctx, r)
	return r, nil
}

// TransitionReport moves a report to status. Only admins may call it.
func (p *Patron) TransitionReport(ctx context.Context, reportID id.ReportID, status moderation.Status, notes string) (*moderation.Report, error) {
	admin, err := p.requireCaller(ctx, profile.RoleAdmin)
	if err != nil {
		return nil, err
	}

	now := p.now()
	var (
		r    *moderation.Report
		from moderation.Status
	)
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		r, err = tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		from = r.Status
		if err := r.Transition(status, admin, notes, now); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		return tx.UpdateReport(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	p.plugins.EmitReportTransitioned(ctx, r, from)
	return r, nil
}

// ListReports returns moderation reports. Only admins may call it.
func (p *Patron) ListReports(ctx context.Context, opts moderation.ListOpts) ([]*moderation.Report, error) {
	if _, err := p.requireCaller(ctx, profile.RoleAdmin); err != nil {
		return nil, err
	}
	return p.store.ListReports(ctx, opts)
}

// ──────────────────────────────────────────────────
// Platform settings
// ──────────────────────────────────────────────────

// Settings returns the platform settings.
func (p *Patron) Settings(ctx context.Context) (*settings.Settings, error) {
	return p.currentSettings(ctx, p.store)
}

// UpdateSettings replaces the platform settings. Only admins may call it.
// Transactions already recorded keep the fee they were recorded with. The
// currency is fixed once any profile exists, since prices and ledger entries
// are denominated in it.
func (p *Patron) UpdateSettings(ctx context.Context, s *settings.Settings) (*settings.Settings, error) {
	admin, err := p.requireCaller(ctx, profile.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ValidationError{Field: "settings", Message: "settings are required"}
	}
	updated := *s
	if err := updated.Validate(); err != nil {
		return nil, invalid("settings", err)
	}
	updated.UpdatedAt = p.now()
	updated.UpdatedBy = admin

	var old *settings.Settings
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		old, err = p.currentSettings(ctx, tx)
		if err != nil {
			return err
		}
		if !strings.EqualFold(old.Currency, updated.Currency) {
			existing, err := tx.ListProfiles(ctx, profile.ListOpts{Limit: 1})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: %w", ErrInvalidState, ErrCurrencyLocked)
			}
		}
		return tx.PutSettings(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}

	p.plugins.EmitSettingsUpdated(ctx, old, &updated)
	p.logger.Info("platform settings updated",
		"fee_rate", updated.FeeRate.String(),
		"min_price", updated.MinSubscriptionPrice.String(),
		"max_price", updated.MaxSubscriptionPrice.String(),
		"updated_by", admin,
	)
	return &updated, nil
}
