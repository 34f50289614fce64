package postgres

import (
	"context"
	"strings"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/settings"
)

// ==================== Profile Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	_, err := s.q.NewInsert(toProfileModel(p)).Exec(ctx)
	return wrap("create profile", err)
}

func (s *Store) GetProfile(ctx context.Context, profileID id.ProfileID) (*profile.Profile, error) {
	m := new(profileModel)
	q := s.q.NewSelect(m).Where("id = $1", profileID.String())
	if err := scanOne(ctx, q, "get profile", patron.ErrProfileNotFound); err != nil {
		return nil, err
	}
	return fromProfileModel(m)
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	m := new(profileModel)
	q := s.q.NewSelect(m).Where("lower(username) = lower($1)", username)
	if err := scanOne(ctx, q, "get profile by username", patron.ErrProfileNotFound); err != nil {
		return nil, err
	}
	return fromProfileModel(m)
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	res, err := s.q.NewUpdate(toProfileModel(p)).WherePK().Exec(ctx)
	return affected("update profile", patron.ErrProfileNotFound, res, err)
}

func (s *Store) ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	var models []profileModel
	q := s.q.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("list profiles", err)
	}
	return fromModels(models, fromProfileModel)
}

// likeEscaper quotes LIKE wildcards so the query matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchCreators(ctx context.Context, query string, opts profile.ListOpts) ([]*profile.Profile, error) {
	var models []profileModel
	q := s.q.NewSelect(&models).
		Where("EXISTS (SELECT 1 FROM patron_roles r WHERE r.profile_id = patron_profiles.id AND r.role = $1)", string(profile.RoleCreator))
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + likeEscaper.Replace(query) + "%"
		q = q.Where("(username ILIKE $2 OR display_name ILIKE $2)", pattern)
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("search creators", err)
	}
	return fromModels(models, fromProfileModel)
}

func (s *Store) GrantRole(ctx context.Context, ra *profile.RoleAssignment) error {
	n, err := s.q.NewSelect((*profileModel)(nil)).Where("id = $1", ra.ProfileID.String()).Count(ctx)
	if err != nil {
		return wrap("grant role", err)
	}
	if n == 0 {
		return patron.ErrProfileNotFound
	}
	_, err = s.q.NewInsert(&roleModel{
		ProfileID: ra.ProfileID.String(),
		Role:      string(ra.Role),
		GrantedAt: ra.GrantedAt,
	}).Exec(ctx)
	return wrap("grant role", err)
}

func (s *Store) ListRoles(ctx context.Context, profileID id.ProfileID) ([]profile.Role, error) {
	var models []roleModel
	err := s.q.NewSelect(&models).
		Where("profile_id = $1", profileID.String()).
		OrderExpr("role").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list roles", err)
	}
	var roles []profile.Role
	for _, m := range models {
		roles = append(roles, profile.Role(m.Role))
	}
	return roles, nil
}

func (s *Store) HasRole(ctx context.Context, profileID id.ProfileID, role profile.Role) (bool, error) {
	n, err := s.q.NewSelect((*roleModel)(nil)).
		Where("profile_id = $1", profileID.String()).
		Where("role = $2", string(role)).
		Count(ctx)
	if err != nil {
		return false, wrap("has role", err)
	}
	return n > 0, nil
}

// ==================== Settings Store ====================

func (s *Store) GetSettings(ctx context.Context) (*settings.Settings, error) {
	m := new(settingsModel)
	q := s.q.NewSelect(m).Where("singleton")
	if err := scanOne(ctx, q, "get settings", patron.ErrSettingsNotFound); err != nil {
		return nil, err
	}
	return fromSettingsModel(m)
}

func (s *Store) PutSettings(ctx context.Context, ps *settings.Settings) error {
	_, err := s.q.NewInsert(toSettingsModel(ps)).
		OnConflict("(singleton) DO UPDATE").
		Set("fee_rate = EXCLUDED.fee_rate").
		Set("min_subscription_price = EXCLUDED.min_subscription_price").
		Set("max_subscription_price = EXCLUDED.max_subscription_price").
		Set("currency = EXCLUDED.currency").
		Set("updated_at = EXCLUDED.updated_at").
		Set("updated_by = EXCLUDED.updated_by").
		Exec(ctx)
	return wrap("put settings", err)
}
