package mongo

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/settings"
)

// ==================== Profile Store ====================

func (s *Store) CreateProfile(ctx context.Context, p *profile.Profile) error {
	_, err := s.mdb.NewInsert(toProfileModel(p)).Exec(ctx)
	return wrap("create profile", err)
}

func (s *Store) GetProfile(ctx context.Context, profileID id.ProfileID) (*profile.Profile, error) {
	return findOne(ctx, s.mdb, "get profile", patron.ErrProfileNotFound,
		bson.M{"_id": profileID.String()}, fromProfileModel)
}

func (s *Store) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	key := usernameKey(username)
	if key == nil {
		return nil, patron.ErrProfileNotFound
	}
	return findOne(ctx, s.mdb, "get profile by username", patron.ErrProfileNotFound,
		bson.M{"username_key": *key}, fromProfileModel)
}

func (s *Store) UpdateProfile(ctx context.Context, p *profile.Profile) error {
	m := toProfileModel(p)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	return matched(res, err, "update profile", patron.ErrProfileNotFound)
}

func (s *Store) ListProfiles(ctx context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	return findMany(ctx, s.mdb, "list profiles", bson.M{}, newestFirst, opts.Limit, opts.Offset, fromProfileModel)
}

// SearchCreators joins each profile to its roles and keeps creators whose
// username or display name contains query, ignoring case.
func (s *Store) SearchCreators(ctx context.Context, query string, opts profile.ListOpts) ([]*profile.Profile, error) {
	match := bson.M{"roles.role": string(profile.RoleCreator)}
	if query = strings.TrimSpace(query); query != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
		match["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"display_name": pattern},
		}
	}

	q := s.mdb.NewAggregate(colProfiles).
		Lookup(bson.M{"from": colRoles, "localField": "_id", "foreignField": "profile_id", "as": "roles"}).
		Match(match).
		Project(bson.M{"roles": 0}).
		Sort(newestFirst)
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	var models []profileModel
	if err := q.Scan(ctx, &models); err != nil {
		return nil, wrap("search creators", err)
	}
	return fromModels("search creators", models, fromProfileModel)
}

func (s *Store) GrantRole(ctx context.Context, ra *profile.RoleAssignment) error {
	n, err := s.mdb.NewFind((*profileModel)(nil)).Filter(bson.M{"_id": ra.ProfileID.String()}).Count(ctx)
	if err != nil {
		return wrap("grant role", err)
	}
	if n == 0 {
		return patron.ErrProfileNotFound
	}
	_, err = s.mdb.NewInsert(toRoleModel(ra)).Exec(ctx)
	return wrap("grant role", err)
}

func (s *Store) ListRoles(ctx context.Context, profileID id.ProfileID) ([]profile.Role, error) {
	var models []roleModel
	if err := s.mdb.NewFind(&models).Filter(bson.M{"profile_id": profileID.String()}).Scan(ctx); err != nil {
		return nil, wrap("list roles", err)
	}
	roles := make([]profile.Role, 0, len(models))
	for _, m := range models {
		roles = append(roles, profile.Role(m.Role))
	}
	slices.Sort(roles)
	return roles, nil
}

func (s *Store) HasRole(ctx context.Context, profileID id.ProfileID, role profile.Role) (bool, error) {
	n, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(bson.M{"profile_id": profileID.String(), "role": string(role)}).
		Count(ctx)
	if err != nil {
		return false, wrap("has role", err)
	}
	return n > 0, nil
}

// ==================== Settings Store ====================

func (s *Store) GetSettings(ctx context.Context) (*settings.Settings, error) {
	return findOne(ctx, s.mdb, "get settings", patron.ErrSettingsNotFound,
		bson.M{"_id": settingsDocID}, fromSettingsModel)
}

func (s *Store) PutSettings(ctx context.Context, ps *settings.Settings) error {
	_, err := s.mdb.NewUpdate(toSettingsModel(ps)).
		Filter(bson.M{"_id": settingsDocID}).
		Upsert().
		Exec(ctx)
	return wrap("put settings", err)
}
