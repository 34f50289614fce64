package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/settings"
)

func cloneProfile(p *profile.Profile) *profile.Profile {
	c := clone(p)
	if p.DateOfBirth != nil {
		c.DateOfBirth = clone(p.DateOfBirth)
	}
	return c
}

// Profile Store implementation
func (s *Store) CreateProfile(_ context.Context, p *profile.Profile) error {
	return s.write(func(st *state) error {
		key := p.ID.String()
		if _, exists := st.profiles[key]; exists {
			return fmt.Errorf("%w: profile %s", patron.ErrAlreadyExists, key)
		}
		if p.Username != "" {
			if _, taken := st.usernames[strings.ToLower(p.Username)]; taken {
				return patron.ErrUsernameTaken
			}
			st.usernames[strings.ToLower(p.Username)] = key
		}
		st.profiles[key] = cloneProfile(p)
		return nil
	})
}

func (s *Store) GetProfile(_ context.Context, profileID id.ProfileID) (*profile.Profile, error) {
	var out *profile.Profile
	err := s.read(func(st *state) error {
		p, ok := st.profiles[profileID.String()]
		if !ok {
			return patron.ErrProfileNotFound
		}
		out = cloneProfile(p)
		return nil
	})
	return out, err
}

func (s *Store) GetProfileByUsername(_ context.Context, username string) (*profile.Profile, error) {
	var out *profile.Profile
	err := s.read(func(st *state) error {
		key, ok := st.usernames[strings.ToLower(username)]
		if !ok {
			return patron.ErrProfileNotFound
		}
		out = cloneProfile(st.profiles[key])
		return nil
	})
	return out, err
}

func (s *Store) UpdateProfile(_ context.Context, p *profile.Profile) error {
	return s.write(func(st *state) error {
		key := p.ID.String()
		existing, ok := st.profiles[key]
		if !ok {
			return patron.ErrProfileNotFound
		}
		if !strings.EqualFold(existing.Username, p.Username) {
			if p.Username != "" {
				if owner, taken := st.usernames[strings.ToLower(p.Username)]; taken && owner != key {
					return patron.ErrUsernameTaken
				}
				st.usernames[strings.ToLower(p.Username)] = key
			}
			if existing.Username != "" {
				delete(st.usernames, strings.ToLower(existing.Username))
			}
		}
		st.profiles[key] = cloneProfile(p)
		return nil
	})
}

func (s *Store) ListProfiles(_ context.Context, opts profile.ListOpts) ([]*profile.Profile, error) {
	var out []*profile.Profile
	err := s.read(func(st *state) error {
		for _, p := range st.profiles {
			out = append(out, cloneProfile(p))
		}
		return nil
	})
	newestFirst(out, profileOrder)
	return page(out, opts.Limit, opts.Offset), err
}

func (s *Store) SearchCreators(_ context.Context, query string, opts profile.ListOpts) ([]*profile.Profile, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []*profile.Profile
	err := s.read(func(st *state) error {
		for key, p := range st.profiles {
			if _, ok := st.roles[key][profile.RoleCreator]; !ok {
				continue
			}
			if q != "" &&
				!strings.Contains(strings.ToLower(p.Username), q) &&
				!strings.Contains(strings.ToLower(p.DisplayName), q) {
				continue
			}
			out = append(out, cloneProfile(p))
		}
		return nil
	})
	newestFirst(out, profileOrder)
	return page(out, opts.Limit, opts.Offset), err
}

func profileOrder(p *profile.Profile) (int64, string) { return p.CreatedAt.UnixNano(), p.ID.String() }

func (s *Store) GrantRole(_ context.Context, ra *profile.RoleAssignment) error {
	return s.write(func(st *state) error {
		key := ra.ProfileID.String()
		if _, ok := st.profiles[key]; !ok {
			return patron.ErrProfileNotFound
		}
		roles := maps.Clone(st.roles[key])
		if roles == nil {
			roles = make(map[profile.Role]time.Time)
		}
		if _, exists := roles[ra.Role]; exists {
			return fmt.Errorf("%w: role %s for %s", patron.ErrAlreadyExists, ra.Role, key)
		}
		roles[ra.Role] = ra.GrantedAt
		st.roles[key] = roles
		return nil
	})
}

func (s *Store) ListRoles(_ context.Context, profileID id.ProfileID) ([]profile.Role, error) {
	var out []profile.Role
	err := s.read(func(st *state) error {
		for r := range st.roles[profileID.String()] {
			out = append(out, r)
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

func (s *Store) HasRole(_ context.Context, profileID id.ProfileID, role profile.Role) (bool, error) {
	var ok bool
	err := s.read(func(st *state) error {
		_, ok = st.roles[profileID.String()][role]
		return nil
	})
	return ok, err
}

// Settings Store implementation
func (s *Store) GetSettings(_ context.Context) (*settings.Settings, error) {
	var out *settings.Settings
	err := s.read(func(st *state) error {
		if st.settings == nil {
			return patron.ErrSettingsNotFound
		}
		out = clone(st.settings)
		return nil
	})
	return out, err
}

func (s *Store) PutSettings(_ context.Context, ps *settings.Settings) error {
	return s.write(func(st *state) error {
		st.settings = clone(ps)
		return nil
	})
}
