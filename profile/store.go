package profile

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, profileID id.ProfileID) (*Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*Profile, error)
	UpdateProfile(ctx context.Context, p *Profile) error
	// ListProfiles returns every profile, newest first.
	ListProfiles(ctx context.Context, opts ListOpts) ([]*Profile, error)
	// SearchCreators returns creators whose username or display name contains
	// query, case-insensitively. An empty query matches every creator.
	SearchCreators(ctx context.Context, query string, opts ListOpts) ([]*Profile, error)

	// GrantRole returns an already-exists error when the pair is already assigned.
	GrantRole(ctx context.Context, ra *RoleAssignment) error
	ListRoles(ctx context.Context, profileID id.ProfileID) ([]Role, error)
	HasRole(ctx context.Context, profileID id.ProfileID, role Role) (bool, error)
}

type ListOpts struct {
	Limit  int
	Offset int
}
