// Package profile defines user profiles and the role assignments that gate
// creator and admin operations.
package profile

import (
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// Role is a capability granted to a profile.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCreator Role = "creator"
	RoleFan     Role = "fan"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCreator, RoleFan:
		return true
	}
	return false
}

type Profile struct {
	types.Entity
	ID                id.ProfileID `json:"id"`
	Username          string       `json:"username,omitempty"`
	DisplayName       string       `json:"display_name"`
	Bio               string       `json:"bio,omitempty"`
	AvatarURL         string       `json:"avatar_url,omitempty"`
	BannerURL         string       `json:"banner_url,omitempty"`
	DateOfBirth       *time.Time   `json:"date_of_birth,omitempty"`
	IsAgeVerified     bool         `json:"is_age_verified"`
	IsCreatorVerified bool         `json:"is_creator_verified"`
	SubscriptionPrice types.Money  `json:"subscription_price"`
}

// RoleAssignment records that a profile holds a role. (ProfileID, Role) is unique.
type RoleAssignment struct {
	ProfileID id.ProfileID `json:"profile_id"`
	Role      Role         `json:"role"`
	GrantedAt time.Time    `json:"granted_at"`
}

// Draft is the input for a new profile.
type Draft struct {
	Username    string `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	DisplayName string `json:"display_name" validate:"required,max=80"`
}

// Update is a partial profile change. Nil fields are left untouched.
type Update struct {
	Username          *string      `json:"username,omitempty" validate:"omitempty,min=3,max=30,alphanum"`
	DisplayName       *string      `json:"display_name,omitempty" validate:"omitempty,min=1,max=80"`
	Bio               *string      `json:"bio,omitempty" validate:"omitempty,max=500"`
	DateOfBirth       *time.Time   `json:"date_of_birth,omitempty"`
	SubscriptionPrice *types.Money `json:"subscription_price,omitempty"`
}

// Apply copies the set fields of u onto p.
func (u Update) Apply(p *Profile) {
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.DateOfBirth != nil {
		dob := *u.DateOfBirth
		p.DateOfBirth = &dob
	}
	if u.SubscriptionPrice != nil {
		p.SubscriptionPrice = *u.SubscriptionPrice
	}
}
