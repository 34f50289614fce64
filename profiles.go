package patron

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/store"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Profiles
// ──────────────────────────────────────────────────

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct reports the first failing field as a ValidationError.
func (p *Patron) validateStruct(v any) error {
	err := p.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		return ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			Err:     err,
		}
	}
	return invalid("input", err)
}

// CreateProfile creates the caller's profile and grants it the fan role.
func (p *Patron) CreateProfile(ctx context.Context, draft profile.Draft) (*profile.Profile, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	draft.DisplayName = strings.TrimSpace(draft.DisplayName)
	if err := p.validateStruct(draft); err != nil {
		return nil, err
	}

	now := p.now()
	prof := &profile.Profile{
		Entity:      types.NewEntity(now),
		ID:          caller,
		Username:    draft.Username,
		DisplayName: draft.DisplayName,
	}
	ra := &profile.RoleAssignment{ProfileID: caller, Role: profile.RoleFan, GrantedAt: now}

	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		st, err := p.currentSettings(ctx, tx)
		if err != nil {
			return err
		}
		prof.SubscriptionPrice = types.Zero(st.Currency)
		if err := tx.CreateProfile(ctx, prof); err != nil {
			return err
		}
		return tx.GrantRole(ctx, ra)
	})
	if err != nil {
		return nil, err
	}

	p.plugins.EmitRoleGranted(ctx, ra)
	return prof, nil
}

// GetProfile returns a profile by ID.
func (p *Patron) GetProfile(ctx context.Context, profileID id.ProfileID) (*profile.Profile, error) {
	return p.store.GetProfile(ctx, profileID)
}

// GetProfileByUsername returns a profile by its case-insensitive username.
func (p *Patron) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	return p.store.GetProfileByUsername(ctx, username)
}

// SearchCreators returns creators whose username or display name contains
// query, ignoring case. Anyone may search.
func (p *Patron) SearchCreators(ctx context.Context, query string, opts profile.ListOpts) ([]*profile.Profile, error) {
	return p.store.SearchCreators(ctx, strings.TrimSpace(query), opts)
}

// UpdateProfile applies a partial update to the caller's profile. A new
// subscription price must lie within the platform bounds.
func (p *Patron) UpdateProfile(ctx context.Context, upd profile.Update) (*profile.Profile, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.validateStruct(upd); err != nil {
		return nil, err
	}

	now := p.now()
	var prof *profile.Profile
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		if upd.SubscriptionPrice != nil {
			st, err := p.currentSettings(ctx, tx)
			if err != nil {
				return err
			}
			if !st.PriceAllowed(*upd.SubscriptionPrice) {
				return invalid("subscription_price", fmt.Errorf("%w: %s not in [%s, %s]",
					ErrPriceOutOfRange, *upd.SubscriptionPrice, st.MinSubscriptionPrice, st.MaxSubscriptionPrice))
			}
		}

		var err error
		prof, err = tx.GetProfile(ctx, caller)
		if err != nil {
			return err
		}
		upd.Apply(prof)
		prof.Touch(now)
		return tx.UpdateProfile(ctx, prof)
	})
	if err != nil {
		return nil, err
	}

	p.plugins.EmitProfileUpdated(ctx, prof)
	return prof, nil
}

// UploadAvatar stores the caller's avatar and records its public URL.
func (p *Patron) UploadAvatar(ctx context.Context, img media.Image) (*profile.Profile, error) {
	return p.uploadProfileImage(ctx, "avatar", img, func(prof *profile.Profile, url string) {
		prof.AvatarURL = url
	})
}

// UploadBanner stores the caller's banner and records its public URL.
func (p *Patron) UploadBanner(ctx context.Context, img media.Image) (*profile.Profile, error) {
	return p.uploadProfileImage(ctx, "banner", img, func(prof *profile.Profile, url string) {
		prof.BannerURL = url
	})
}

func (p *Patron) uploadProfileImage(ctx context.Context, kind string, img media.Image, set func(*profile.Profile, string)) (*profile.Profile, error) {
	caller, err := p.caller(ctx)
	if err != nil {
		return nil, err
	}
	if p.blobs == nil {
		return nil, fmt.Errorf("%w: no blob store configured", ErrInvalidState)
	}
	if img.Body == nil {
		return nil, ValidationError{Field: kind, Message: "image body is required"}
	}
	objectPath, err := media.ProfileObjectPath(caller, kind, img.Extension)
	if err != nil {
		return nil, invalid(kind, err)
	}
	if _, err := p.store.GetProfile(ctx, caller); err != nil {
		return nil, err
	}
	if err := p.blobs.Upload(ctx, objectPath, img.Body, img.ContentType); err != nil {
		return nil, p.fail(ctx, "upload_"+kind, fmt.Errorf("upload %s: %w", objectPath, err))
	}

	now := p.now()
	var prof *profile.Profile
	err = p.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		prof, err = tx.GetProfile(ctx, caller)
		if err != nil {
			return err
		}
		set(prof, p.blobs.PublicURL(objectPath))
		prof.Touch(now)
		return tx.UpdateProfile(ctx, prof)
	})
	if err != nil {
		return nil, err
	}

	p.plugins.EmitProfileUpdated(ctx, prof)
	return prof, nil
}
