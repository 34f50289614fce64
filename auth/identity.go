// Package auth carries the authenticated identity through a context and
// issues the session tokens that establish it.
package auth

import (
	"context"

	"github.com/xraph/patron/id"
)

type ctxKey struct{}

// Identity is the authenticated caller.
type Identity struct {
	ProfileID id.ProfileID
}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

// WithProfile is shorthand for WithIdentity with only a profile ID.
func WithProfile(ctx context.Context, profileID id.ProfileID) context.Context {
	return WithIdentity(ctx, Identity{ProfileID: profileID})
}

// FromContext returns the identity, if any. A nil profile ID counts as absent.
func FromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || ident.ProfileID.IsNil() {
		return Identity{}, false
	}
	return ident, true
}
