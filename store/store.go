// Package store defines the aggregate persistence interface for Patron.
package store

import (
	"context"

	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/message"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/purchase"
	"github.com/xraph/patron/settings"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/tip"
)

// Store is the unified storage interface for all Patron entities. Every
// entity store uses method names prefixed with its entity, so the
// sub-interfaces embed without conflicts.
type Store interface {
	profile.Store
	post.Store
	subscription.Store
	purchase.Store
	tip.Store
	ledger.Store
	settings.Store
	moderation.Store
	notification.Store
	message.Store

	// Transact runs fn as one unit of work. The Store passed to fn must be
	// used for every read and write that belongs to it. If fn returns an
	// error nothing it wrote is kept.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Lock serializes units of work that use the same key. It must be called
	// inside Transact and is held until the unit of work ends.
	Lock(ctx context.Context, key string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
