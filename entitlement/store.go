package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/patron/id"
)

// ErrCacheMiss is returned by Cache.Get when nothing is cached for the key.
var ErrCacheMiss = errors.New("entitlement: cache miss")

// Cache stores evaluated results. Implementations must drop entries no later
// than the TTL passed to Set.
type Cache interface {
	Get(ctx context.Context, viewerID id.ProfileID, postID id.PostID) (*Result, error)
	Set(ctx context.Context, result *Result, ttl time.Duration) error
	// InvalidateViewer drops every cached result for the viewer.
	InvalidateViewer(ctx context.Context, viewerID id.ProfileID) error
	// InvalidatePost drops every cached result for the post.
	InvalidatePost(ctx context.Context, postID id.PostID) error
}
