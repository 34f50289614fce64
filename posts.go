package patron

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/patron/auth"
	"github.com/xraph/patron/entitlement"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/ledger"
	"github.com/xraph/patron/media"
	"github.com/xraph/patron/notification"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/profile"
	"github.com/xraph/patron/subscription"
	"github.com/xraph/patron/types"
)

// ──────────────────────────────────────────────────
// Posts
// ──────────────────────────────────────────────────

// PostDraft is the input to CreatePost.
type PostDraft struct {
	Content     string
	Visibility  post.Visibility
	Price       types.Money
	Attachments []media.Attachment
}

// CreatePost publishes a post for the calling creator. Attachments are
// uploaded to the blob store before the post is stored.
func (p *Patron) CreatePost(ctx context.Context, draft PostDraft) (*post.Post, error) {
	creator, err := p.requireCaller(ctx, profile.RoleCreator)
	if err != nil {
		return nil, err
	}
	if len(draft.Attachments) > post.MaxMedia {
		return nil, invalid("attachments", fmt.Errorf("%w: %d > %d", post.ErrTooManyMedia, len(draft.Attachments), post.MaxMedia))
	}
	if len(draft.Attachments) > 0 && p.blobs == nil {
		return nil, fmt.Errorf("%w: no blob store configured", ErrInvalidState)
	}
	st, err := p.currentSettings(ctx, p.store)
	if err != nil {
		return nil, err
	}
	if draft.Price.Currency == "" {
		draft.Price.Currency = st.Currency
	}
	if draft.Price.Currency != st.Currency {
		return nil, invalid("price", fmt.Errorf("%w: %s", ledger.ErrCurrencyMismatch, draft.Price.Currency))
	}

	postID := id.NewPostID()
	paths := make([]string, len(draft.Attachments))
	items := make([]post.Media, len(draft.Attachments))
	for i, a := range draft.Attachments {
		objectPath, err := media.PostObjectPath(creator, postID, i, a.Extension)
		if err != nil {
			return nil, invalid("attachments", err)
		}
		paths[i] = objectPath
		items[i] = post.Media{Kind: a.Kind, URL: p.blobs.PublicURL(objectPath)}
	}

	now := p.now()
	pst, err := post.NewWithID(postID, creator, draft.Content, draft.Visibility, draft.Price, items, now)
	if err != nil {
		return nil, invalid("post", err)
	}

	for i, a := range draft.Attachments {
		if err := p.blobs.Upload(ctx, paths[i], a.Body, a.ContentType); err != nil {
			return nil, p.fail(ctx, "create_post", fmt.Errorf("upload %s: %w", paths[i], err))
		}
	}

	if err := p.store.CreatePost(ctx, pst); err != nil {
		return nil, p.fail(ctx, "create_post", err)
	}

	p.plugins.EmitPostCreated(ctx, pst)
	p.notifySubscribers(ctx, pst, now)

	p.logger.Debug("post created",
		"post_id", pst.ID,
		"creator_id", creator,
		"visibility", pst.Visibility,
		"media", len(pst.Media),
	)

	return pst, nil
}

// notifySubscribers sends a new_post notification to every fan entitled to
// the creator at now.
func (p *Patron) notifySubscribers(ctx context.Context, pst *post.Post, now time.Time) {
	subs, err := p.store.ListSubscriptionsByCreator(ctx, pst.CreatorID, subscription.ListOpts{Status: subscription.StatusActive})
	if err != nil {
		p.logger.Warn("failed to list subscribers for post notification",
			"post_id", pst.ID,
			"error", err,
		)
		return
	}
	for _, sub := range subs {
		if sub.IsEntitled(now) {
			p.notify(ctx, sub.FanID, notification.TypeNewPost, "New post", "", pst.ID)
		}
	}
}

// DeletePost removes one of the caller's posts.
func (p *Patron) DeletePost(ctx context.Context, postID id.PostID) error {
	caller, err := p.caller(ctx)
	if err != nil {
		return err
	}
	pst, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !pst.CreatorID.Equal(caller) {
		return fmt.Errorf("%w: only the creator may delete a post", ErrPermissionDenied)
	}
	if err := p.store.DeletePost(ctx, postID); err != nil {
		return p.fail(ctx, "delete_post", err)
	}

	if p.cache != nil {
		_ = p.cache.InvalidatePost(ctx, postID) //nolint:errcheck // best-effort cache invalidation
	}
	p.plugins.EmitPostDeleted(ctx, pst)
	return nil
}

// GetPost returns a post as the caller may see it, with the access decision.
// Locked posts keep their metadata and price but lose content and media.
func (p *Patron) GetPost(ctx context.Context, postID id.PostID) (*post.Post, *entitlement.Result, error) {
	pst, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.canView(ctx, viewerOf(ctx), pst, p.now())
	if err != nil {
		return nil, nil, err
	}
	if !res.Allowed {
		return pst.Redacted(), res, nil
	}
	return pst, res, nil
}

// ListPosts returns a creator's posts newest first, each redacted unless the
// caller may see it.
func (p *Patron) ListPosts(ctx context.Context, creatorID id.ProfileID, opts post.ListOpts) ([]*post.Post, error) {
	posts, err := p.store.ListPosts(ctx, creatorID, opts)
	if err != nil {
		return nil, err
	}
	return p.redactAll(ctx, posts)
}

// ListFeed returns posts from every creator newest first, redacted the same
// way as ListPosts.
func (p *Patron) ListFeed(ctx context.Context, opts post.ListOpts) ([]*post.Post, error) {
	posts, err := p.store.ListFeed(ctx, opts)
	if err != nil {
		return nil, err
	}
	return p.redactAll(ctx, posts)
}

func (p *Patron) redactAll(ctx context.Context, posts []*post.Post) ([]*post.Post, error) {
	viewer := viewerOf(ctx)
	now := p.now()
	out := make([]*post.Post, 0, len(posts))
	for _, pst := range posts {
		res, err := p.canView(ctx, viewer, pst, now)
		if err != nil {
			return nil, err
		}
		if res.Allowed {
			out = append(out, pst)
		} else {
			out = append(out, pst.Redacted())
		}
	}
	return out, nil
}

// CanView decides whether the caller may see a post. Anonymous callers only
// see public posts.
func (p *Patron) CanView(ctx context.Context, postID id.PostID) (*entitlement.Result, error) {
	pst, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return p.canView(ctx, viewerOf(ctx), pst, p.now())
}

func (p *Patron) canView(ctx context.Context, viewer id.ProfileID, pst *post.Post, now time.Time) (*entitlement.Result, error) {
	cacheable := p.cache != nil && !viewer.IsNil()
	if cacheable {
		if cached, err := p.cache.Get(ctx, viewer, pst.ID); err == nil {
			return cached, nil
		}
	}

	res, err := entitlement.Evaluate(ctx, viewer, pst, now, p, p)
	if err != nil {
		return nil, err
	}

	if cacheable {
		if ttl := p.resultTTL(ctx, res, pst, now); ttl > 0 {
			_ = p.cache.Set(ctx, res, ttl) //nolint:errcheck // best-effort cache set
		}
	}
	p.plugins.EmitEntitlementChecked(ctx, res)

	return res, nil
}

// resultTTL bounds a subscription grant by the period that granted it.
func (p *Patron) resultTTL(ctx context.Context, res *entitlement.Result, pst *post.Post, now time.Time) time.Duration {
	ttl := p.entitlementCacheTTL
	if res.Reason != entitlement.ReasonSubscribed {
		return ttl
	}
	sub, err := p.store.GetActiveSubscription(ctx, res.ViewerID, pst.CreatorID)
	if err != nil {
		return 0
	}
	return min(ttl, sub.CurrentPeriodEnd.Sub(now))
}

func viewerOf(ctx context.Context) id.ProfileID {
	if ident, ok := auth.FromContext(ctx); ok {
		return ident.ProfileID
	}
	return id.Nil
}
