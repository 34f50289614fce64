package post

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	CreatePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, postID id.PostID) (*Post, error)
	// ListPosts returns a creator's posts, newest first.
	ListPosts(ctx context.Context, creatorID id.ProfileID, opts ListOpts) ([]*Post, error)
	// ListFeed returns posts from every creator, newest first.
	ListFeed(ctx context.Context, opts ListOpts) ([]*Post, error)
	DeletePost(ctx context.Context, postID id.PostID) error
}

type ListOpts struct {
	Visibility Visibility
	Limit      int
	Offset     int
}
