// Package post defines creator posts and their visibility rules.
//
// A Post is built only through New, which enforces that the visibility and
// the PPV price agree and that at most MaxMedia attachments are present.
package post

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/types"
)

// MaxMedia is the maximum number of media attachments on a post.
const MaxMedia = 4

var (
	ErrMissingCreator    = errors.New("post: creator is required")
	ErrInvalidVisibility = errors.New("post: invalid visibility")
	ErrInvalidPrice      = errors.New("post: ppv price must be positive for pay_per_view and zero otherwise")
	ErrTooManyMedia      = errors.New("post: too many media attachments")
	ErrInvalidMedia      = errors.New("post: invalid media attachment")
	ErrEmpty             = errors.New("post: content or media is required")
)

type Visibility string

const (
	VisibilityPublic         Visibility = "public"
	VisibilitySubscriberOnly Visibility = "subscriber_only"
	VisibilityPayPerView     Visibility = "pay_per_view"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilitySubscriberOnly, VisibilityPayPerView:
		return true
	}
	return false
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type Media struct {
	Kind MediaKind `json:"kind"`
	URL  string    `json:"url"`
}

type Post struct {
	types.Entity
	ID         id.PostID    `json:"id"`
	CreatorID  id.ProfileID `json:"creator_id"`
	Content    string       `json:"content,omitempty"`
	Media      []Media      `json:"media,omitempty"`
	Visibility Visibility   `json:"visibility"`
	PPVPrice   types.Money  `json:"ppv_price"`

	// Locked is set on copies returned to viewers without access.
	Locked bool `json:"locked,omitempty"`
}

// New builds a validated post. price must be zero unless visibility is
// pay_per_view, in which case it must be positive.
func New(creator id.ProfileID, content string, visibility Visibility, price types.Money, media []Media, now time.Time) (*Post, error) {
	return NewWithID(id.NewPostID(), creator, content, visibility, price, media, now)
}

// NewWithID is New with a caller-chosen ID, for posts whose media paths
// embed the ID before the post is stored.
func NewWithID(postID id.PostID, creator id.ProfileID, content string, visibility Visibility, price types.Money, media []Media, now time.Time) (*Post, error) {
	if postID.IsNil() {
		postID = id.NewPostID()
	}
	p := &Post{
		Entity:     types.NewEntity(now),
		ID:         postID,
		CreatorID:  creator,
		Content:    strings.TrimSpace(content),
		Media:      append([]Media(nil), media...),
		Visibility: visibility,
		PPVPrice:   price,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the invariants enforced by New. Stores call it before
// persisting rehydrated posts.
func (p *Post) Validate() error {
	if p.CreatorID.IsNil() {
		return ErrMissingCreator
	}
	if !p.Visibility.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, p.Visibility)
	}
	if p.Visibility == VisibilityPayPerView {
		if !p.PPVPrice.IsPositive() {
			return ErrInvalidPrice
		}
	} else if !p.PPVPrice.IsZero() {
		return ErrInvalidPrice
	}
	if len(p.Media) > MaxMedia {
		return fmt.Errorf("%w: %d > %d", ErrTooManyMedia, len(p.Media), MaxMedia)
	}
	for i, m := range p.Media {
		if (m.Kind != MediaImage && m.Kind != MediaVideo) || m.URL == "" {
			return fmt.Errorf("%w: index %d", ErrInvalidMedia, i)
		}
	}
	if p.Content == "" && len(p.Media) == 0 {
		return ErrEmpty
	}
	return nil
}

// IsPublic is the legacy public flag, derived from Visibility.
func (p *Post) IsPublic() bool { return p.Visibility == VisibilityPublic }

// IsPPV is the legacy pay-per-view flag, derived from Visibility.
func (p *Post) IsPPV() bool { return p.Visibility == VisibilityPayPerView }

// Redacted returns a copy that keeps metadata and price but drops the
// content and media.
func (p *Post) Redacted() *Post {
	cp := *p
	cp.Content = ""
	cp.Media = nil
	cp.Locked = true
	return &cp
}
