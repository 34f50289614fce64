package post_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/patron/id"
	"github.com/xraph/patron/post"
	"github.com/xraph/patron/types"
)

func TestNew(t *testing.T) {
	creator := id.NewProfileID()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	image := post.Media{Kind: post.MediaImage, URL: "https://cdn.example/a.png"}

	tests := []struct {
		name       string
		creator    id.ProfileID
		content    string
		visibility post.Visibility
		price      types.Money
		media      []post.Media
		wantErr    error
	}{
		{"public", creator, "hello", post.VisibilityPublic, types.Zero("usd"), nil, nil},
		{"subscriber only with media", creator, "", post.VisibilitySubscriberOnly, types.Zero("usd"), []post.Media{image}, nil},
		{"ppv", creator, "exclusive", post.VisibilityPayPerView, types.USD(500), nil, nil},
		{"ppv without price", creator, "exclusive", post.VisibilityPayPerView, types.Zero("usd"), nil, post.ErrInvalidPrice},
		{"public with price", creator, "hello", post.VisibilityPublic, types.USD(500), nil, post.ErrInvalidPrice},
		{"unknown visibility", creator, "hello", post.Visibility("friends"), types.Zero("usd"), nil, post.ErrInvalidVisibility},
		{"too many media", creator, "", post.VisibilityPublic, types.Zero("usd"), []post.Media{image, image, image, image, image}, post.ErrTooManyMedia},
		{"bad media kind", creator, "", post.VisibilityPublic, types.Zero("usd"), []post.Media{{Kind: "audio", URL: "x"}}, post.ErrInvalidMedia},
		{"empty", creator, "   ", post.VisibilityPublic, types.Zero("usd"), nil, post.ErrEmpty},
		{"no creator", id.Nil, "hello", post.VisibilityPublic, types.Zero("usd"), nil, post.ErrMissingCreator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := post.New(tt.creator, tt.content, tt.visibility, tt.price, tt.media, now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ID.Prefix() != id.PrefixPost {
				t.Errorf("expected post prefix, got %q", p.ID.Prefix())
			}
			if p.IsPublic() && p.IsPPV() {
				t.Error("IsPublic and IsPPV must never both be true")
			}
			if p.IsPublic() != (tt.visibility == post.VisibilityPublic) {
				t.Errorf("IsPublic mismatch for %q", tt.visibility)
			}
			if p.IsPPV() != (tt.visibility == post.VisibilityPayPerView) {
				t.Errorf("IsPPV mismatch for %q", tt.visibility)
			}
		})
	}
}

func TestNewCopiesMedia(t *testing.T) {
	media := []post.Media{{Kind: post.MediaImage, URL: "https://cdn.example/a.png"}}
	p, err := post.New(id.NewProfileID(), "", post.VisibilityPublic, types.Zero("usd"), media, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	media[0].URL = "changed"
	if p.Media[0].URL != "https://cdn.example/a.png" {
		t.Error("post media aliases the caller's slice")
	}
}

func TestRedacted(t *testing.T) {
	p, err := post.New(id.NewProfileID(), "secret", post.VisibilityPayPerView, types.USD(500),
		[]post.Media{{Kind: post.MediaVideo, URL: "https://cdn.example/v.mp4"}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := p.Redacted()
	if !r.Locked || r.Content != "" || len(r.Media) != 0 {
		t.Errorf("expected locked copy without content, got %+v", r)
	}
	if !r.PPVPrice.Equal(types.USD(500)) || !r.ID.Equal(p.ID) {
		t.Error("redacted copy must keep metadata and price")
	}
	if p.Locked || p.Content != "secret" {
		t.Error("Redacted must not modify the original")
	}
}
