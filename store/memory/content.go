package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/post"
)

func clonePost(p *post.Post) *post.Post {
	c := clone(p)
	c.Media = slices.Clone(p.Media)
	return c
}

// newestFirst orders by creation time, then by ID (K-sortable), descending.
func newestFirst[T any](items []T, key func(T) (int64, string)) {
	slices.SortFunc(items, func(a, b T) int {
		at, aid := key(a)
		bt, bid := key(b)
		if c := cmp.Compare(bt, at); c != 0 {
			return c
		}
		return cmp.Compare(bid, aid)
	})
}

// Post Store implementation
func (s *Store) CreatePost(_ context.Context, p *post.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.write(func(st *state) error {
		if _, exists := st.posts[p.ID.String()]; exists {
			return fmt.Errorf("%w: post %s", patron.ErrAlreadyExists, p.ID)
		}
		st.posts[p.ID.String()] = clonePost(p)
		return nil
	})
}

func (s *Store) GetPost(_ context.Context, postID id.PostID) (*post.Post, error) {
	var out *post.Post
	err := s.read(func(st *state) error {
		p, ok := st.posts[postID.String()]
		if !ok {
			return patron.ErrPostNotFound
		}
		out = clonePost(p)
		return nil
	})
	return out, err
}

func (s *Store) ListPosts(_ context.Context, creatorID id.ProfileID, opts post.ListOpts) ([]*post.Post, error) {
	var out []*post.Post
	err := s.read(func(st *state) error {
		for _, p := range st.posts {
			if !p.CreatorID.Equal(creatorID) {
				continue
			}
			if opts.Visibility != "" && p.Visibility != opts.Visibility {
				continue
			}
			out = append(out, clonePost(p))
		}
		return nil
	})
	newestFirst(out, func(p *post.Post) (int64, string) { return p.CreatedAt.UnixNano(), p.ID.String() })
	return page(out, opts.Limit, opts.Offset), err
}

func (s *Store) ListFeed(_ context.Context, opts post.ListOpts) ([]*post.Post, error) {
	var out []*post.Post
	err := s.read(func(st *state) error {
		for _, p := range st.posts {
			if opts.Visibility != "" && p.Visibility != opts.Visibility {
				continue
			}
			out = append(out, clonePost(p))
		}
		return nil
	})
	newestFirst(out, func(p *post.Post) (int64, string) { return p.CreatedAt.UnixNano(), p.ID.String() })
	return page(out, opts.Limit, opts.Offset), err
}

func (s *Store) DeletePost(_ context.Context, postID id.PostID) error {
	return s.write(func(st *state) error {
		if _, ok := st.posts[postID.String()]; !ok {
			return patron.ErrPostNotFound
		}
		delete(st.posts, postID.String())
		return nil
	})
}

// Moderation Store implementation
func (s *Store) CreateReport(_ context.Context, r *moderation.Report) error {
	return s.write(func(st *state) error {
		if _, exists := st.reports[r.ID.String()]; exists {
			return fmt.Errorf("%w: report %s", patron.ErrAlreadyExists, r.ID)
		}
		st.reports[r.ID.String()] = clone(r)
		return nil
	})
}

func (s *Store) GetReport(_ context.Context, reportID id.ReportID) (*moderation.Report, error) {
	var out *moderation.Report
	err := s.read(func(st *state) error {
		r, ok := st.reports[reportID.String()]
		if !ok {
			return patron.ErrReportNotFound
		}
		out = clone(r)
		return nil
	})
	return out, err
}

func (s *Store) ListReports(_ context.Context, opts moderation.ListOpts) ([]*moderation.Report, error) {
	var out []*moderation.Report
	err := s.read(func(st *state) error {
		for _, r := range st.reports {
			if opts.Status != "" && r.Status != opts.Status {
				continue
			}
			out = append(out, clone(r))
		}
		return nil
	})
	newestFirst(out, func(r *moderation.Report) (int64, string) { return r.CreatedAt.UnixNano(), r.ID.String() })
	return page(out, opts.Limit, opts.Offset), err
}

func (s *Store) UpdateReport(_ context.Context, r *moderation.Report) error {
	return s.write(func(st *state) error {
		if _, ok := st.reports[r.ID.String()]; !ok {
			return patron.ErrReportNotFound
		}
		st.reports[r.ID.String()] = clone(r)
		return nil
	})
}
