package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/post"
)

// ==================== Post Store ====================

func (s *Store) CreatePost(ctx context.Context, p *post.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m, err := toPostModel(p)
	if err != nil {
		return fmt.Errorf("patron/postgres: create post: %w", err)
	}
	_, err = s.q.NewInsert(m).Exec(ctx)
	return wrap("create post", err)
}

func (s *Store) GetPost(ctx context.Context, postID id.PostID) (*post.Post, error) {
	m := new(postModel)
	q := s.q.NewSelect(m).Where("id = $1", postID.String())
	if err := scanOne(ctx, q, "get post", patron.ErrPostNotFound); err != nil {
		return nil, err
	}
	return fromPostModel(m)
}

func (s *Store) ListPosts(ctx context.Context, creatorID id.ProfileID, opts post.ListOpts) ([]*post.Post, error) {
	var models []postModel
	q := s.q.NewSelect(&models).Where("creator_id = $1", creatorID.String())
	if opts.Visibility != "" {
		q = q.Where("visibility = $2", string(opts.Visibility))
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("list posts", err)
	}
	return fromModels(models, fromPostModel)
}

func (s *Store) ListFeed(ctx context.Context, opts post.ListOpts) ([]*post.Post, error) {
	var models []postModel
	q := s.q.NewSelect(&models)
	if opts.Visibility != "" {
		q = q.Where("visibility = $1", string(opts.Visibility))
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("list feed", err)
	}
	return fromModels(models, fromPostModel)
}

func (s *Store) DeletePost(ctx context.Context, postID id.PostID) error {
	res, err := s.q.NewDelete((*postModel)(nil)).Where("id = $1", postID.String()).Exec(ctx)
	return affected("delete post", patron.ErrPostNotFound, res, err)
}

// ==================== Moderation Store ====================

func (s *Store) CreateReport(ctx context.Context, r *moderation.Report) error {
	_, err := s.q.NewInsert(toReportModel(r)).Exec(ctx)
	return wrap("create report", err)
}

func (s *Store) GetReport(ctx context.Context, reportID id.ReportID) (*moderation.Report, error) {
	m := new(reportModel)
	q := s.q.NewSelect(m).Where("id = $1", reportID.String())
	if err := scanOne(ctx, q, "get report", patron.ErrReportNotFound); err != nil {
		return nil, err
	}
	return fromReportModel(m)
}

func (s *Store) ListReports(ctx context.Context, opts moderation.ListOpts) ([]*moderation.Report, error) {
	var models []reportModel
	q := s.q.NewSelect(&models)
	if opts.Status != "" {
		q = q.Where("status = $1", string(opts.Status))
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	if err := page(q, opts.Limit, opts.Offset).Scan(ctx); err != nil {
		return nil, wrap("list reports", err)
	}
	return fromModels(models, fromReportModel)
}

func (s *Store) UpdateReport(ctx context.Context, r *moderation.Report) error {
	res, err := s.q.NewUpdate((*reportModel)(nil)).
		Set("status = $1", string(r.Status)).
		Set("admin_notes = $2", r.AdminNotes).
		Set("reviewed_by = $3", optionalID(r.ReviewedBy)).
		Set("updated_at = $4", r.UpdatedAt).
		Where("id = $5", r.ID.String()).
		Exec(ctx)
	return affected("update report", patron.ErrReportNotFound, res, err)
}
