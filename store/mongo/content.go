package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/patron"
	"github.com/xraph/patron/id"
	"github.com/xraph/patron/moderation"
	"github.com/xraph/patron/post"
)

var newestFirst = bson.D{{Key: "created_us", Value: -1}, {Key: "_id", Value: -1}}

// ==================== Post Store ====================

func (s *Store) CreatePost(ctx context.Context, p *post.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.mdb.NewInsert(toPostModel(p)).Exec(ctx)
	return wrap("create post", err)
}

func (s *Store) GetPost(ctx context.Context, postID id.PostID) (*post.Post, error) {
	return findOne(ctx, s.mdb, "get post", patron.ErrPostNotFound,
		bson.M{"_id": postID.String()}, fromPostModel)
}

func (s *Store) ListPosts(ctx context.Context, creatorID id.ProfileID, opts post.ListOpts) ([]*post.Post, error) {
	filter := bson.M{"creator_id": creatorID.String()}
	if opts.Visibility != "" {
		filter["visibility"] = string(opts.Visibility)
	}
	return findMany(ctx, s.mdb, "list posts", filter, newestFirst, opts.Limit, opts.Offset, fromPostModel)
}

func (s *Store) ListFeed(ctx context.Context, opts post.ListOpts) ([]*post.Post, error) {
	filter := bson.M{}
	if opts.Visibility != "" {
		filter["visibility"] = string(opts.Visibility)
	}
	return findMany(ctx, s.mdb, "list feed", filter, newestFirst, opts.Limit, opts.Offset, fromPostModel)
}

func (s *Store) DeletePost(ctx context.Context, postID id.PostID) error {
	res, err := s.mdb.NewDelete((*postModel)(nil)).Filter(bson.M{"_id": postID.String()}).Exec(ctx)
	if err != nil {
		return wrap("delete post", err)
	}
	if res.DeletedCount() == 0 {
		return patron.ErrPostNotFound
	}
	return nil
}

// ==================== Moderation Store ====================

func (s *Store) CreateReport(ctx context.Context, r *moderation.Report) error {
	_, err := s.mdb.NewInsert(toReportModel(r)).Exec(ctx)
	return wrap("create report", err)
}

func (s *Store) GetReport(ctx context.Context, reportID id.ReportID) (*moderation.Report, error) {
	return findOne(ctx, s.mdb, "get report", patron.ErrReportNotFound,
		bson.M{"_id": reportID.String()}, fromReportModel)
}

func (s *Store) ListReports(ctx context.Context, opts moderation.ListOpts) ([]*moderation.Report, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	return findMany(ctx, s.mdb, "list reports", filter, sort, opts.Limit, opts.Offset, fromReportModel)
}

func (s *Store) UpdateReport(ctx context.Context, r *moderation.Report) error {
	m := toReportModel(r)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	return matched(res, err, "update report", patron.ErrReportNotFound)
}
