package moderation

import (
	"context"

	"github.com/xraph/patron/id"
)

type Store interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, reportID id.ReportID) (*Report, error)
	ListReports(ctx context.Context, opts ListOpts) ([]*Report, error)
	UpdateReport(ctx context.Context, r *Report) error
}

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
