package audit

import (
	"context"
	"fmt"

	"github.com/commerceops/opsdash/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxExportRows bounds a single CSV export.
	maxExportRows = 10000
)

// Repository lists audit rows newest first.
type Repository interface {
	ListTimeline(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return Result{}, shared.InvalidArgument("audit: from must not be after to")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.ListTimeline(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, shared.Internal("audit.Timeline", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row up to the export cap.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return nil, shared.InvalidArgument("audit: from must not be after to")
	}
	rows, err := s.repo.ListTimeline(ctx, filters, 0, maxExportRows)
	if err != nil {
		return nil, shared.Internal("audit.Export", err)
	}
	return rows, nil
}
