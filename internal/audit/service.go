package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

var errNoRepository = errors.New("audit: repository not configured")

// Repository reads timeline rows in insertion order.
type Repository interface {
	ListTimeline(ctx context.Context, orderID uuid.UUID, offset, limit int) ([]Entry, error)
}

// Service serves order timelines to the HTTP layer.
type Service struct {
	repo Repository
}

// NewService builds a timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (f TimelineFilters) window() (page, size int) {
	page, size = shared.ClampPage(f.Page), f.PageSize
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

// Timeline returns one page of an order's history. One extra row is read to
// learn whether a next page exists.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errNoRepository
	}
	page, size := filters.window()
	rows, err := s.repo.ListTimeline(ctx, filters.OrderID, shared.PageOffset(page, size), size+1)
	if err != nil {
		return Result{}, err
	}

	info := PagingInfo{Page: page, PageSize: size}
	if len(rows) > size {
		rows = rows[:size]
		info.HasNext, info.NextPage = true, page+1
	}
	if page > 1 {
		info.PrevPage = page - 1
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Entries: rows, Paging: info}, nil
}

// Export returns the whole timeline of an order without paging.
func (s *Service) Export(ctx context.Context, orderID uuid.UUID) ([]Entry, error) {
	if s.repo == nil {
		return nil, errNoRepository
	}
	var all []Entry
	for offset := 0; ; offset += maxPageSize {
		batch, err := s.repo.ListTimeline(ctx, orderID, offset, maxPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < maxPageSize {
			return all, nil
		}
	}
}
