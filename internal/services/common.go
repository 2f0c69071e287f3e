// Package services holds the business rules: validation, authorization and
// orchestration of repository calls.
package services

import (
	"context"
	"strconv"
	"strings"

	"bus_tracker/internal/apperrors"
	"bus_tracker/internal/models"
	"bus_tracker/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListParams are the shared listing inputs.
type ListParams struct {
	Page   int
	Limit  int
	Search string
}

// Pagination is the metadata returned alongside a page of results.
type Pagination struct {
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Count       int   `json:"count"`
	Limit       int   `json:"limit"`
}

func newPagination(total int64, page, limit, count int) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Total: total, TotalPages: pages, CurrentPage: page, Count: count, Limit: limit}
}

// resolvePage applies defaults to page/limit and rejects non-positive or oversized values.
// Zero means "not supplied".
func resolvePage(page, limit, defLimit, maxLimit int, errs *apperrors.FieldErrors) repository.Page {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defLimit
	}
	if page < 1 {
		errs.Add("page", "must be a positive integer")
	}
	if limit < 1 {
		errs.Add("limit", "must be a positive integer")
	} else if limit > maxLimit {
		errs.Add("limit", "must not exceed "+strconv.Itoa(maxLimit))
	}
	return repository.Page{Number: page, Size: limit}
}

func (p ListParams) page() (repository.Page, error) {
	var errs apperrors.FieldErrors
	pg := resolvePage(p.Page, p.Limit, defaultPageSize, maxPageSize, &errs)
	return pg, errs.Err()
}

func (p ListParams) search() string {
	return strings.TrimSpace(p.Search)
}

// LocationPublisher fans newly ingested pings out to live subscribers.
type LocationPublisher interface {
	PublishLocation(ctx context.Context, loc *models.Location, bus *models.Bus)
}

type noopPublisher struct{}

func (noopPublisher) PublishLocation(context.Context, *models.Location, *models.Bus) {}
