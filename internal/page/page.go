// Package page slices ordered id lists into fixed-size pages.
//
// Pagination here operates on a pre-fetched, deduplicated id set rather
// than SQL LIMIT/OFFSET: the Slack search path ranks and dedups its
// result ids in memory first, then pages over that stable ordering.
package page

import (
	"errors"
	"fmt"
)

// ErrPagination indicates invalid paging parameters. Paging has no
// silent fallback; a bad page size is a caller bug.
var ErrPagination = errors.New("invalid pagination parameters")

// Metadata describes the page returned by Paginate.
type Metadata struct {
	TotalItems  int `json:"total_items"`
	PageSize    int `json:"page_size"`
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// Paginate returns the requested page of ids plus paging metadata,
// preserving input order.
//
// An empty id list yields an empty page and zero metadata for any page
// and pageSize, without error. A page number beyond the last page
// silently resets to page 1: stale client paging state sees the first
// page again, not an empty one.
func Paginate(ids []int64, page, pageSize int) ([]int64, Metadata, error) {
	if len(ids) == 0 {
		return []int64{}, Metadata{}, nil
	}

	if pageSize <= 0 {
		return nil, Metadata{}, fmt.Errorf("%w: page size %d", ErrPagination, pageSize)
	}
	if page <= 0 {
		return nil, Metadata{}, fmt.Errorf("%w: page %d", ErrPagination, page)
	}

	totalPages := (len(ids) + pageSize - 1) / pageSize
	if page > totalPages {
		page = 1
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(ids))

	meta := Metadata{
		TotalItems:  len(ids),
		PageSize:    pageSize,
		CurrentPage: page,
		TotalPages:  totalPages,
	}
	return ids[start:end], meta, nil
}
