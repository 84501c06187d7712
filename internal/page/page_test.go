package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int64
		page     int
		pageSize int
		want     []int64
		wantMeta Metadata
	}{
		{
			name:     "first page",
			ids:      ids(25),
			page:     1,
			pageSize: 10,
			want:     []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantMeta: Metadata{TotalItems: 25, PageSize: 10, CurrentPage: 1, TotalPages: 3},
		},
		{
			name:     "last partial page",
			ids:      ids(25),
			page:     3,
			pageSize: 10,
			want:     []int64{21, 22, 23, 24, 25},
			wantMeta: Metadata{TotalItems: 25, PageSize: 10, CurrentPage: 3, TotalPages: 3},
		},
		{
			name:     "exact multiple",
			ids:      ids(20),
			page:     2,
			pageSize: 10,
			want:     []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20},
			wantMeta: Metadata{TotalItems: 20, PageSize: 10, CurrentPage: 2, TotalPages: 2},
		},
		{
			name:     "out of range resets to page one",
			ids:      ids(25),
			page:     9,
			pageSize: 10,
			want:     []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantMeta: Metadata{TotalItems: 25, PageSize: 10, CurrentPage: 1, TotalPages: 3},
		},
		{
			name:     "single item",
			ids:      ids(1),
			page:     1,
			pageSize: 5,
			want:     []int64{1},
			wantMeta: Metadata{TotalItems: 1, PageSize: 5, CurrentPage: 1, TotalPages: 1},
		},
		{
			name:     "page size larger than list",
			ids:      ids(3),
			page:     1,
			pageSize: 100,
			want:     []int64{1, 2, 3},
			wantMeta: Metadata{TotalItems: 3, PageSize: 100, CurrentPage: 1, TotalPages: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, meta, err := Paginate(tt.ids, tt.page, tt.pageSize)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMeta, meta)
		})
	}
}

func TestPaginateEmptyIDs(t *testing.T) {
	// Empty input wins over bad parameters: no error even for page 0.
	got, meta, err := Paginate(nil, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{}, got)
	assert.Equal(t, Metadata{}, meta)
}

func TestPaginateInvalidParams(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		pageSize int
	}{
		{name: "zero page size", page: 1, pageSize: 0},
		{name: "negative page size", page: 1, pageSize: -1},
		{name: "zero page", page: 0, pageSize: 10},
		{name: "negative page", page: -3, pageSize: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Paginate(ids(5), tt.page, tt.pageSize)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPagination))
		})
	}
}

func TestPaginatePreservesOrder(t *testing.T) {
	ranked := []int64{42, 7, 99, 3, 15}
	got, _, err := Paginate(ranked, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 7, 99}, got)

	got, _, err = Paginate(ranked, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 15}, got)
}
