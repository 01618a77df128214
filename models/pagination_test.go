package models

import (
	"context"
	"math"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequest_Normalize(t *testing.T) {
	cases := []struct {
		in       PageRequest
		expected PageRequest
		offset   int
	}{
		{PageRequest{Page: 0, Limit: 0}, PageRequest{Page: 1, Limit: 10}, 0},
		{PageRequest{Page: -3, Limit: 5}, PageRequest{Page: 1, Limit: 5}, 0},
		{PageRequest{Page: 3, Limit: 20}, PageRequest{Page: 3, Limit: 20}, 40},
		{PageRequest{Page: 2, Limit: 1000}, PageRequest{Page: 2, Limit: MaxPageSize}, MaxPageSize},
		{PageRequest{Page: 1 << 62, Limit: 10}, PageRequest{Page: 1 << 62, Limit: 10}, math.MaxInt32},
	}
	for _, tc := range cases {
		got := tc.in.Normalize(10)
		if got != tc.expected {
			t.Fatalf("Normalize(%+v) expected %+v, got %+v", tc.in, tc.expected, got)
		}
		if got.Offset() != tc.offset {
			t.Fatalf("Offset(%+v) expected %d, got %d", got, tc.offset, got.Offset())
		}
	}
}

func TestFindPage_PageBeyondTotalSkipsSelect(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `user_groups`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	page, err := ListUserGroups(context.Background(), db, UserGroupFilter{Page: PageRequest{Page: 1 << 62, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Empty(t, page.Data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQuery_OrderBy(t *testing.T) {
	allowed := map[string]string{"id": "id", "name": "name"}
	cases := []struct {
		key      string
		sortType SortType
		expected string
	}{
		{"name", SortTypeAsc, "name ASC"},
		{" NAME ", SortTypeDesc, "name DESC"},
		{"password", SortTypeAsc, "id ASC"},
		{"", SortTypeDesc, "id DESC"},
	}
	for _, tc := range cases {
		q := ListQuery{SortKey: tc.key, SortType: tc.sortType}
		if got := q.OrderBy(allowed, "id"); got != tc.expected {
			t.Fatalf("OrderBy(%q, %s) expected %q, got %q", tc.key, tc.sortType, tc.expected, got)
		}
	}
}

func TestParseSortType(t *testing.T) {
	cases := map[string]SortType{
		"asc":  SortTypeAsc,
		"ASC":  SortTypeAsc,
		"desc": SortTypeDesc,
		"":     SortTypeDesc,
		"up":   SortTypeDesc,
	}
	for in, expected := range cases {
		if got := ParseSortType(in); got != expected {
			t.Fatalf("ParseSortType(%q) expected %s, got %s", in, expected, got)
		}
	}
}
