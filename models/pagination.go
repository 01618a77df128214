package models

import (
	"math"
	"strings"

	"gorm.io/gorm"
)

const MaxPageSize = 100

type PageRequest struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to [1, MaxPageSize], defaulting limit to defaultLimit.
func (p PageRequest) Normalize(defaultLimit int) PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset saturates at math.MaxInt32 so an oversized page never wraps negative.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt32/p.Limit {
		return math.MaxInt32
	}
	return (p.Page - 1) * p.Limit
}

type Page[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Condition is one WHERE fragment of a ListQuery.
type Condition struct {
	Clause string
	Args   []interface{}
}

// ListQuery describes a list request as data: filters, a whitelisted sort and a page.
type ListQuery struct {
	Conditions []Condition
	SortKey    string
	SortType   SortType
	Page       PageRequest
}

func (q *ListQuery) Where(clause string, args ...interface{}) {
	q.Conditions = append(q.Conditions, Condition{Clause: clause, Args: args})
}

// OrderBy resolves SortKey against allowed (request key -> column), falling back to fallback.
func (q ListQuery) OrderBy(allowed map[string]string, fallback string) string {
	column, ok := allowed[strings.ToLower(strings.TrimSpace(q.SortKey))]
	if !ok {
		column = fallback
	}
	if q.SortType == SortTypeAsc {
		return column + " ASC"
	}
	return column + " DESC"
}

func (q ListQuery) apply(db *gorm.DB) *gorm.DB {
	for _, c := range q.Conditions {
		db = db.Where(c.Clause, c.Args...)
	}
	return db
}

// FindPage counts and loads one page of T matching q.
func FindPage[T any](db *gorm.DB, q ListQuery, allowedSorts map[string]string, fallbackSort string) (*Page[T], error) {
	var model T
	var total int64
	if err := q.apply(db.Model(&model)).Count(&total).Error; err != nil {
		return nil, err
	}

	results := make([]T, 0)
	if total > int64(q.Page.Offset()) {
		err := q.apply(db.Model(&model)).
			Order(q.OrderBy(allowedSorts, fallbackSort)).
			Limit(q.Page.Limit).
			Offset(q.Page.Offset()).
			Find(&results).Error
		if err != nil {
			return nil, err
		}
	}

	return &Page[T]{
		Data:  results,
		Total: total,
		Page:  q.Page.Page,
		Limit: q.Page.Limit,
	}, nil
}
