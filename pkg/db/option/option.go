package option

import (
	"fmt"

	"github.com/smallbiznis/recurflow/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a single comparison condition.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// ApplyPagination applies cursor pagination. One extra row is fetched so the
// caller can detect whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}

		if p.PageToken != "" {
			cursor, err := pagination.DecodeCursor(p.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				db = db.Where("created_at < ?", cursor.CreatedAt)
			}
		}

		return db.Limit(size + 1)
	})
}

// WithSortBy applies an ORDER BY clause.
func WithSortBy(clause string) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if clause == "" {
			return db
		}
		return db.Order(clause)
	})
}

// WithQuerySortBy validates the requested sort field against an allow list
// before building the clause.
func WithQuerySortBy(field, direction string, allowed map[string]bool) string {
	if !allowed[field] {
		return ""
	}
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}
	return fmt.Sprintf("%s %s", field, direction)
}
