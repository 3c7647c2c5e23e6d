package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, total *OrderTotal) error
	Find(ctx context.Context, db *gorm.DB, ref Ref, kind Kind) (*OrderTotal, error)
	// UpdateValue rewrites the value of an existing row, keeping its
	// currency. Returns the number of rows touched.
	UpdateValue(ctx context.Context, db *gorm.DB, ref Ref, kind Kind, value decimal.Decimal) (int64, error)
}
