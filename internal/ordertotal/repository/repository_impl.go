package repository

import (
	"context"

	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ordertotaldomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, total *ordertotaldomain.OrderTotal) error {
	updated, err := r.UpdateValue(ctx, db,
		ordertotaldomain.Ref{OrderID: total.OrderID, OwnerType: total.OwnerType},
		total.Kind,
		total.Value,
	)
	if err != nil {
		return err
	}
	if updated > 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO order_totals (id, order_id, owner_type, kind, value, currency_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		total.ID,
		total.OrderID,
		total.OwnerType,
		total.Kind,
		total.Value,
		total.CurrencyID,
		total.CreatedAt,
		total.UpdatedAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, ref ordertotaldomain.Ref, kind ordertotaldomain.Kind) (*ordertotaldomain.OrderTotal, error) {
	var total ordertotaldomain.OrderTotal
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, owner_type, kind, value, currency_id, created_at, updated_at
		 FROM order_totals
		 WHERE owner_type = ? AND order_id = ? AND kind = ?`,
		ref.OwnerType,
		ref.OrderID,
		kind,
	).Scan(&total).Error
	if err != nil {
		return nil, err
	}
	if total.ID == 0 {
		return nil, nil
	}
	return &total, nil
}

func (r *repo) UpdateValue(ctx context.Context, db *gorm.DB, ref ordertotaldomain.Ref, kind ordertotaldomain.Kind, value decimal.Decimal) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE order_totals SET value = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE owner_type = ? AND order_id = ? AND kind = ?`,
		value,
		ref.OwnerType,
		ref.OrderID,
		kind,
	)
	return result.RowsAffected, result.Error
}
