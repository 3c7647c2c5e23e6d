package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, price, pricing_type, is_shippable, is_terminal, is_qty_preserved,
		 recur_product_id, is_archived, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]catalogdomain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var products []catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, name, price, pricing_type, is_shippable, is_terminal, is_qty_preserved,
		 recur_product_id, is_archived, created_at, updated_at
		 FROM products WHERE id IN ?`,
		ids,
	).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
