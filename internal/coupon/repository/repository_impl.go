package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	coupondomain "github.com/smallbiznis/recurflow/internal/coupon/domain"
	"gorm.io/gorm"
)

const couponColumns = `id, code, type_id, discount_type_id, behavior_id, discount_amount,
	 discount_percent, max_use, customer_use, limit_code_global, limit_code_user,
	 is_free_shipping, is_bogo, is_buy_x_get_y, expiration_date, timezone, created_at, updated_at`

type repo struct{}

func Provide() coupondomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*coupondomain.Coupon, error) {
	var coupon coupondomain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons WHERE id = ?`,
		id,
	).Scan(&coupon).Error
	if err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, nil
	}
	return &coupon, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*coupondomain.Coupon, error) {
	var coupon coupondomain.Coupon
	err := db.WithContext(ctx).Raw(
		`SELECT `+couponColumns+` FROM coupons WHERE code = ?`,
		code,
	).Scan(&coupon).Error
	if err != nil {
		return nil, err
	}
	if coupon.ID == 0 {
		return nil, nil
	}
	return &coupon, nil
}
