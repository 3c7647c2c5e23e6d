package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Coupon, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Coupon, error)
}

var (
	ErrCouponNotFound = errors.New("coupon_not_found")
	ErrCouponExpired  = errors.New("coupon_expired")
)
