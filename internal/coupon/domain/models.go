// Package domain contains coupon records and their discount math.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// CouponType scopes a coupon to a whole order or a single product.
type CouponType string

const (
	CouponTypeOrder   CouponType = "order"
	CouponTypeProduct CouponType = "product"
)

// DiscountType governs which of the two discount fields is in effect; they
// are never combined.
type DiscountType string

const (
	DiscountTypeFlat    DiscountType = "flat"
	DiscountTypePercent DiscountType = "percent"
)

// Behavior names what the discount applies against.
type Behavior string

const (
	BehaviorProduct  Behavior = "product"
	BehaviorTotal    Behavior = "total"
	BehaviorShipping Behavior = "shipping"
)

type Coupon struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	Code            string          `gorm:"type:text;not null;uniqueIndex"`
	TypeID          CouponType      `gorm:"type:text;not null"`
	DiscountTypeID  DiscountType    `gorm:"type:text;not null"`
	BehaviorID      Behavior        `gorm:"type:text;not null;default:'product'"`
	DiscountAmount  decimal.Decimal `gorm:"type:numeric;not null"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric;not null"`
	MaxUse          int             `gorm:"not null;default:0"`
	CustomerUse     int             `gorm:"not null;default:0"`
	LimitCodeGlobal int             `gorm:"not null;default:0"`
	LimitCodeUser   int             `gorm:"not null;default:0"`
	IsFreeShipping  bool            `gorm:"not null;default:false"`
	IsBogo          bool            `gorm:"not null;default:false"`
	IsBuyXGetY      bool            `gorm:"not null;default:false"`
	ExpirationDate  *time.Time      `gorm:""`
	Timezone        string          `gorm:"type:text;not null;default:'UTC'"`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Coupon) TableName() string { return "coupons" }

func (c Coupon) IsFlatAmount() bool {
	return c.DiscountTypeID == DiscountTypeFlat
}

func (c Coupon) IsPercent() bool {
	return c.DiscountTypeID == DiscountTypePercent
}

// IsExpired evaluates the expiration date in the coupon's own timezone, not
// server-local time.
func (c Coupon) IsExpired(now time.Time) bool {
	if c.ExpirationDate == nil {
		return false
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}

	expiry := time.Date(
		c.ExpirationDate.Year(), c.ExpirationDate.Month(), c.ExpirationDate.Day(),
		23, 59, 59, 0, loc,
	)
	return now.After(expiry)
}

// CalculateDiscount returns the discount for the given amount. Flat coupons
// return the full flat amount regardless of quantity; callers divide across
// units.
func (c Coupon) CalculateDiscount(amount decimal.Decimal) decimal.Decimal {
	switch {
	case c.IsFlatAmount():
		return c.DiscountAmount
	case c.IsPercent():
		return amount.Mul(c.DiscountPercent).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero
	}
}

// CalculateDiscountedAmount applies the discount and clamps at zero.
func (c Coupon) CalculateDiscountedAmount(amount decimal.Decimal) decimal.Decimal {
	discounted := amount.Sub(c.CalculateDiscount(amount))
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}

// CalculateDiscountedShippingAmount discounts shipping only when the coupon
// targets shipping; free-shipping coupons force it to zero. Never negative.
func (c Coupon) CalculateDiscountedShippingAmount(amount decimal.Decimal) decimal.Decimal {
	switch {
	case c.BehaviorID == BehaviorShipping:
		amount = c.CalculateDiscountedAmount(amount)
	case c.IsFreeShipping:
		amount = decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
