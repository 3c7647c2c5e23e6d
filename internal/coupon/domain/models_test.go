package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateDiscountPercent(t *testing.T) {
	coupon := Coupon{
		DiscountTypeID:  DiscountTypePercent,
		DiscountPercent: decimal.NewFromInt(20),
	}

	got := coupon.CalculateDiscount(decimal.NewFromInt(50))
	assert.True(t, got.Equal(decimal.NewFromInt(10)), "20%% of 50 should be 10, got %s", got)
}

func TestCalculateDiscountFlatIgnoresAmount(t *testing.T) {
	coupon := Coupon{
		DiscountTypeID: DiscountTypeFlat,
		DiscountAmount: decimal.NewFromInt(7),
	}

	for _, amount := range []int64{50, 5, 700} {
		got := coupon.CalculateDiscount(decimal.NewFromInt(amount))
		assert.True(t, got.Equal(decimal.NewFromInt(7)), "flat discount must be 7 for amount %d, got %s", amount, got)
	}
}

func TestCalculateDiscountedAmountClampsAtZero(t *testing.T) {
	coupon := Coupon{
		DiscountTypeID: DiscountTypeFlat,
		DiscountAmount: decimal.NewFromInt(100),
	}

	got := coupon.CalculateDiscountedAmount(decimal.NewFromInt(30))
	assert.True(t, got.IsZero())
}

func TestCalculateDiscountedShippingAmount(t *testing.T) {
	shippingCoupon := Coupon{
		DiscountTypeID:  DiscountTypePercent,
		DiscountPercent: decimal.NewFromInt(50),
		BehaviorID:      BehaviorShipping,
	}
	got := shippingCoupon.CalculateDiscountedShippingAmount(decimal.NewFromInt(10))
	assert.True(t, got.Equal(decimal.NewFromInt(5)))

	freeShipping := Coupon{
		DiscountTypeID: DiscountTypeFlat,
		BehaviorID:     BehaviorProduct,
		IsFreeShipping: true,
	}
	got = freeShipping.CalculateDiscountedShippingAmount(decimal.NewFromInt(10))
	assert.True(t, got.IsZero(), "free shipping must force shipping to zero")

	plain := Coupon{DiscountTypeID: DiscountTypeFlat, BehaviorID: BehaviorProduct}
	got = plain.CalculateDiscountedShippingAmount(decimal.NewFromInt(10))
	assert.True(t, got.Equal(decimal.NewFromInt(10)), "product coupons must leave shipping untouched")
}

func TestIsExpiredUsesCouponTimezone(t *testing.T) {
	expiry := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	coupon := Coupon{
		ExpirationDate: &expiry,
		Timezone:       "America/Los_Angeles",
	}

	// Midnight UTC June 2 is still June 1 in Los Angeles.
	stillValid := time.Date(2024, 6, 2, 1, 0, 0, 0, time.UTC)
	assert.False(t, coupon.IsExpired(stillValid))

	expired := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	assert.True(t, coupon.IsExpired(expired))
}

func TestIsExpiredWithoutDate(t *testing.T) {
	coupon := Coupon{}
	assert.False(t, coupon.IsExpired(time.Now()))
}
