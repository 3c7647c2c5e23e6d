package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPerUnitCouponDiscount(t *testing.T) {
	assert.True(t, PerUnitCouponDiscount(dec("10"), 4).Equal(dec("2.5")))
	assert.True(t, PerUnitCouponDiscount(dec("10"), 0).IsZero(), "zero quantity must not divide")
}

func TestCalculateUnitPriceFullChain(t *testing.T) {
	// Coupon 10 and billing model 5 come off the base, then the 10 percent
	// rebill discount, then the flat 2 credit: ((100-15) * 0.9) - 2.
	got := CalculateUnitPrice(Input{
		UnitPrice:             dec("100"),
		CatalogPrice:          dec("120"),
		Quantity:              1,
		RebillDepth:           1,
		CouponDiscount:        dec("10"),
		BillingModelDiscount:  dec("5"),
		RebillDiscountPercent: dec("10"),
		SubscriptionCredit:    dec("2"),
	})
	assert.True(t, got.Equal(dec("74.5")), "got %s", got)
}

func TestCalculateUnitPriceRetryPercentOnlyWhenSet(t *testing.T) {
	in := Input{
		UnitPrice:    dec("100"),
		CatalogPrice: dec("120"),
		Quantity:     1,
	}
	assert.True(t, CalculateUnitPrice(in).Equal(dec("100")))

	retry := dec("25")
	in.RetryDiscountPercent = &retry
	assert.True(t, CalculateUnitPrice(in).Equal(dec("75")))
}

func TestCalculateUnitPriceRederivesFromCatalog(t *testing.T) {
	// Catalog price still equals the purchase price, so the catalog becomes
	// the base and, on a rebill, the billing model discount is backed out of
	// the product discount.
	got := CalculateUnitPrice(Input{
		UnitPrice:            dec("100"),
		CatalogPrice:         dec("100"),
		Quantity:             1,
		RebillDepth:          1,
		BillingModelDiscount: dec("5"),
	})
	assert.True(t, got.Equal(dec("100")), "got %s", got)

	// On the initial charge the discount stays in.
	initial := CalculateUnitPrice(Input{
		UnitPrice:            dec("100"),
		CatalogPrice:         dec("100"),
		Quantity:             1,
		RebillDepth:          0,
		BillingModelDiscount: dec("5"),
	})
	assert.True(t, initial.Equal(dec("95")), "got %s", initial)
}

func TestCalculateUnitPriceRederivationSkipsBundlesAndVariants(t *testing.T) {
	base := Input{
		UnitPrice:            dec("100"),
		CatalogPrice:         dec("100"),
		Quantity:             1,
		RebillDepth:          1,
		BillingModelDiscount: dec("5"),
	}

	bundled := base
	bundled.IsBundle = true
	assert.True(t, CalculateUnitPrice(bundled).Equal(dec("95")))

	withVariant := base
	withVariant.HasVariant = true
	assert.True(t, CalculateUnitPrice(withVariant).Equal(dec("95")))

	trial := base
	trial.IsTrialWorkflow = true
	assert.True(t, CalculateUnitPrice(trial).Equal(dec("95")), "trial workflows keep the discount in")
}

func TestCalculateUnitPriceNeverClamps(t *testing.T) {
	got := CalculateUnitPrice(Input{
		UnitPrice:          dec("5"),
		CatalogPrice:       dec("50"),
		Quantity:           1,
		CouponDiscount:     dec("10"),
		SubscriptionCredit: dec("3"),
	})
	assert.True(t, got.Equal(dec("-8")), "negative results pass through, got %s", got)
}
