// Package domain computes the chargeable unit price of a line item from its
// ledger, billing model and coupon state. The precedence of the discount
// chain is fixed; each step operates on the output of the one before it.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrLineItemNotFound = errors.New("line_item_not_found")
	ErrInvalidOwnerType = errors.New("invalid_owner_type")
)

var hundred = decimal.NewFromInt(100)

// Input carries everything the unit price derivation needs, already resolved
// from storage.
type Input struct {
	UnitPrice             decimal.Decimal
	CatalogPrice          decimal.Decimal
	Quantity              int
	IsBundle              bool
	HasVariant            bool
	IsTrialWorkflow       bool
	RebillDepth           int
	CouponDiscount        decimal.Decimal
	BillingModelDiscount  decimal.Decimal
	RebillDiscountPercent decimal.Decimal
	RetryDiscountPercent  *decimal.Decimal
	SubscriptionCredit    decimal.Decimal
}

// PerUnitCouponDiscount spreads a whole-line coupon discount across units. A
// zero quantity resolves to zero, never an error.
func PerUnitCouponDiscount(total decimal.Decimal, quantity int) decimal.Decimal {
	if quantity == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(quantity)))
}

// CalculateUnitPrice runs the discount chain:
//
//  1. base is the purchase-time unit price, unless the re-derivation branch
//     applies (discounts present, not a bundle, no variant, catalog price
//     still equals the purchase price), in which case the raw catalog price
//     becomes the base.
//  2. subtract the product discount (per-unit coupon + billing model).
//  3. subtract the rebill percent, then the retry percent when one is set.
//  4. subtract the flat subscription credit.
//
// The result is intentionally not clamped; presentation boundaries decide
// what a negative price means.
func CalculateUnitPrice(in Input) decimal.Decimal {
	base := in.UnitPrice
	productDiscount := PerUnitCouponDiscount(in.CouponDiscount, in.Quantity).Add(in.BillingModelDiscount)

	rederive := in.CouponDiscount.Add(in.BillingModelDiscount).IsPositive() &&
		!in.IsBundle && !in.HasVariant &&
		in.CatalogPrice.Equal(in.UnitPrice)
	if rederive {
		base = in.CatalogPrice
		// On rebills the catalog base already embeds the billing model
		// discount, so it comes back out of the product discount.
		// TODO: confirm with product whether nested bundle+variant
		// rebills should also take this branch; the condition below
		// does not look at variants.
		if in.RebillDepth > 0 && in.BillingModelDiscount.IsPositive() && !in.IsTrialWorkflow {
			productDiscount = productDiscount.Sub(in.BillingModelDiscount)
		}
	}

	price := base.Sub(productDiscount)
	price = price.Sub(price.Mul(in.RebillDiscountPercent).Div(hundred))
	if in.RetryDiscountPercent != nil {
		price = price.Sub(price.Mul(*in.RetryDiscountPercent).Div(hundred))
	}
	return price.Sub(in.SubscriptionCredit)
}

type ComputeRequest struct {
	OwnerType string       `json:"owner_type"`
	OrderID   snowflake.ID `json:"order_id"`
}

// Result is the computed pricing of one line item.
type Result struct {
	UnitPrice           decimal.Decimal `json:"unit_price"`
	CalculatedUnitPrice decimal.Decimal `json:"calculated_unit_price"`
	Quantity            int             `json:"quantity"`
	LineTotal           decimal.Decimal `json:"line_total"`
	CurrencyID          string          `json:"currency_id"`
}

type Service interface {
	// ComputeLineItemPricing resolves the line item's ledger, billing
	// model and catalog entry and runs the discount chain.
	ComputeLineItemPricing(ctx context.Context, req ComputeRequest) (*Result, error)
}
