// Package domain contains the per-line-item totals ledger. Each named total
// kind is stored as its own row and is independently recomputed and replaced,
// never summed in place.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OwnerType tells which table the total row belongs to.
type OwnerType string

const (
	OwnerTypeOrder  OwnerType = "order"
	OwnerTypeUpsell OwnerType = "upsell"
)

// Kind is a named total component.
type Kind string

const (
	KindSubtotal           Kind = "subtotal"
	KindShipping           Kind = "shipping"
	KindTax                Kind = "tax"
	KindVATTax             Kind = "vat_tax"
	KindLineItemTax        Kind = "line_item_tax"
	KindLineItemTaxPercent Kind = "line_item_tax_percent"
	KindVolumeDiscount     Kind = "volume_discount"
	KindRestockingFee      Kind = "restocking_fee"
	KindRebillDiscount     Kind = "rebill_discount"
	KindPrepaidDiscount    Kind = "prepaid_discount"
	KindStepDownDiscount   Kind = "step_down_discount"
	KindCouponDiscount     Kind = "coupon_discount"
	KindCouponFlatDiscount Kind = "coupon_flat_discount"
	KindBillingModelDiscount           Kind = "billing_model_discount"
	KindBillingModelSubscriptionCredit Kind = "billing_model_subscription_credit"
	KindNonTaxableTotal    Kind = "non_taxable_total"
	KindTaxableTotal       Kind = "taxable_total"
)

// OrderTotal is one ledger row: a single named component for one line item in
// one currency.
type OrderTotal struct {
	ID         snowflake.ID    `gorm:"primaryKey"`
	OrderID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_order_totals_kind,priority:2"`
	OwnerType  OwnerType       `gorm:"type:text;not null;uniqueIndex:ux_order_totals_kind,priority:1"`
	Kind       Kind            `gorm:"type:text;not null;uniqueIndex:ux_order_totals_kind,priority:3"`
	Value      decimal.Decimal `gorm:"type:numeric;not null"`
	CurrencyID string          `gorm:"type:text;not null"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderTotal) TableName() string { return "order_totals" }

// Ref addresses one line item's ledger.
type Ref struct {
	OrderID   snowflake.ID
	OwnerType OwnerType
}

// ValueOrZero reads a possibly absent ledger row as an additive value.
func ValueOrZero(t *OrderTotal) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return t.Value
}
