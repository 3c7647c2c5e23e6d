// Package domain contains main orders and upsell line items. The two are
// concrete variants sharing an embedded recurrence struct; shared behavior is
// expressed through the LineItem interface rather than inheritance.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"gorm.io/gorm"
)

// OrderStatus is the processing status of a line item.
type OrderStatus string

const (
	StatusNew      OrderStatus = "new"
	StatusApproved OrderStatus = "approved"
	StatusDeclined OrderStatus = "declined"
	StatusShipped  OrderStatus = "shipped"
	StatusPending  OrderStatus = "pending"
	StatusRefunded OrderStatus = "refunded"
)

// RefundType refines the refunded family.
type RefundType string

const (
	RefundTypeNone     RefundType = "none"
	RefundTypePartial  RefundType = "partial"
	RefundTypeFull     RefundType = "full"
	RefundTypeVoid     RefundType = "void"
	RefundTypeReversed RefundType = "reversed"
)

// OwnerType tags which table a dependent row (total, bundle item, custom
// option, billing model) belongs to.
const (
	OwnerTypeOrder  = "order"
	OwnerTypeUpsell = "upsell"
)

// Recurrence carries the rebill-chain fields shared by orders and upsells.
// SubscriptionID is the correlation key of the whole chain; AncestorID of a
// depth-0 item is its own id.
type Recurrence struct {
	SubscriptionID           string                        `gorm:"type:text;not null;index"`
	AncestorID               snowflake.ID                  `gorm:"not null;index"`
	ParentID                 *snowflake.ID                 `gorm:"index"`
	RebillDepth              int                           `gorm:"not null;default:0"`
	IsRecurring              bool                          `gorm:"not null;default:false"`
	IsHold                   bool                          `gorm:"not null;default:false"`
	HoldTypeID               *subscriptiondomain.HoldType  `gorm:"type:text"`
	HoldDate                 *time.Time                    `gorm:""`
	RecurAt                  *time.Time                    `gorm:""`
	RetryAt                  *time.Time                    `gorm:""`
	CustomRecurringProductID *snowflake.ID                 `gorm:""`
	CustomRecurringVariantID *snowflake.ID                 `gorm:""`
}

// Flags projects the recurrence fields the status derivation consumes.
func (r Recurrence) Flags() subscriptiondomain.Flags {
	return subscriptiondomain.Flags{
		IsRecurring: r.IsRecurring,
		IsHold:      r.IsHold,
		HoldTypeID:  r.HoldTypeID,
		RetryAt:     r.RetryAt,
	}
}

// Order is the main line item of a transaction.
type Order struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	CustomerID    snowflake.ID    `gorm:"not null;index"`
	ProductID     snowflake.ID    `gorm:"not null;index"`
	VariantID     *snowflake.ID   `gorm:""`
	ProductName   string          `gorm:"type:text;not null"`
	Quantity      int             `gorm:"not null;default:1"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric;not null"`
	OfferID       *snowflake.ID   `gorm:""`
	StepNumber    *int            `gorm:""`
	StatusID      OrderStatus     `gorm:"type:text;not null;default:'new'"`
	RefundTypeID  RefundType      `gorm:"type:text;not null;default:'none'"`
	Recurrence    `gorm:"embedded"`
	CurrencyID    string          `gorm:"type:text;not null"`
	CurrencyValue decimal.Decimal `gorm:"type:numeric;not null"`
	TotalRevenue  decimal.Decimal `gorm:"type:numeric;not null"`
	GatewayID     *snowflake.ID   `gorm:"index"`
	PaymentMethod string          `gorm:"type:text;not null;default:''"`

	IsConsentRequired       bool       `gorm:"not null;default:false"`
	ProviderConsentWorkflow bool       `gorm:"not null;default:false"`
	ConsentNotifiedAt       *time.Time `gorm:""`

	IsSplitShippable bool   `gorm:"not null;default:false"`
	TrackingNumber   string `gorm:"type:text;not null;default:''"`
	IsShippable      *bool  `gorm:""`

	IsArchived  bool           `gorm:"not null;default:false"`
	PurchasedAt time.Time      `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// Upsell is a secondary line item attached to a main order, recurring
// independently.
type Upsell struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	OrderID       snowflake.ID    `gorm:"not null;index"`
	ProductID     snowflake.ID    `gorm:"not null;index"`
	VariantID     *snowflake.ID   `gorm:""`
	ProductName   string          `gorm:"type:text;not null"`
	Quantity      int             `gorm:"not null;default:1"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric;not null"`
	OfferID       *snowflake.ID   `gorm:""`
	StepNumber    *int            `gorm:""`
	StatusID      OrderStatus     `gorm:"type:text;not null;default:'new'"`
	RefundTypeID  RefundType      `gorm:"type:text;not null;default:'none'"`
	IsAddOn       bool            `gorm:"not null;default:false"`
	Recurrence    `gorm:"embedded"`
	CurrencyID    string          `gorm:"type:text;not null"`
	CurrencyValue decimal.Decimal `gorm:"type:numeric;not null"`

	TrackingNumber string `gorm:"type:text;not null;default:''"`
	IsShippable    *bool  `gorm:""`

	IsArchived  bool           `gorm:"not null;default:false"`
	PurchasedAt time.Time      `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

// TableName sets the database table name.
func (Upsell) TableName() string { return "upsells" }

// LineItem is the shared capability set of orders and upsells.
type LineItem interface {
	ItemID() snowflake.ID
	ItemOwnerType() string
	ChainID() string
	ItemProductID() snowflake.ID
	ItemQuantity() int
	RecurrenceFlags() subscriptiondomain.Flags
	NextRecurringAt() *time.Time
	Tracking() string
	ShippableOverride() *bool
}

func (o *Order) ItemID() snowflake.ID       { return o.ID }
func (o *Order) ItemOwnerType() string      { return OwnerTypeOrder }
func (o *Order) ChainID() string            { return o.SubscriptionID }
func (o *Order) ItemProductID() snowflake.ID { return o.ProductID }
func (o *Order) ItemQuantity() int          { return o.Quantity }
func (o *Order) RecurrenceFlags() subscriptiondomain.Flags {
	return o.Recurrence.Flags()
}
func (o *Order) NextRecurringAt() *time.Time { return o.RecurAt }
func (o *Order) Tracking() string            { return o.TrackingNumber }
func (o *Order) ShippableOverride() *bool    { return o.IsShippable }

func (u *Upsell) ItemID() snowflake.ID       { return u.ID }
func (u *Upsell) ItemOwnerType() string      { return OwnerTypeUpsell }
func (u *Upsell) ChainID() string            { return u.SubscriptionID }
func (u *Upsell) ItemProductID() snowflake.ID { return u.ProductID }
func (u *Upsell) ItemQuantity() int          { return u.Quantity }
func (u *Upsell) RecurrenceFlags() subscriptiondomain.Flags {
	return u.Recurrence.Flags()
}
func (u *Upsell) NextRecurringAt() *time.Time { return u.RecurAt }
func (u *Upsell) Tracking() string            { return u.TrackingNumber }
func (u *Upsell) ShippableOverride() *bool    { return u.IsShippable }

// OrderBundleItem marks which product of a bundle is the billed main within
// the current or next cycle.
type OrderBundleItem struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrderID   snowflake.ID `gorm:"not null;index"`
	OwnerType string       `gorm:"type:text;not null"`
	ProductID snowflake.ID `gorm:"not null;index"`
	Cycle     string       `gorm:"type:text;not null;default:'current'"`
	IsMain    bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderBundleItem) TableName() string { return "order_bundle_items" }

// Bundle cycle tags.
const (
	BundleCycleCurrent = "current"
	BundleCycleNext    = "next"
)

// OrderCustomOption is a customer-chosen option attached to a line item's
// subscription.
type OrderCustomOption struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID string       `gorm:"type:text;not null;index"`
	OrderID        snowflake.ID `gorm:"not null;index"`
	OwnerType      string       `gorm:"type:text;not null"`
	Name           string       `gorm:"type:text;not null"`
	Value          string       `gorm:"type:text;not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderCustomOption) TableName() string { return "order_custom_options" }
