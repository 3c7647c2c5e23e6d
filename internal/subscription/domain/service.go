package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrBillingModelNotFound = errors.New("billing_model_not_found")
	ErrLineItemNotFound     = errors.New("line_item_not_found")
	ErrInvalidOwnerType     = errors.New("invalid_owner_type")
	ErrMissingSubscription  = errors.New("missing_subscription_id")
)

type StatusRequest struct {
	OwnerType string       `json:"owner_type"`
	OrderID   snowflake.ID `json:"order_id"`
}

// NextSchedule describes what the next recurring charge will bill and when.
type NextSchedule struct {
	SubscriptionID string           `json:"subscription_id"`
	NextRecurringAt *time.Time      `json:"next_recurring_at"`
	ProductID      snowflake.ID     `json:"product_id"`
	VariantID      *snowflake.ID    `json:"variant_id,omitempty"`
	Quantity       int              `json:"quantity"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	Status         Status           `json:"status"`
}

type NextScheduleRequest struct {
	OwnerType string       `json:"owner_type"`
	OrderID   snowflake.ID `json:"order_id"`
}

type UpsertOverrideRequest struct {
	SubscriptionID         string        `json:"subscription_id"`
	AddressID              *snowflake.ID `json:"address_id,omitempty"`
	ContactPaymentSourceID *snowflake.ID `json:"contact_payment_source_id,omitempty"`
	PromoCode              *string       `json:"promo_code,omitempty"`
}

type Service interface {
	// Status derives the reported subscription state of one line item.
	Status(ctx context.Context, req StatusRequest) (Status, error)

	// NextSchedule resolves the product, quantity and date of the upcoming
	// recurring charge for one line item.
	NextSchedule(ctx context.Context, req NextScheduleRequest) (*NextSchedule, error)

	// UpsertOverride stages a one-shot override for the next recurring
	// charge. Repeated calls replace the pending values; a consumed
	// override is never resurrected.
	UpsertOverride(ctx context.Context, req UpsertOverrideRequest) (*SubscriptionOverride, error)

	// ConsumeOverride atomically claims the pending override, if any, so
	// it applies to exactly one charge.
	ConsumeOverride(ctx context.Context, subscriptionID string) (*SubscriptionOverride, error)
}

type Repository interface {
	FindBillingModel(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) (*BillingModelOrder, error)
	FindBillingModelsBySubscription(ctx context.Context, db *gorm.DB, subscriptionID string) ([]BillingModelOrder, error)
	UpsertBillingModel(ctx context.Context, db *gorm.DB, m *BillingModelOrder) error
	UpdateBillingModelOwner(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerType string, orderID snowflake.ID) error

	FindUnconsumedOverride(ctx context.Context, db *gorm.DB, subscriptionID string) (*SubscriptionOverride, error)
	UpsertOverride(ctx context.Context, db *gorm.DB, o *SubscriptionOverride) (*SubscriptionOverride, error)
	ConsumeOverride(ctx context.Context, db *gorm.DB, subscriptionID string, at time.Time) (*SubscriptionOverride, error)
}
