// Package domain contains recurrence state derivation, the billing model
// record governing how a line item rebills, and the one-shot subscription
// override applied to the next recurring charge.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// HoldType attributes a suspended recurrence to its cause.
type HoldType string

const (
	HoldTypeMerchant       HoldType = "merchant"
	HoldTypeUser           HoldType = "user"
	HoldTypeDeclineSalvage HoldType = "decline_salvage"
)

// Status is the externally reported subscription state. It is derived from
// the underlying flags on every read; nothing stores it.
type Status string

const (
	StatusActive    Status = "active"
	StatusRetrying  Status = "retrying"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Flags are the stored recurrence fields a status derives from.
type Flags struct {
	IsRecurring bool
	IsHold      bool
	HoldTypeID  *HoldType
	RetryAt     *time.Time
}

// BillingModelOrder is the recurrence configuration attached to one line
// item: remaining cycles, interval, and the next-cycle overrides.
type BillingModelOrder struct {
	ID                     snowflake.ID     `gorm:"primaryKey"`
	OrderID                snowflake.ID     `gorm:"not null;uniqueIndex:ux_billing_model_owner,priority:2"`
	OwnerType              string           `gorm:"type:text;not null;uniqueIndex:ux_billing_model_owner,priority:1"`
	SubscriptionID         string           `gorm:"type:text;not null;index"`
	CyclesRemaining        *int             `gorm:""`
	FrequencyID            string           `gorm:"type:text;not null;default:'monthly'"`
	IntervalDays           int              `gorm:"not null;default:30"`
	NextRecurringProductID *snowflake.ID    `gorm:""`
	NextRecurringVariantID *snowflake.ID    `gorm:""`
	NextRecurringPrice     *decimal.Decimal `gorm:"type:numeric"`
	NextRecurringQuantity  *int             `gorm:""`
	IsTrial                bool             `gorm:"not null;default:false"`
	IsPrepaid              bool             `gorm:"not null;default:false"`
	PrepaidCycles          int              `gorm:"not null;default:0"`
	DiscountPercent        decimal.Decimal  `gorm:"type:numeric;not null"`
	DiscountAmount         decimal.Decimal  `gorm:"type:numeric;not null"`
	SubscriptionCredit     decimal.Decimal  `gorm:"type:numeric;not null"`
	BillDay                *int             `gorm:""`
	BillMonth              *int             `gorm:""`
	CreatedAt              time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingModelOrder) TableName() string { return "billing_model_orders" }

// SubscriptionOverride holds a pending address and/or payment-source override
// for the next recurring charge only. At most one unconsumed row exists per
// subscription; consumed rows stay for audit but are invisible to normal
// queries.
type SubscriptionOverride struct {
	ID                     snowflake.ID  `gorm:"primaryKey"`
	SubscriptionID         string        `gorm:"type:text;not null;index"`
	AddressID              *snowflake.ID `gorm:""`
	ContactPaymentSourceID *snowflake.ID `gorm:""`
	PromoCode              *string       `gorm:"type:text"`
	ConsumedAt             *time.Time    `gorm:""`
	CreatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionOverride) TableName() string { return "subscription_overrides" }
