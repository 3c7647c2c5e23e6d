// Package domain contains the read-only product catalog consumed by the
// billing pipeline.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PricingType distinguishes standalone products from bundles.
type PricingType string

const (
	PricingTypeStandard PricingType = "standard"
	PricingTypeBundle   PricingType = "bundle"
)

// Product is the catalog entry referenced by orders and upsells.
type Product struct {
	ID             snowflake.ID    `gorm:"primaryKey"`
	SKU            string          `gorm:"type:text;not null;uniqueIndex"`
	Name           string          `gorm:"type:text;not null"`
	Price          decimal.Decimal `gorm:"type:numeric;not null"`
	PricingType    PricingType     `gorm:"type:text;not null;default:'standard'"`
	IsShippable    bool            `gorm:"not null;default:false"`
	IsTerminal     bool            `gorm:"not null;default:false"`
	IsQtyPreserved bool            `gorm:"not null;default:false"`
	RecurProductID *snowflake.ID   `gorm:"index"`
	IsArchived     bool            `gorm:"not null;default:false"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

func (p Product) IsBundle() bool {
	return p.PricingType == PricingTypeBundle
}

// RecursToOther reports whether the product bills a different product on the
// next cycle.
func (p Product) RecursToOther() bool {
	return p.RecurProductID != nil && *p.RecurProductID != p.ID
}
