// Package domain describes payment gateway profiles and the minimal adapter
// surface the lifecycle engine calls through.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrGatewayNotFound = errors.New("gateway_not_found")
	ErrVoidDeclined    = errors.New("gateway_void_declined")
)

// Actions a provider profile may prohibit.
const (
	ActionVoid    = "void"
	ActionRefund  = "refund"
	ActionConsent = "consent"
)

// GatewayProfile is the stored configuration of one payment provider account.
// ProhibitedActions holds action names mapped to true.
type GatewayProfile struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	Alias             string            `gorm:"type:text;not null"`
	ProviderType      string            `gorm:"type:text;not null"`
	ManagesConsent    bool              `gorm:"not null;default:false"`
	ProhibitedActions datatypes.JSONMap `gorm:"type:jsonb"`
	IsActive          bool              `gorm:"not null;default:true"`
	CreatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GatewayProfile) TableName() string { return "gateway_profiles" }

// Cant reports whether the provider prohibits the named action.
func (g GatewayProfile) Cant(action string) bool {
	if g.ProhibitedActions == nil {
		return false
	}
	v, ok := g.ProhibitedActions[action]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

type VoidRequest struct {
	GatewayID snowflake.ID
	OrderID   snowflake.ID
	Amount    decimal.Decimal
	Currency  string
}

// Adapter is the call surface into the payment provider.
type Adapter interface {
	Configuration(ctx context.Context, gatewayID snowflake.ID) (*GatewayProfile, error)
	Void(ctx context.Context, req VoidRequest) error
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*GatewayProfile, error)
}
