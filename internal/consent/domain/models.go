// Package domain tracks rebill consent. One row per order is the whole fact:
// its presence means consent was granted. The storage uniqueness constraint
// on the order id is the only protection against concurrent applies.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrConsentNotRequired         = errors.New("consent_not_required")
	ErrConsentAlreadyApplied      = errors.New("consent_already_applied")
	ErrConsentWithoutNotification = errors.New("consent_without_notification")
	ErrProviderActionNotAllowed   = errors.New("provider_action_not_allowed")
)

// ConsentType distinguishes how the consent reached us.
type ConsentType string

const (
	ConsentTypeAPI  ConsentType = "api"
	ConsentTypeCall ConsentType = "call"
)

// OrderConsent records granted rebill consent. The order id is the primary
// key; a duplicate insert is the already-applied signal, not a failure.
type OrderConsent struct {
	OrderID        snowflake.ID      `gorm:"primaryKey"`
	IPAddress      string            `gorm:"type:text;not null;default:''"`
	APIUserID      *snowflake.ID     `gorm:""`
	UserID         *snowflake.ID     `gorm:""`
	HTTPReferrer   string            `gorm:"type:text;not null;default:''"`
	RequestHeaders datatypes.JSONMap `gorm:"type:jsonb"`
	ConsentTypeID  ConsentType       `gorm:"type:text;not null;default:'api'"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderConsent) TableName() string { return "order_consents" }

type ApplyRequest struct {
	OrderID        snowflake.ID
	IPAddress      string
	HTTPReferrer   string
	RequestHeaders datatypes.JSONMap
	// ConsentedDate backdates the record when an external provider informs
	// us after the fact. Nil means "now".
	ConsentedDate *time.Time
}

type Service interface {
	// ApplyConsent records consent for the order, or reports why it cannot.
	ApplyConsent(ctx context.Context, act actor.Actor, req ApplyRequest) (*OrderConsent, error)

	// CancelConsent stops the order's recurrence and records a consent
	// history note with the outcome. The stop failure itself is swallowed;
	// the boolean is the whole report.
	CancelConsent(ctx context.Context, act actor.Actor, orderID snowflake.ID) (bool, error)

	// DeleteConsent removes a recorded consent.
	DeleteConsent(ctx context.Context, act actor.Actor, orderID snowflake.ID) error

	// CanRebill gates external rebill-charge attempts.
	CanRebill(ctx context.Context, orderID snowflake.ID) (bool, error)
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*OrderConsent, error)
	Insert(ctx context.Context, db *gorm.DB, c *OrderConsent) error
	Delete(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
}
