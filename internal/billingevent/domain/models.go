// Package domain contains the transactional outbox for billing lifecycle
// events. Events are written in the same transaction as the state change that
// caused them and published by a separate drain loop.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event topics.
const (
	TopicSubscriptionCancelled = "subscription.cancelled"
	TopicOrderVoided           = "order.voided"
	TopicConsentReceived       = "consent.received"
)

// BillingEvent is one outbox row. DedupeKey makes retried writers idempotent.
type BillingEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	EventType   string            `gorm:"type:text;not null;index"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_billing_event_dedupe"`
	Published   bool              `gorm:"not null;default:false;index"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingEvent) TableName() string { return "billing_events" }

type PublishRequest struct {
	EventType string            `json:"event_type"`
	Payload   datatypes.JSONMap `json:"payload"`
	DedupeKey *string           `json:"dedupe_key,omitempty"`
}

type Service interface {
	// Publish appends one event to the outbox. Use the db handle of the
	// surrounding transaction so the event commits with the state change.
	// A duplicate dedupe key is a no-op, not an error.
	Publish(ctx context.Context, db *gorm.DB, req PublishRequest) error

	// Drain delivers pending events to the dispatcher and marks them
	// published. It returns the number delivered.
	Drain(ctx context.Context, limit int) (int, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, e *BillingEvent) error
	ListPending(ctx context.Context, db *gorm.DB, limit int) ([]BillingEvent, error)
	MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
