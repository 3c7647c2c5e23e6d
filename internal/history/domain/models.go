// Package domain contains the order history trail: one note per meaningful
// change, attributed to the acting party.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	"github.com/smallbiznis/recurflow/pkg/db/pagination"
	"gorm.io/gorm"
)

// Note types.
const (
	TypeStop                   = "stop"
	TypeHold                   = "hold"
	TypeRecurringUpsellStopped = "recurring-upsell-stopped"
	TypeConsent                = "consent"
	TypeRefund                 = "refund"
)

// HistoryNote is one immutable line in an order's audit trail. AuthorID is 0
// when the system itself acted.
type HistoryNote struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrderID   snowflake.ID `gorm:"not null;index"`
	AuthorID  snowflake.ID `gorm:"not null;default:0"`
	Type      string       `gorm:"type:text;not null"`
	Status    string       `gorm:"type:text;not null;default:''"`
	Message   string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (HistoryNote) TableName() string { return "order_history_notes" }

type CreateNoteRequest struct {
	OrderID snowflake.ID
	Actor   actor.Actor
	Type    string
	Status  string
	Message string
}

type ListNotesRequest struct {
	OrderID snowflake.ID `form:"order_id"`
	Type    *string      `form:"type"`
	pagination.Pagination
}

type ListNotesResponse struct {
	Data     []*HistoryNote       `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// CreateHistoryNote appends a note. Pass the transaction handle when
	// the note must commit with the change it describes, or nil to use
	// the service's own connection.
	CreateHistoryNote(ctx context.Context, tx *gorm.DB, req CreateNoteRequest) (*HistoryNote, error)

	ListHistoryNotes(ctx context.Context, req ListNotesRequest) (*ListNotesResponse, error)
}
