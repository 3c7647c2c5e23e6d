package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingeventdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *billingeventdomain.BillingEvent) error {
	return db.WithContext(ctx).Create(e).Error
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, limit int) ([]billingeventdomain.BillingEvent, error) {
	var events []billingeventdomain.BillingEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, event_type, payload, dedupe_key, published, published_at, created_at
		 FROM billing_events
		 WHERE published = ?
		 ORDER BY id ASC
		 LIMIT ?`,
		false,
		limit,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_events SET published = ?, published_at = ? WHERE id = ?`,
		true,
		at,
		id,
	).Error
}
