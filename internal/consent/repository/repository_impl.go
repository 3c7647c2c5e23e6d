package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() consentdomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*consentdomain.OrderConsent, error) {
	var consent consentdomain.OrderConsent
	err := db.WithContext(ctx).Raw(
		`SELECT order_id, ip_address, api_user_id, user_id, http_referrer, request_headers, consent_type_id, created_at
		 FROM order_consents WHERE order_id = ?`,
		orderID,
	).Scan(&consent).Error
	if err != nil {
		return nil, err
	}
	if consent.OrderID == 0 {
		return nil, nil
	}
	return &consent, nil
}

// Insert is a plain INSERT on purpose. The primary key constraint is the race
// arbiter; callers inspect the duplicate-key error themselves.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *consentdomain.OrderConsent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_consents
		 (order_id, ip_address, api_user_id, user_id, http_referrer, request_headers, consent_type_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.OrderID, c.IPAddress, c.APIUserID, c.UserID, c.HTTPReferrer, c.RequestHeaders, c.ConsentTypeID, c.CreatedAt,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM order_consents WHERE order_id = ?`, orderID,
	).Error
}
