package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() gatewaydomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*gatewaydomain.GatewayProfile, error) {
	var profile gatewaydomain.GatewayProfile
	err := db.WithContext(ctx).Raw(
		`SELECT id, alias, provider_type, manages_consent, prohibited_actions, is_active, created_at, updated_at
		 FROM gateway_profiles WHERE id = ?`,
		id,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, nil
	}
	return &profile, nil
}
