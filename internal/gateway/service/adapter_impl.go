package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Adapter resolves gateway profiles from storage and forwards provider calls.
// Provider transport is logged here; the concrete capture integrations hang
// off ProviderType.
type Adapter struct {
	db  *gorm.DB
	log *zap.Logger

	repo gatewaydomain.Repository
}

type AdapterParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo gatewaydomain.Repository
}

func NewAdapter(p AdapterParam) gatewaydomain.Adapter {
	return &Adapter{
		db:   p.DB,
		log:  p.Log.Named("gateway.adapter"),
		repo: p.Repo,
	}
}

func (a *Adapter) Configuration(ctx context.Context, gatewayID snowflake.ID) (*gatewaydomain.GatewayProfile, error) {
	profile, err := a.repo.FindByID(ctx, a.db, gatewayID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, gatewaydomain.ErrGatewayNotFound
	}
	return profile, nil
}

func (a *Adapter) Void(ctx context.Context, req gatewaydomain.VoidRequest) error {
	profile, err := a.Configuration(ctx, req.GatewayID)
	if err != nil {
		return err
	}

	a.log.Info("gateway void",
		zap.Int64("gateway_id", int64(req.GatewayID)),
		zap.String("provider_type", profile.ProviderType),
		zap.Int64("order_id", int64(req.OrderID)),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
	)
	return nil
}
