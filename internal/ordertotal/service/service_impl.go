package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/clock"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  ordertotaldomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  ordertotaldomain.Repository
}

func NewService(p ServiceParam) ordertotaldomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ordertotal.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) SetTotal(ctx context.Context, ref ordertotaldomain.Ref, kind ordertotaldomain.Kind, value decimal.Decimal, currencyID string) error {
	if ref.OwnerType != ordertotaldomain.OwnerTypeOrder && ref.OwnerType != ordertotaldomain.OwnerTypeUpsell {
		return ordertotaldomain.ErrInvalidOwnerType
	}
	if currencyID == "" {
		return ordertotaldomain.ErrMissingCurrency
	}

	now := s.clock.Now()
	return s.repo.Upsert(ctx, s.db, &ordertotaldomain.OrderTotal{
		ID:         s.genID.Generate(),
		OrderID:    ref.OrderID,
		OwnerType:  ref.OwnerType,
		Kind:       kind,
		Value:      value,
		CurrencyID: currencyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (s *Service) GetTotal(ctx context.Context, ref ordertotaldomain.Ref, kind ordertotaldomain.Kind) (decimal.Decimal, error) {
	total, err := s.repo.Find(ctx, s.db, ref, kind)
	if err != nil {
		return decimal.Zero, err
	}
	if total == nil {
		return decimal.Zero, nil
	}
	return total.Value, nil
}

func (s *Service) FindTotal(ctx context.Context, ref ordertotaldomain.Ref, kind ordertotaldomain.Kind) (*decimal.Decimal, error) {
	total, err := s.repo.Find(ctx, s.db, ref, kind)
	if err != nil {
		return nil, err
	}
	if total == nil {
		return nil, nil
	}
	value := total.Value
	return &value, nil
}
