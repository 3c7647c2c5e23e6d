package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	"github.com/smallbiznis/recurflow/internal/clock"
	"github.com/smallbiznis/recurflow/internal/config"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	"github.com/smallbiznis/recurflow/internal/notification"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	"github.com/smallbiznis/recurflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	clock clock.Clock

	repo      consentdomain.Repository
	orderRepo orderdomain.Repository
	orders    orderdomain.Service
	gateway   gatewaydomain.Adapter
	events    billingeventdomain.Service
	history   historydomain.Service
	notify    notification.Dispatcher
}

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	Repo      consentdomain.Repository
	OrderRepo orderdomain.Repository
	Orders    orderdomain.Service
	Gateway   gatewaydomain.Adapter
	Events    billingeventdomain.Service
	History   historydomain.Service
	Notify    notification.Dispatcher
}

func NewService(p ServiceParam) consentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("consent.service"),
		cfg:       p.Cfg,
		clock:     p.Clock,
		repo:      p.Repo,
		orderRepo: p.OrderRepo,
		orders:    p.Orders,
		gateway:   p.Gateway,
		events:    p.Events,
		history:   p.History,
		notify:    p.Notify,
	}
}

// ApplyConsent walks the consent state machine in a fixed order. Every branch
// before the insert is a read; the insert itself settles concurrent appliers
// through the primary key constraint.
func (s *Service) ApplyConsent(ctx context.Context, act actor.Actor, req consentdomain.ApplyRequest) (*consentdomain.OrderConsent, error) {
	conn := s.db.WithContext(ctx)

	order, err := s.orderRepo.FindOrderByID(ctx, conn, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}

	if !order.IsConsentRequired {
		// An external provider telling us about consent after the fact is
		// harmless; an unsolicited apply is a caller bug.
		if req.ConsentedDate != nil {
			return nil, nil
		}
		return nil, consentdomain.ErrConsentNotRequired
	}

	existing, err := s.repo.Find(ctx, conn, req.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, consentdomain.ErrConsentAlreadyApplied
	}

	consentedAt := s.clock.Now().UTC()
	if req.ConsentedDate != nil && order.ProviderConsentWorkflow {
		consentedAt = req.ConsentedDate.UTC()
	}

	if !s.cfg.ConsentServiceEnabled && order.ConsentNotifiedAt == nil && !order.ProviderConsentWorkflow {
		return nil, consentdomain.ErrConsentWithoutNotification
	}

	if order.GatewayID != nil {
		profile, err := s.gateway.Configuration(ctx, *order.GatewayID)
		if err != nil && err != gatewaydomain.ErrGatewayNotFound {
			return nil, err
		}
		if profile != nil && profile.ManagesConsent {
			if (act.IsExternal() && !s.cfg.ConsentServiceEnabled) || order.ProviderConsentWorkflow {
				return nil, consentdomain.ErrProviderActionNotAllowed
			}
		}
	}

	consent := &consentdomain.OrderConsent{
		OrderID:        order.ID,
		IPAddress:      req.IPAddress,
		APIUserID:      act.APIUserID,
		UserID:         act.UserID,
		HTTPReferrer:   req.HTTPReferrer,
		RequestHeaders: req.RequestHeaders,
		ConsentTypeID:  consentTypeFor(act),
		CreatedAt:      consentedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, consent); err != nil {
			return err
		}
		dedupe := fmt.Sprintf("%s:%d", billingeventdomain.TopicConsentReceived, order.ID)
		return s.events.Publish(ctx, tx, billingeventdomain.PublishRequest{
			EventType: billingeventdomain.TopicConsentReceived,
			Payload: datatypes.JSONMap{
				"order_id":        order.ID.String(),
				"subscription_id": order.SubscriptionID,
				"consent_type":    string(consent.ConsentTypeID),
			},
			DedupeKey: &dedupe,
		})
	})
	if err != nil {
		// Two concurrent appliers both passed the existence check; the
		// constraint picked the winner.
		if db.IsDuplicateKeyErr(err) {
			return nil, consentdomain.ErrConsentAlreadyApplied
		}
		return nil, err
	}

	if !s.cfg.ConsentServiceEnabled {
		if err := s.notify.SendConsentReceived(ctx, notification.ConsentReceived{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			IPAddress:  req.IPAddress,
		}); err != nil {
			s.log.Warn("consent received notification failed",
				zap.Int64("order_id", int64(order.ID)),
				zap.Error(err),
			)
		}
	}

	return consent, nil
}

func (s *Service) CancelConsent(ctx context.Context, act actor.Actor, orderID snowflake.ID) (bool, error) {
	status := "cancelled"
	if err := s.orders.Cancel(ctx, act, orderID); err != nil {
		status = "cancel-failed"
		s.log.Warn("consent-driven cancellation failed",
			zap.Int64("order_id", int64(orderID)),
			zap.Error(err),
		)
	}

	if _, err := s.history.CreateHistoryNote(ctx, nil, historydomain.CreateNoteRequest{
		OrderID: orderID,
		Actor:   act,
		Type:    historydomain.TypeConsent,
		Status:  status,
		Message: "recurring billing consent withdrawn",
	}); err != nil {
		return status == "cancelled", err
	}
	return status == "cancelled", nil
}

func (s *Service) DeleteConsent(ctx context.Context, act actor.Actor, orderID snowflake.ID) error {
	conn := s.db.WithContext(ctx)

	existing, err := s.repo.Find(ctx, conn, orderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Delete(ctx, tx, orderID); err != nil {
			return err
		}
		_, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
			OrderID: orderID,
			Actor:   act,
			Type:    historydomain.TypeConsent,
			Status:  "deleted",
			Message: "recurring billing consent removed",
		})
		return err
	})
}

func (s *Service) CanRebill(ctx context.Context, orderID snowflake.ID) (bool, error) {
	conn := s.db.WithContext(ctx)

	order, err := s.orderRepo.FindOrderByID(ctx, conn, orderID)
	if err != nil {
		return false, err
	}
	if order == nil {
		return false, orderdomain.ErrOrderNotFound
	}
	if !order.IsConsentRequired {
		return true, nil
	}

	consent, err := s.repo.Find(ctx, conn, orderID)
	if err != nil {
		return false, err
	}
	return consent != nil, nil
}

func consentTypeFor(act actor.Actor) consentdomain.ConsentType {
	if act.APIUserID != nil {
		return consentdomain.ConsentTypeAPI
	}
	return consentdomain.ConsentTypeCall
}
