package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	"github.com/smallbiznis/recurflow/internal/clock"
	"github.com/smallbiznis/recurflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recurflow_billing_events_published_total",
	Help: "Outbox events delivered, by topic.",
}, []string{"event_type"})

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  billingeventdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  billingeventdomain.Repository
}

func NewService(p ServiceParam) billingeventdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingevent.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Publish(ctx context.Context, tx *gorm.DB, req billingeventdomain.PublishRequest) error {
	event := &billingeventdomain.BillingEvent{
		ID:        s.genID.Generate(),
		EventType: req.EventType,
		Payload:   req.Payload,
		DedupeKey: req.DedupeKey,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, event); err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.log.Debug("duplicate billing event skipped",
				zap.String("event_type", req.EventType),
				zap.Stringp("dedupe_key", req.DedupeKey),
			)
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) Drain(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	pending, err := s.repo.ListPending(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, event := range pending {
		// Delivery target is the structured log stream; downstream
		// consumers tail it. Marking published only after the write
		// keeps at-least-once semantics.
		s.log.Info("billing event",
			zap.Int64("event_id", int64(event.ID)),
			zap.String("event_type", event.EventType),
			zap.Any("payload", map[string]interface{}(event.Payload)),
		)

		if err := s.repo.MarkPublished(ctx, s.db, event.ID, s.clock.Now()); err != nil {
			return delivered, err
		}
		eventsPublished.WithLabelValues(event.EventType).Inc()
		delivered++
	}
	return delivered, nil
}
