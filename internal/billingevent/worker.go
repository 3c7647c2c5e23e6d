package billingevent

import (
	"context"
	"time"

	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	"github.com/smallbiznis/recurflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Worker drains the outbox in the background so events reach consumers
// without anyone hitting the internal drain endpoint.
type Worker struct {
	log      *zap.Logger
	svc      billingeventdomain.Service
	interval time.Duration
	batch    int
}

func NewWorker(log *zap.Logger, cfg config.Config, svc billingeventdomain.Service) *Worker {
	return &Worker{
		log:      log.Named("billingevent.worker"),
		svc:      svc,
		interval: time.Duration(cfg.EventDrainInterval) * time.Second,
		batch:    cfg.EventDrainBatchSize,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if delivered, err := w.svc.Drain(ctx, w.batch); err != nil {
			w.log.Warn("outbox drain failed", zap.Error(err))
		} else if delivered > 0 {
			w.log.Debug("outbox drained", zap.Int("delivered", delivered))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func RegisterWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	if cfg.EventDrainInterval <= 0 {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go worker.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
