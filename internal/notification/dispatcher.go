// Package notification sends customer-facing messages triggered by lifecycle
// changes. The default dispatcher writes to the structured log stream, where
// the delivery worker picks messages up.
package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ConsentReceived struct {
	OrderID    snowflake.ID
	CustomerID snowflake.ID
	IPAddress  string
}

type CancellationNotice struct {
	OrderID        snowflake.ID
	CustomerID     snowflake.ID
	SubscriptionID string
}

type Dispatcher interface {
	SendConsentReceived(ctx context.Context, msg ConsentReceived) error
	SendCancellationNotice(ctx context.Context, msg CancellationNotice) error
}

type logDispatcher struct {
	log *zap.Logger
}

func NewDispatcher(log *zap.Logger) Dispatcher {
	return &logDispatcher{log: log.Named("notification")}
}

func (d *logDispatcher) SendConsentReceived(ctx context.Context, msg ConsentReceived) error {
	d.log.Info("consent received notification",
		zap.Int64("order_id", int64(msg.OrderID)),
		zap.Int64("customer_id", int64(msg.CustomerID)),
		zap.String("ip_address", msg.IPAddress),
	)
	return nil
}

func (d *logDispatcher) SendCancellationNotice(ctx context.Context, msg CancellationNotice) error {
	d.log.Info("cancellation notice",
		zap.Int64("order_id", int64(msg.OrderID)),
		zap.Int64("customer_id", int64(msg.CustomerID)),
		zap.String("subscription_id", msg.SubscriptionID),
	)
	return nil
}

var Module = fx.Module("notification",
	fx.Provide(NewDispatcher),
)
