package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	"github.com/smallbiznis/recurflow/internal/clock"
	"github.com/smallbiznis/recurflow/internal/config"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	"github.com/smallbiznis/recurflow/internal/notification"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"github.com/smallbiznis/recurflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	genID *snowflake.Node
	clock clock.Clock

	repo        orderdomain.Repository
	catalogRepo catalogdomain.Repository
	gateway     gatewaydomain.Adapter
	events      billingeventdomain.Service
	history     historydomain.Service
	notify      notification.Dispatcher
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        orderdomain.Repository
	CatalogRepo catalogdomain.Repository
	Gateway     gatewaydomain.Adapter
	Events      billingeventdomain.Service
	History     historydomain.Service
	Notify      notification.Dispatcher
}

func NewService(p ServiceParam) orderdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		cfg:         p.Cfg,
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		gateway:     p.Gateway,
		events:      p.Events,
		history:     p.History,
		notify:      p.Notify,
	}
}

func (s *Service) GetOrder(ctx context.Context, orderID snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListOrders(ctx context.Context, req orderdomain.ListOrdersRequest) (*orderdomain.ListOrdersResponse, error) {
	orders, err := s.repo.ListOrders(ctx, s.db, req)
	if err != nil {
		return nil, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	refs := make([]*orderdomain.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(refs, int32(size), func(o *orderdomain.Order) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        strconv.FormatInt(int64(o.ID), 10),
			CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		})
		return token
	})

	if len(orders) > size {
		orders = orders[:size]
	}
	return &orderdomain.ListOrdersResponse{Data: orders, PageInfo: pageInfo}, nil
}

// Cancel stops the whole chain. The main item gets a "stop" and a "hold"
// note, each active upsell one distinctly named note, and every stopped line
// item emits one cancellation event. For N active upsells that is N+2 notes
// and N+1 events.
func (s *Service) Cancel(ctx context.Context, act actor.Actor, orderID snowflake.ID) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	holdType := subscriptiondomain.HoldTypeUser

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.StopRecurrence(ctx, tx, orderdomain.OwnerTypeOrder, order.ID, &holdType, now); err != nil {
			return err
		}
		if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
			OrderID: orderID,
			Actor:   act,
			Type:    historydomain.TypeStop,
			Status:  string(subscriptiondomain.StatusCancelled),
			Message: "recurring billing stopped",
		}); err != nil {
			return err
		}
		if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
			OrderID: orderID,
			Actor:   act,
			Type:    historydomain.TypeHold,
			Status:  string(subscriptiondomain.StatusCancelled),
			Message: fmt.Sprintf("subscription %s placed on hold", order.SubscriptionID),
		}); err != nil {
			return err
		}
		if err := s.publishCancelled(ctx, tx, order, orderdomain.OwnerTypeOrder, order.ID, order.ProductID); err != nil {
			return err
		}

		upsells, err := s.repo.ListUpsellsByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for i := range upsells {
			u := &upsells[i]
			if !subscriptiondomain.IsActivelyRecurring(u.Recurrence.Flags(), u.RecurAt, u.IsArchived) {
				continue
			}

			if err := s.repo.StopRecurrence(ctx, tx, orderdomain.OwnerTypeUpsell, u.ID, &holdType, now); err != nil {
				return err
			}
			if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
				OrderID: orderID,
				Actor:   act,
				Type:    historydomain.TypeRecurringUpsellStopped,
				Status:  string(subscriptiondomain.StatusCancelled),
				Message: fmt.Sprintf("%d", u.ID),
			}); err != nil {
				return err
			}
			if err := s.publishCancelled(ctx, tx, order, orderdomain.OwnerTypeUpsell, u.ID, u.ProductID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notify.SendCancellationNotice(ctx, notification.CancellationNotice{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		SubscriptionID: order.SubscriptionID,
	}); err != nil {
		// The cancellation itself committed; delivery failures are not
		// surfaced to the caller.
		s.log.Warn("cancellation notice failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) publishCancelled(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, ownerType string, itemID, productID snowflake.ID) error {
	dedupe := fmt.Sprintf("%s:%s:%d", billingeventdomain.TopicSubscriptionCancelled, ownerType, itemID)
	return s.events.Publish(ctx, tx, billingeventdomain.PublishRequest{
		EventType: billingeventdomain.TopicSubscriptionCancelled,
		DedupeKey: &dedupe,
		Payload: datatypes.JSONMap{
			"subscription_id": order.SubscriptionID,
			"order_id":        strconv.FormatInt(int64(order.ID), 10),
			"owner_type":      ownerType,
			"item_id":         strconv.FormatInt(int64(itemID), 10),
			"product_id":      strconv.FormatInt(int64(productID), 10),
			"customer_id":     strconv.FormatInt(int64(order.CustomerID), 10),
		},
	})
}

// Void refunds a not-yet-shipped order at the gateway. The preconditions run
// in a fixed order and the first failure returns before any provider call.
func (s *Service) Void(ctx context.Context, act actor.Actor, req orderdomain.VoidRequest) error {
	order, err := s.GetOrder(ctx, req.OrderID)
	if err != nil {
		return err
	}

	if order.RefundTypeID == orderdomain.RefundTypeVoid {
		return orderdomain.ErrVoidInvalidState
	}
	if !order.TotalRevenue.IsPositive() {
		return orderdomain.ErrVoidZeroRevenue
	}
	if order.GatewayID == nil {
		return orderdomain.ErrVoidInvalidProvider
	}

	profile, err := s.gateway.Configuration(ctx, *order.GatewayID)
	if err != nil {
		if err == gatewaydomain.ErrGatewayNotFound {
			return orderdomain.ErrVoidInvalidProvider
		}
		return err
	}
	if profile.Cant(gatewaydomain.ActionVoid) {
		return orderdomain.ErrVoidProhibitedByProvider
	}

	if err := s.gateway.Void(ctx, gatewaydomain.VoidRequest{
		GatewayID: *order.GatewayID,
		OrderID:   order.ID,
		Amount:    order.TotalRevenue,
		Currency:  order.CurrencyID,
	}); err != nil {
		return err
	}

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateRefund(ctx, tx, order.ID, orderdomain.StatusRefunded, orderdomain.RefundTypeVoid); err != nil {
			return err
		}

		if !req.KeepRecurring {
			holdType := subscriptiondomain.HoldTypeUser
			if err := s.repo.StopRecurrence(ctx, tx, orderdomain.OwnerTypeOrder, order.ID, &holdType, now); err != nil {
				return err
			}
		}

		if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
			OrderID: order.ID,
			Actor:   act,
			Type:    historydomain.TypeRefund,
			Status:  string(orderdomain.RefundTypeVoid),
			Message: fmt.Sprintf("order voided for %s %s", order.TotalRevenue, order.CurrencyID),
		}); err != nil {
			return err
		}

		dedupe := fmt.Sprintf("%s:%d", billingeventdomain.TopicOrderVoided, order.ID)
		return s.events.Publish(ctx, tx, billingeventdomain.PublishRequest{
			EventType: billingeventdomain.TopicOrderVoided,
			DedupeKey: &dedupe,
			Payload: datatypes.JSONMap{
				"order_id":       strconv.FormatInt(int64(order.ID), 10),
				"customer_id":    strconv.FormatInt(int64(order.CustomerID), 10),
				"amount":         order.TotalRevenue.String(),
				"currency_id":    order.CurrencyID,
				"keep_recurring": req.KeepRecurring,
			},
		})
	})
}

// StopTerminalProducts runs when a new order lands in a rebill chain. Any
// parent line item whose product is flagged terminal marks its subscription
// id as finished; every still-recurring line item of the current order on one
// of those subscriptions is stopped with a user hold.
func (s *Service) StopTerminalProducts(ctx context.Context, act actor.Actor, orderID snowflake.ID) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.ParentID == nil {
		return nil
	}

	parent, err := s.repo.FindOrderByID(ctx, s.db, *order.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return nil
	}
	parentUpsells, err := s.repo.ListUpsellsByOrderID(ctx, s.db, parent.ID)
	if err != nil {
		return err
	}

	parentItems := make([]orderdomain.LineItem, 0, len(parentUpsells)+1)
	parentItems = append(parentItems, parent)
	for i := range parentUpsells {
		parentItems = append(parentItems, &parentUpsells[i])
	}

	terminal := map[string]bool{}
	for _, item := range parentItems {
		product, err := s.catalogRepo.FindByID(ctx, s.db, item.ItemProductID())
		if err != nil {
			return err
		}
		if product != nil && product.IsTerminal {
			terminal[item.ChainID()] = true
		}
	}
	if len(terminal) == 0 {
		return nil
	}

	now := s.clock.Now()
	holdType := subscriptiondomain.HoldTypeUser

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsells, err := s.repo.ListUpsellsByOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if terminal[order.ChainID()] && order.IsRecurring {
			if err := s.repo.StopRecurrence(ctx, tx, orderdomain.OwnerTypeOrder, order.ID, &holdType, now); err != nil {
				return err
			}
			if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
				OrderID: orderID,
				Actor:   act,
				Type:    historydomain.TypeStop,
				Status:  string(subscriptiondomain.StatusCancelled),
				Message: "terminal product reached its final cycle",
			}); err != nil {
				return err
			}
			if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
				OrderID: orderID,
				Actor:   act,
				Type:    historydomain.TypeHold,
				Status:  string(subscriptiondomain.StatusCancelled),
				Message: fmt.Sprintf("subscription %s placed on hold", order.SubscriptionID),
			}); err != nil {
				return err
			}
			if err := s.publishCancelled(ctx, tx, order, orderdomain.OwnerTypeOrder, order.ID, order.ProductID); err != nil {
				return err
			}
		}

		for i := range upsells {
			u := &upsells[i]
			if !terminal[u.ChainID()] || !u.IsRecurring {
				continue
			}
			if err := s.repo.StopRecurrence(ctx, tx, orderdomain.OwnerTypeUpsell, u.ID, &holdType, now); err != nil {
				return err
			}
			if _, err := s.history.CreateHistoryNote(ctx, tx, historydomain.CreateNoteRequest{
				OrderID: orderID,
				Actor:   act,
				Type:    historydomain.TypeRecurringUpsellStopped,
				Status:  string(subscriptiondomain.StatusCancelled),
				Message: fmt.Sprintf("%d", u.ID),
			}); err != nil {
				return err
			}
			if err := s.publishCancelled(ctx, tx, order, orderdomain.OwnerTypeUpsell, u.ID, u.ProductID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if notifyErr := s.notify.SendCancellationNotice(ctx, notification.CancellationNotice{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		SubscriptionID: order.SubscriptionID,
	}); notifyErr != nil {
		s.log.Warn("terminal stop notice failed",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(notifyErr),
		)
	}
	return nil
}

// ShippableProductCount counts line items that still ship physical goods. A
// line item's own shippable override wins over the catalog flag; catalog
// lookups happen lazily so the returnFirstOne path touches as few products
// as possible.
func (s *Service) ShippableProductCount(ctx context.Context, orderID snowflake.ID, returnFirstOne bool) (int, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	upsells, err := s.repo.ListUpsellsByOrderID(ctx, s.db, orderID)
	if err != nil {
		return 0, err
	}

	items := make([]orderdomain.LineItem, 0, len(upsells)+1)
	items = append(items, order)
	for i := range upsells {
		items = append(items, &upsells[i])
	}

	count := 0
	for _, item := range items {
		shippable, err := s.itemShips(ctx, item)
		if err != nil {
			return 0, err
		}
		if !shippable {
			continue
		}
		if returnFirstOne {
			return 1, nil
		}
		count++
	}
	return count, nil
}

func (s *Service) itemShips(ctx context.Context, item orderdomain.LineItem) (bool, error) {
	if override := item.ShippableOverride(); override != nil {
		return *override, nil
	}
	product, err := s.catalogRepo.FindByID(ctx, s.db, item.ItemProductID())
	if err != nil {
		return false, err
	}
	if product == nil {
		return false, nil
	}
	return product.IsShippable, nil
}

// IsPartiallyShipped reports a mix of tracked and untracked line items on an
// order flagged for split shipment.
func (s *Service) IsPartiallyShipped(ctx context.Context, orderID snowflake.ID) (bool, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !order.IsSplitShippable {
		return false, nil
	}

	tracked, untracked, err := s.trackingSplit(ctx, order)
	if err != nil {
		return false, err
	}
	return tracked > 0 && untracked > 0, nil
}

// IsFullyShipped is trivially true when split shipment does not apply; a
// non-split order ships as one unit.
func (s *Service) IsFullyShipped(ctx context.Context, orderID snowflake.ID) (bool, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if !s.cfg.SplitShipmentEnabled || !order.IsSplitShippable {
		return true, nil
	}

	_, untracked, err := s.trackingSplit(ctx, order)
	if err != nil {
		return false, err
	}
	return untracked == 0, nil
}

func (s *Service) trackingSplit(ctx context.Context, order *orderdomain.Order) (tracked, untracked int, err error) {
	upsells, err := s.repo.ListUpsellsByOrderID(ctx, s.db, order.ID)
	if err != nil {
		return 0, 0, err
	}

	items := make([]orderdomain.LineItem, 0, len(upsells)+1)
	items = append(items, order)
	for i := range upsells {
		items = append(items, &upsells[i])
	}

	for _, item := range items {
		if item.Tracking() != "" {
			tracked++
		} else {
			untracked++
		}
	}
	return tracked, untracked, nil
}
