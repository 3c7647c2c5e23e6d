package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	"github.com/smallbiznis/recurflow/pkg/db/pagination"
)

var (
	ErrOrderNotFound  = errors.New("order_not_found")
	ErrUpsellNotFound = errors.New("upsell_not_found")

	// Void preconditions, checked in order.
	ErrVoidInvalidState         = errors.New("void_invalid_order_state")
	ErrVoidZeroRevenue          = errors.New("void_zero_revenue")
	ErrVoidInvalidProvider      = errors.New("void_invalid_provider")
	ErrVoidProhibitedByProvider = errors.New("void_prohibited_by_provider")
)

type VoidRequest struct {
	OrderID       snowflake.ID `json:"order_id"`
	KeepRecurring bool         `json:"keep_recurring"`
}

type ListOrdersRequest struct {
	CustomerID     *snowflake.ID `form:"customer_id"`
	SubscriptionID *string       `form:"subscription_id"`
	Status         *OrderStatus  `form:"status"`
	SortBy         string        `form:"sort_by"`
	OrderBy        string        `form:"order_by"`
	pagination.Pagination
}

type ListOrdersResponse struct {
	Data     []Order              `json:"data"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type Service interface {
	GetOrder(ctx context.Context, orderID snowflake.ID) (*Order, error)
	ListOrders(ctx context.Context, req ListOrdersRequest) (*ListOrdersResponse, error)

	// Cancel stops recurrence on the order and every active upsell,
	// attributing the stop to the acting party, writing one history note
	// per stopped item plus a closing note, and emitting one cancellation
	// event per line item.
	Cancel(ctx context.Context, act actor.Actor, orderID snowflake.ID) error

	// Void refunds a freshly approved, never shipped order at the gateway
	// and marks it voided. Recurrence stops with the void unless
	// keepRecurring is set.
	Void(ctx context.Context, act actor.Actor, req VoidRequest) error

	// StopTerminalProducts ends recurrence for line items whose product is
	// flagged terminal, leaving the rest of the subscription running.
	StopTerminalProducts(ctx context.Context, act actor.Actor, orderID snowflake.ID) error

	// ShippableProductCount counts line items that still ship physical
	// goods. With returnFirstOne it stops at the first hit and reports 1.
	ShippableProductCount(ctx context.Context, orderID snowflake.ID, returnFirstOne bool) (int, error)

	IsPartiallyShipped(ctx context.Context, orderID snowflake.ID) (bool, error)
	IsFullyShipped(ctx context.Context, orderID snowflake.ID) (bool, error)
}
