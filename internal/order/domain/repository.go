package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertOrder(ctx context.Context, db *gorm.DB, o *Order) error
	InsertUpsell(ctx context.Context, db *gorm.DB, u *Upsell) error
	FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindUpsellByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Upsell, error)
	ListUpsellsByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Upsell, error)

	// FindSwapCandidateUpsell returns the order's most recently created
	// non-add-on upsell that is still recurring, preferring the latest
	// purchase, then the one recurring soonest.
	FindSwapCandidateUpsell(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Upsell, error)

	// StopRecurrence turns recurrence off and records the hold that stopped
	// it. A nil holdType clears any previous hold attribution.
	StopRecurrence(ctx context.Context, db *gorm.DB, ownerType string, id snowflake.ID, holdType *subscriptiondomain.HoldType, holdDate time.Time) error

	// SwapLineItems cross-assigns the billing identity of a main order and
	// one of its upsells: recurrence flags and dates, hold attribution,
	// subscription id, product reference, pricing, refund metadata and
	// offer placement. The two updates form one atomicity unit and must
	// run inside the same transaction.
	SwapLineItems(ctx context.Context, db *gorm.DB, o *Order, u *Upsell) error

	UpdateRefund(ctx context.Context, db *gorm.DB, id snowflake.ID, status OrderStatus, refundType RefundType) error
	UpdateConsentNotifiedAt(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error

	ListBundleItems(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) ([]OrderBundleItem, error)
	SetBundleMain(ctx context.Context, db *gorm.DB, id snowflake.ID, isMain bool) error
	ListCustomOptionIDs(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) ([]snowflake.ID, error)
	UpdateCustomOptionsOwner(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerType string, orderID snowflake.ID) error

	ListOrders(ctx context.Context, db *gorm.DB, req ListOrdersRequest) ([]Order, error)
}
