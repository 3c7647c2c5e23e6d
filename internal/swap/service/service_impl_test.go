package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/recurflow/internal/actor"
	"github.com/smallbiznis/recurflow/internal/clock"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	orderrepo "github.com/smallbiznis/recurflow/internal/order/repository"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	ordertotalrepo "github.com/smallbiznis/recurflow/internal/ordertotal/repository"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/recurflow/internal/subscription/repository"
	swapdomain "github.com/smallbiznis/recurflow/internal/swap/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSwap(t *testing.T) (*gorm.DB, swapdomain.Service, *snowflake.Node) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.Upsell{},
		&orderdomain.OrderBundleItem{},
		&orderdomain.OrderCustomOption{},
		&ordertotaldomain.OrderTotal{},
		&subscriptiondomain.BillingModelOrder{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:               db,
		Log:              zap.NewNop(),
		GenID:            node,
		Clock:            clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		OrderRepo:        orderrepo.Provide(),
		TotalsRepo:       ordertotalrepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
	})
	return db, svc, node
}

func seedPair(t *testing.T, db *gorm.DB, node *snowflake.Node) (*orderdomain.Order, *orderdomain.Upsell) {
	mainRecur := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	upsellRecur := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)

	order := &orderdomain.Order{
		ID:          node.Generate(),
		CustomerID:  node.Generate(),
		ProductID:   node.Generate(),
		ProductName: "protein shake",
		Quantity:    2,
		UnitPrice:   decimal.NewFromInt(50),
		StatusID:    orderdomain.StatusApproved,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-main",
			IsRecurring:    true,
			RecurAt:        &mainRecur,
		},
		CurrencyID:    "USD",
		CurrencyValue: decimal.NewFromInt(100),
		TotalRevenue:  decimal.NewFromInt(100),
		PurchasedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	order.AncestorID = order.ID
	require.NoError(t, db.Create(order).Error)

	upsell := &orderdomain.Upsell{
		ID:          node.Generate(),
		OrderID:     order.ID,
		ProductID:   node.Generate(),
		ProductName: "shaker bottle",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(20),
		StatusID:    orderdomain.StatusApproved,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-upsell",
			IsRecurring:    true,
			RecurAt:        &upsellRecur,
		},
		CurrencyID:    "USD",
		CurrencyValue: decimal.NewFromInt(40),
		PurchasedAt:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	upsell.AncestorID = upsell.ID
	require.NoError(t, db.Create(upsell).Error)

	return order, upsell
}

func TestSwapExchangesBillingRoles(t *testing.T) {
	db, svc, node := setupSwap(t)
	ctx := context.Background()

	order, upsell := seedPair(t, db, node)

	result, err := svc.Swap(ctx, actor.User(node.Generate()), order.ID)
	require.NoError(t, err)
	require.True(t, result.Swapped)
	require.NotNil(t, result.SwappedMainToUpsellID)
	assert.Equal(t, upsell.ID, *result.SwappedMainToUpsellID)

	var gotOrder orderdomain.Order
	require.NoError(t, db.First(&gotOrder, "id = ?", order.ID).Error)
	assert.Equal(t, "sub-upsell", gotOrder.SubscriptionID)
	assert.Equal(t, upsell.ProductID, gotOrder.ProductID)
	assert.Equal(t, "shaker bottle", gotOrder.ProductName)
	assert.True(t, gotOrder.CurrencyValue.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, gotOrder.RecurAt)
	assert.Equal(t, *upsell.RecurAt, gotOrder.RecurAt.UTC())

	var gotUpsell orderdomain.Upsell
	require.NoError(t, db.First(&gotUpsell, "id = ?", upsell.ID).Error)
	assert.Equal(t, "sub-main", gotUpsell.SubscriptionID)
	assert.Equal(t, order.ProductID, gotUpsell.ProductID)
	assert.True(t, gotUpsell.CurrencyValue.Equal(decimal.NewFromInt(100)))
}

func TestDoubleSwapRestoresOriginals(t *testing.T) {
	db, svc, node := setupSwap(t)
	ctx := context.Background()

	order, upsell := seedPair(t, db, node)

	// Ledger rows, one nonzero side is enough to trigger the exchange.
	taxRow := &ordertotaldomain.OrderTotal{
		ID:         node.Generate(),
		OrderID:    order.ID,
		OwnerType:  ordertotaldomain.OwnerTypeOrder,
		Kind:       ordertotaldomain.KindLineItemTax,
		Value:      decimal.NewFromInt(5),
		CurrencyID: "USD",
	}
	require.NoError(t, db.Create(taxRow).Error)

	interval30 := 30
	interval7 := 7
	require.NoError(t, db.Create(&subscriptiondomain.BillingModelOrder{
		ID: node.Generate(), OrderID: order.ID, OwnerType: orderdomain.OwnerTypeOrder,
		SubscriptionID: "sub-main", IntervalDays: interval30, FrequencyID: "monthly",
		DiscountPercent: decimal.Zero, DiscountAmount: decimal.Zero, SubscriptionCredit: decimal.Zero,
	}).Error)
	require.NoError(t, db.Create(&subscriptiondomain.BillingModelOrder{
		ID: node.Generate(), OrderID: upsell.ID, OwnerType: orderdomain.OwnerTypeUpsell,
		SubscriptionID: "sub-upsell", IntervalDays: interval7, FrequencyID: "weekly",
		DiscountPercent: decimal.Zero, DiscountAmount: decimal.Zero, SubscriptionCredit: decimal.Zero,
	}).Error)

	require.NoError(t, db.Create(&orderdomain.OrderCustomOption{
		ID: node.Generate(), SubscriptionID: "sub-main",
		OrderID: order.ID, OwnerType: orderdomain.OwnerTypeOrder,
		Name: "flavor", Value: "vanilla",
	}).Error)

	first, err := svc.Swap(ctx, actor.Internal(), order.ID)
	require.NoError(t, err)
	require.True(t, first.Swapped)

	second, err := svc.Swap(ctx, actor.Internal(), order.ID)
	require.NoError(t, err)
	require.True(t, second.Swapped)

	var gotOrder orderdomain.Order
	require.NoError(t, db.First(&gotOrder, "id = ?", order.ID).Error)
	assert.Equal(t, order.SubscriptionID, gotOrder.SubscriptionID)
	assert.Equal(t, order.ProductID, gotOrder.ProductID)
	assert.Equal(t, order.ProductName, gotOrder.ProductName)
	assert.Equal(t, order.Quantity, gotOrder.Quantity)
	assert.True(t, gotOrder.UnitPrice.Equal(order.UnitPrice))
	assert.True(t, gotOrder.CurrencyValue.Equal(order.CurrencyValue), "forecasted revenue must round-trip")
	assert.Equal(t, order.IsRecurring, gotOrder.IsRecurring)
	assert.Equal(t, order.IsHold, gotOrder.IsHold)
	require.NotNil(t, gotOrder.RecurAt)
	assert.Equal(t, *order.RecurAt, gotOrder.RecurAt.UTC())

	var gotUpsell orderdomain.Upsell
	require.NoError(t, db.First(&gotUpsell, "id = ?", upsell.ID).Error)
	assert.Equal(t, upsell.SubscriptionID, gotUpsell.SubscriptionID)
	assert.Equal(t, upsell.ProductID, gotUpsell.ProductID)
	assert.True(t, gotUpsell.CurrencyValue.Equal(upsell.CurrencyValue))

	// The tax ledger value is back on the main item.
	var tax ordertotaldomain.OrderTotal
	require.NoError(t, db.First(&tax, "order_id = ? AND owner_type = ? AND kind = ?",
		order.ID, ordertotaldomain.OwnerTypeOrder, ordertotaldomain.KindLineItemTax).Error)
	assert.True(t, tax.Value.Equal(decimal.NewFromInt(5)))

	// Billing model schedules round-tripped too.
	var model subscriptiondomain.BillingModelOrder
	require.NoError(t, db.First(&model, "order_id = ? AND owner_type = ?",
		order.ID, orderdomain.OwnerTypeOrder).Error)
	assert.Equal(t, 30, model.IntervalDays)
	assert.Equal(t, "monthly", model.FrequencyID)
	assert.Equal(t, "sub-main", model.SubscriptionID)

	// The custom option is attached to the main item again.
	var option orderdomain.OrderCustomOption
	require.NoError(t, db.First(&option, "name = ?", "flavor").Error)
	assert.Equal(t, orderdomain.OwnerTypeOrder, option.OwnerType)
	assert.Equal(t, order.ID, option.OrderID)
}

func TestSwapWithoutEligibleUpsell(t *testing.T) {
	db, svc, node := setupSwap(t)
	ctx := context.Background()

	order, _ := seedPair(t, db, node)

	// Make the only upsell ineligible: add-ons never take the main role.
	require.NoError(t, db.Model(&orderdomain.Upsell{}).
		Where("order_id = ?", order.ID).
		Update("is_add_on", true).Error)

	result, err := svc.Swap(ctx, actor.Internal(), order.ID)
	require.NoError(t, err)
	assert.False(t, result.Swapped)
	assert.Nil(t, result.SwappedMainToUpsellID)

	var gotOrder orderdomain.Order
	require.NoError(t, db.First(&gotOrder, "id = ?", order.ID).Error)
	assert.Equal(t, order.SubscriptionID, gotOrder.SubscriptionID, "an ineligible swap must not touch the order")
}

func TestSwapOnMissingOrderReportsFalse(t *testing.T) {
	_, svc, node := setupSwap(t)

	result, err := svc.Swap(context.Background(), actor.Internal(), node.Generate())
	require.NoError(t, err, "swap never raises; it reports failure")
	assert.False(t, result.Swapped)
}
