package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/recurflow/internal/catalog/repository"
	"github.com/smallbiznis/recurflow/internal/config"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	orderrepo "github.com/smallbiznis/recurflow/internal/order/repository"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	ordertotalrepo "github.com/smallbiznis/recurflow/internal/ordertotal/repository"
	pricingdomain "github.com/smallbiznis/recurflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/recurflow/internal/subscription/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPricing(t *testing.T) (*gorm.DB, pricingdomain.Service, *snowflake.Node) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.Upsell{},
		&catalogdomain.Product{},
		&ordertotaldomain.OrderTotal{},
		&subscriptiondomain.BillingModelOrder{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	salvage, err := config.NewSalvageConfigHolder()
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		DB:               db,
		Log:              zap.NewNop(),
		Salvage:          salvage,
		OrderRepo:        orderrepo.Provide(),
		CatalogRepo:      catalogrepo.Provide(),
		TotalsRepo:       ordertotalrepo.Provide(),
		SubscriptionRepo: subscriptionrepo.Provide(),
	})
	return db, svc, node
}

func TestComputeLineItemPricingRebill(t *testing.T) {
	db, svc, node := setupPricing(t)
	ctx := context.Background()

	product := &catalogdomain.Product{
		ID:    node.Generate(),
		SKU:   "coffee-1lb",
		Name:  "whole bean coffee",
		Price: decimal.NewFromInt(120),
	}
	require.NoError(t, db.Create(product).Error)

	order := &orderdomain.Order{
		ID:         node.Generate(),
		CustomerID: node.Generate(),
		ProductID:  product.ID,
		ProductName: product.Name,
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(100),
		StatusID:   orderdomain.StatusApproved,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-coffee",
			RebillDepth:    1,
			IsRecurring:    true,
		},
		CurrencyID:    "USD",
		CurrencyValue: decimal.NewFromInt(100),
		TotalRevenue:  decimal.NewFromInt(100),
		PurchasedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	order.AncestorID = order.ID
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, db.Create(&ordertotaldomain.OrderTotal{
		ID: node.Generate(), OrderID: order.ID, OwnerType: ordertotaldomain.OwnerTypeOrder,
		Kind: ordertotaldomain.KindCouponDiscount, Value: decimal.NewFromInt(10), CurrencyID: "USD",
	}).Error)
	require.NoError(t, db.Create(&ordertotaldomain.OrderTotal{
		ID: node.Generate(), OrderID: order.ID, OwnerType: ordertotaldomain.OwnerTypeOrder,
		Kind: ordertotaldomain.KindBillingModelDiscount, Value: decimal.NewFromInt(5), CurrencyID: "USD",
	}).Error)
	require.NoError(t, db.Create(&subscriptiondomain.BillingModelOrder{
		ID: node.Generate(), OrderID: order.ID, OwnerType: orderdomain.OwnerTypeOrder,
		SubscriptionID: "sub-coffee", FrequencyID: "monthly", IntervalDays: 30,
		DiscountPercent:    decimal.NewFromInt(10),
		DiscountAmount:     decimal.NewFromInt(5),
		SubscriptionCredit: decimal.NewFromInt(2),
	}).Error)

	got, err := svc.ComputeLineItemPricing(ctx, pricingdomain.ComputeRequest{
		OwnerType: orderdomain.OwnerTypeOrder,
		OrderID:   order.ID,
	})
	require.NoError(t, err)
	assert.True(t, got.CalculatedUnitPrice.Equal(decimal.RequireFromString("74.5")),
		"((100-15) * 0.9) - 2, got %s", got.CalculatedUnitPrice)
	assert.True(t, got.UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.LineTotal.Equal(decimal.RequireFromString("74.5")))
	assert.Equal(t, "USD", got.CurrencyID)
}

func TestComputeLineItemPricingRetryStepDown(t *testing.T) {
	db, svc, node := setupPricing(t)
	ctx := context.Background()

	product := &catalogdomain.Product{
		ID:    node.Generate(),
		SKU:   "tea-sampler",
		Name:  "tea sampler",
		Price: decimal.NewFromInt(60),
	}
	require.NoError(t, db.Create(product).Error)

	retryAt := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	order := &orderdomain.Order{
		ID:         node.Generate(),
		CustomerID: node.Generate(),
		ProductID:  product.ID,
		ProductName: product.Name,
		Quantity:   1,
		UnitPrice:  decimal.NewFromInt(40),
		StatusID:   orderdomain.StatusDeclined,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-tea",
			RebillDepth:    2,
			IsRecurring:    true,
			RetryAt:        &retryAt,
		},
		CurrencyID:    "USD",
		CurrencyValue: decimal.NewFromInt(40),
		TotalRevenue:  decimal.Zero,
		PurchasedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	order.AncestorID = order.ID
	require.NoError(t, db.Create(order).Error)

	require.NoError(t, db.Create(&ordertotaldomain.OrderTotal{
		ID: node.Generate(), OrderID: order.ID, OwnerType: ordertotaldomain.OwnerTypeOrder,
		Kind: ordertotaldomain.KindStepDownDiscount, Value: decimal.NewFromInt(25), CurrencyID: "USD",
	}).Error)

	got, err := svc.ComputeLineItemPricing(ctx, pricingdomain.ComputeRequest{
		OwnerType: orderdomain.OwnerTypeOrder,
		OrderID:   order.ID,
	})
	require.NoError(t, err)
	assert.True(t, got.CalculatedUnitPrice.Equal(decimal.NewFromInt(30)),
		"40 less the 25 percent step-down, got %s", got.CalculatedUnitPrice)
}

func TestComputeLineItemPricingSalvagePolicyFallback(t *testing.T) {
	db, svc, node := setupPricing(t)
	ctx := context.Background()

	product := &catalogdomain.Product{
		ID:    node.Generate(),
		SKU:   "tea-loose",
		Name:  "loose leaf tea",
		Price: decimal.NewFromInt(60),
	}
	require.NoError(t, db.Create(product).Error)

	retryAt := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	order := &orderdomain.Order{
		ID:          node.Generate(),
		CustomerID:  node.Generate(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(40),
		StatusID:    orderdomain.StatusDeclined,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-tea",
			RebillDepth:    2,
			IsRecurring:    true,
			RetryAt:        &retryAt,
		},
		CurrencyID:    "USD",
		CurrencyValue: decimal.NewFromInt(40),
		TotalRevenue:  decimal.Zero,
		PurchasedAt:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	order.AncestorID = order.ID
	require.NoError(t, db.Create(order).Error)

	// No step-down ledger row, so the default policy tier for depth 2
	// (5 percent) applies.
	got, err := svc.ComputeLineItemPricing(ctx, pricingdomain.ComputeRequest{
		OwnerType: orderdomain.OwnerTypeOrder,
		OrderID:   order.ID,
	})
	require.NoError(t, err)
	assert.True(t, got.CalculatedUnitPrice.Equal(decimal.NewFromInt(38)),
		"40 less the 5 percent policy tier, got %s", got.CalculatedUnitPrice)
}

func TestComputeLineItemPricingUnknownItem(t *testing.T) {
	_, svc, node := setupPricing(t)

	_, err := svc.ComputeLineItemPricing(context.Background(), pricingdomain.ComputeRequest{
		OwnerType: orderdomain.OwnerTypeOrder,
		OrderID:   node.Generate(),
	})
	require.ErrorIs(t, err, pricingdomain.ErrLineItemNotFound)

	_, err = svc.ComputeLineItemPricing(context.Background(), pricingdomain.ComputeRequest{
		OwnerType: "bundle",
		OrderID:   node.Generate(),
	})
	require.ErrorIs(t, err, pricingdomain.ErrInvalidOwnerType)
}
