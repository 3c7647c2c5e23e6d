package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/recurflow/internal/clock"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	ordertotalrepo "github.com/smallbiznis/recurflow/internal/ordertotal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ordertotaldomain.OrderTotal{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) ordertotaldomain.Service {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  ordertotalrepo.Provide(),
	})
}

func TestSetTotalReplacesValue(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	node, _ := snowflake.NewNode(2)
	ref := ordertotaldomain.Ref{OrderID: node.Generate(), OwnerType: ordertotaldomain.OwnerTypeOrder}

	require.NoError(t, svc.SetTotal(ctx, ref, ordertotaldomain.KindSubtotal, decimal.NewFromInt(100), "USD"))
	require.NoError(t, svc.SetTotal(ctx, ref, ordertotaldomain.KindSubtotal, decimal.NewFromInt(75), "USD"))

	value, err := svc.GetTotal(ctx, ref, ordertotaldomain.KindSubtotal)
	require.NoError(t, err)
	assert.True(t, value.Equal(decimal.NewFromInt(75)), "expected replaced value, got %s", value)

	var count int64
	db.Model(&ordertotaldomain.OrderTotal{}).Count(&count)
	assert.Equal(t, int64(1), count, "replace must not create a second row")
}

func TestGetTotalDefaultsToZero(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	node, _ := snowflake.NewNode(3)
	ref := ordertotaldomain.Ref{OrderID: node.Generate(), OwnerType: ordertotaldomain.OwnerTypeUpsell}

	value, err := svc.GetTotal(context.Background(), ref, ordertotaldomain.KindShipping)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestFindTotalDistinguishesAbsence(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	node, _ := snowflake.NewNode(4)
	ref := ordertotaldomain.Ref{OrderID: node.Generate(), OwnerType: ordertotaldomain.OwnerTypeOrder}

	value, err := svc.FindTotal(ctx, ref, ordertotaldomain.KindCouponDiscount)
	require.NoError(t, err)
	assert.Nil(t, value, "absent coupon discount must be nil, not zero")

	require.NoError(t, svc.SetTotal(ctx, ref, ordertotaldomain.KindCouponDiscount, decimal.Zero, "USD"))

	value, err = svc.FindTotal(ctx, ref, ordertotaldomain.KindCouponDiscount)
	require.NoError(t, err)
	require.NotNil(t, value, "a stored zero must be distinguishable from absence")
	assert.True(t, value.IsZero())
}

func TestSetTotalRequiresCurrency(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	node, _ := snowflake.NewNode(5)
	ref := ordertotaldomain.Ref{OrderID: node.Generate(), OwnerType: ordertotaldomain.OwnerTypeOrder}

	err := svc.SetTotal(context.Background(), ref, ordertotaldomain.KindTax, decimal.NewFromInt(5), "")
	assert.ErrorIs(t, err, ordertotaldomain.ErrMissingCurrency)
}
