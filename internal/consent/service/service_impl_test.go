package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/recurflow/internal/actor"
	billingeventdomain "github.com/smallbiznis/recurflow/internal/billingevent/domain"
	billingeventrepo "github.com/smallbiznis/recurflow/internal/billingevent/repository"
	billingeventservice "github.com/smallbiznis/recurflow/internal/billingevent/service"
	"github.com/smallbiznis/recurflow/internal/clock"
	"github.com/smallbiznis/recurflow/internal/config"
	consentdomain "github.com/smallbiznis/recurflow/internal/consent/domain"
	consentrepo "github.com/smallbiznis/recurflow/internal/consent/repository"
	gatewaydomain "github.com/smallbiznis/recurflow/internal/gateway/domain"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	historyservice "github.com/smallbiznis/recurflow/internal/history/service"
	"github.com/smallbiznis/recurflow/internal/notification"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	orderrepo "github.com/smallbiznis/recurflow/internal/order/repository"
	"github.com/smallbiznis/recurflow/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeOrders struct {
	orderdomain.Service
	cancelErr   error
	cancelCalls int
}

func (f *fakeOrders) Cancel(ctx context.Context, act actor.Actor, orderID snowflake.ID) error {
	f.cancelCalls++
	return f.cancelErr
}

type fakeAdapter struct {
	profile *gatewaydomain.GatewayProfile
}

func (f *fakeAdapter) Configuration(ctx context.Context, gatewayID snowflake.ID) (*gatewaydomain.GatewayProfile, error) {
	if f.profile == nil {
		return nil, gatewaydomain.ErrGatewayNotFound
	}
	return f.profile, nil
}

func (f *fakeAdapter) Void(ctx context.Context, req gatewaydomain.VoidRequest) error { return nil }

type recordingDispatcher struct {
	consents []notification.ConsentReceived
}

func (r *recordingDispatcher) SendConsentReceived(ctx context.Context, msg notification.ConsentReceived) error {
	r.consents = append(r.consents, msg)
	return nil
}

func (r *recordingDispatcher) SendCancellationNotice(ctx context.Context, msg notification.CancellationNotice) error {
	return nil
}

// blindRepo always reports "no consent yet", reproducing the window where two
// appliers both pass the existence check before either inserts.
type blindRepo struct {
	consentdomain.Repository
}

func (b *blindRepo) Find(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*consentdomain.OrderConsent, error) {
	return nil, nil
}

type harness struct {
	db      *gorm.DB
	svc     consentdomain.Service
	node    *snowflake.Node
	orders  *fakeOrders
	adapter *fakeAdapter
	notify  *recordingDispatcher
}

func setup(t *testing.T, mutate func(p *ServiceParam)) *harness {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&consentdomain.OrderConsent{},
		&billingeventdomain.BillingEvent{},
		&historydomain.HistoryNote{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	log := zap.NewNop()
	fakeClock := clock.NewFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	events := billingeventservice.NewService(billingeventservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Repo:  billingeventrepo.Provide(),
	})
	history := historyservice.NewService(historyservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
		Notes: repository.ProvideStore[historydomain.HistoryNote](db),
	})

	orders := &fakeOrders{}
	adapter := &fakeAdapter{}
	notify := &recordingDispatcher{}

	param := ServiceParam{
		DB:        db,
		Log:       log,
		Cfg:       config.Config{},
		Clock:     fakeClock,
		Repo:      consentrepo.Provide(),
		OrderRepo: orderrepo.Provide(),
		Orders:    orders,
		Gateway:   adapter,
		Events:    events,
		History:   history,
		Notify:    notify,
	}
	if mutate != nil {
		mutate(&param)
	}

	return &harness{
		db:      db,
		svc:     NewService(param),
		node:    node,
		orders:  orders,
		adapter: adapter,
		notify:  notify,
	}
}

func (h *harness) seedOrder(t *testing.T, mutate func(o *orderdomain.Order)) *orderdomain.Order {
	notified := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	order := &orderdomain.Order{
		ID:          h.node.Generate(),
		CustomerID:  h.node.Generate(),
		ProductID:   h.node.Generate(),
		ProductName: "monthly vitamins",
		Quantity:    1,
		UnitPrice:   decimal.NewFromInt(30),
		StatusID:    orderdomain.StatusApproved,
		Recurrence: orderdomain.Recurrence{
			SubscriptionID: "sub-vitamins",
			IsRecurring:    true,
		},
		CurrencyID:        "USD",
		CurrencyValue:     decimal.NewFromInt(30),
		TotalRevenue:      decimal.NewFromInt(30),
		IsConsentRequired: true,
		ConsentNotifiedAt: &notified,
		PurchasedAt:       time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
	}
	order.AncestorID = order.ID
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func TestApplyConsentHappyPath(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, nil)

	got, err := h.svc.ApplyConsent(context.Background(), actor.User(h.node.Generate()), consentdomain.ApplyRequest{
		OrderID:      order.ID,
		IPAddress:    "203.0.113.9",
		HTTPReferrer: "https://shop.example/checkout",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, consentdomain.ConsentTypeCall, got.ConsentTypeID)

	var count int64
	require.NoError(t, h.db.Model(&consentdomain.OrderConsent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var events int64
	require.NoError(t, h.db.Model(&billingeventdomain.BillingEvent{}).
		Where("event_type = ?", billingeventdomain.TopicConsentReceived).
		Count(&events).Error)
	assert.EqualValues(t, 1, events)

	require.Len(t, h.notify.consents, 1, "consent-service mode off sends the notification")
	assert.Equal(t, order.ID, h.notify.consents[0].OrderID)
}

func TestApplyConsentRaceYieldsOneRow(t *testing.T) {
	h := setup(t, func(p *ServiceParam) {
		p.Repo = &blindRepo{Repository: consentrepo.Provide()}
	})
	order := h.seedOrder(t, nil)
	ctx := context.Background()

	first, err := h.svc.ApplyConsent(ctx, actor.APIUser(h.node.Generate()), consentdomain.ApplyRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := h.svc.ApplyConsent(ctx, actor.APIUser(h.node.Generate()), consentdomain.ApplyRequest{OrderID: order.ID})
	require.ErrorIs(t, err, consentdomain.ErrConsentAlreadyApplied)
	assert.Nil(t, second)

	var count int64
	require.NoError(t, h.db.Model(&consentdomain.OrderConsent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "the loser of the race must not add a row")
}

func TestApplyConsentNotRequired(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, func(o *orderdomain.Order) {
		o.IsConsentRequired = false
	})
	ctx := context.Background()

	_, err := h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID})
	require.ErrorIs(t, err, consentdomain.ErrConsentNotRequired)

	// A provider informing us after the fact is accepted silently.
	when := time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)
	got, err := h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID, ConsentedDate: &when})
	require.NoError(t, err)
	assert.Nil(t, got)

	var count int64
	require.NoError(t, h.db.Model(&consentdomain.OrderConsent{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestApplyConsentRequiresNotification(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, func(o *orderdomain.Order) {
		o.ConsentNotifiedAt = nil
	})

	_, err := h.svc.ApplyConsent(context.Background(), actor.User(h.node.Generate()), consentdomain.ApplyRequest{OrderID: order.ID})
	require.ErrorIs(t, err, consentdomain.ErrConsentWithoutNotification)
}

func TestApplyConsentProviderManagedGateway(t *testing.T) {
	h := setup(t, nil)
	gatewayID := h.node.Generate()
	h.adapter.profile = &gatewaydomain.GatewayProfile{
		ID:             gatewayID,
		Alias:          "acquirer-a",
		ProviderType:   "external",
		ManagesConsent: true,
		IsActive:       true,
	}
	order := h.seedOrder(t, func(o *orderdomain.Order) {
		o.GatewayID = &gatewayID
	})

	_, err := h.svc.ApplyConsent(context.Background(), actor.User(h.node.Generate()), consentdomain.ApplyRequest{OrderID: order.ID})
	require.ErrorIs(t, err, consentdomain.ErrProviderActionNotAllowed)

	// An internal worker may still record it when the workflow is ours.
	got, err := h.svc.ApplyConsent(context.Background(), actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestApplyConsentBackdatesProviderWorkflow(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, func(o *orderdomain.Order) {
		o.ProviderConsentWorkflow = true
		o.ConsentNotifiedAt = nil
	})

	when := time.Date(2024, 4, 22, 8, 30, 0, 0, time.UTC)
	got, err := h.svc.ApplyConsent(context.Background(), actor.Internal(), consentdomain.ApplyRequest{
		OrderID:       order.ID,
		ConsentedDate: &when,
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, when, got.CreatedAt)
}

func TestApplyConsentAlreadyRecorded(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, nil)
	ctx := context.Background()

	_, err := h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID})
	require.NoError(t, err)

	_, err = h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID})
	require.ErrorIs(t, err, consentdomain.ErrConsentAlreadyApplied)
}

func TestCancelConsentReportsOutcome(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, nil)
	ctx := context.Background()

	ok, err := h.svc.CancelConsent(ctx, actor.User(h.node.Generate()), order.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, h.orders.cancelCalls)

	h.orders.cancelErr = errors.New("stop failed")
	ok, err = h.svc.CancelConsent(ctx, actor.User(h.node.Generate()), order.ID)
	require.NoError(t, err, "the stop failure is swallowed, only the note records it")
	assert.False(t, ok)

	var notes []historydomain.HistoryNote
	require.NoError(t, h.db.Where("order_id = ? AND type = ?", order.ID, historydomain.TypeConsent).
		Order("created_at asc, id asc").Find(&notes).Error)
	require.Len(t, notes, 2)
	assert.Equal(t, "cancelled", notes[0].Status)
	assert.Equal(t, "cancel-failed", notes[1].Status)
}

func TestCanRebillGate(t *testing.T) {
	h := setup(t, nil)
	ctx := context.Background()

	optional := h.seedOrder(t, func(o *orderdomain.Order) {
		o.IsConsentRequired = false
	})
	ok, err := h.svc.CanRebill(ctx, optional.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	gated := h.seedOrder(t, nil)
	ok, err = h.svc.CanRebill(ctx, gated.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: gated.ID})
	require.NoError(t, err)

	ok, err = h.svc.CanRebill(ctx, gated.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteConsentIsIdempotent(t *testing.T) {
	h := setup(t, nil)
	order := h.seedOrder(t, nil)
	ctx := context.Background()

	_, err := h.svc.ApplyConsent(ctx, actor.Internal(), consentdomain.ApplyRequest{OrderID: order.ID})
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteConsent(ctx, actor.Internal(), order.ID))
	require.NoError(t, h.svc.DeleteConsent(ctx, actor.Internal(), order.ID))

	var count int64
	require.NoError(t, h.db.Model(&consentdomain.OrderConsent{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
