package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	"github.com/smallbiznis/recurflow/internal/clock"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	repo        subscriptiondomain.Repository
	orderRepo   orderdomain.Repository
	catalogRepo catalogdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        subscriptiondomain.Repository
	OrderRepo   orderdomain.Repository
	CatalogRepo catalogdomain.Repository
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("subscription.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		orderRepo:   p.OrderRepo,
		catalogRepo: p.CatalogRepo,
	}
}

func (s *Service) Status(ctx context.Context, req subscriptiondomain.StatusRequest) (subscriptiondomain.Status, error) {
	item, err := s.findLineItem(ctx, req.OwnerType, req.OrderID)
	if err != nil {
		return "", err
	}
	return subscriptiondomain.DeriveStatus(item.RecurrenceFlags()), nil
}

func (s *Service) NextSchedule(ctx context.Context, req subscriptiondomain.NextScheduleRequest) (*subscriptiondomain.NextSchedule, error) {
	item, err := s.findLineItem(ctx, req.OwnerType, req.OrderID)
	if err != nil {
		return nil, err
	}

	model, err := s.repo.FindBillingModel(ctx, s.db, req.OwnerType, req.OrderID)
	if err != nil {
		return nil, err
	}

	flags := item.RecurrenceFlags()
	schedule := &subscriptiondomain.NextSchedule{
		SubscriptionID:  item.ChainID(),
		NextRecurringAt: subscriptiondomain.NextValidRecurringDate(flags.RetryAt, item.NextRecurringAt()),
		Status:          subscriptiondomain.DeriveStatus(flags),
	}

	productID, variantID, err := s.resolveNextProduct(ctx, item, model)
	if err != nil {
		return nil, err
	}
	schedule.ProductID = productID
	schedule.VariantID = variantID

	quantity, err := s.resolveNextQuantity(ctx, item, model, productID)
	if err != nil {
		return nil, err
	}
	schedule.Quantity = quantity

	if model != nil {
		schedule.Price = model.NextRecurringPrice
	}
	return schedule, nil
}

// resolveNextProduct picks what the next cycle bills. The billing model's
// scheduled product wins outright. Otherwise, when a non-add-on item's
// product recurs into a different product, the line item's custom recurring
// product overrides that target. Failing all of that the item rebills itself.
func (s *Service) resolveNextProduct(ctx context.Context, item orderdomain.LineItem, model *subscriptiondomain.BillingModelOrder) (snowflake.ID, *snowflake.ID, error) {
	if model != nil && model.NextRecurringProductID != nil {
		return *model.NextRecurringProductID, model.NextRecurringVariantID, nil
	}

	isAddOn := false
	var customID, customVariantID *snowflake.ID
	switch it := item.(type) {
	case *orderdomain.Order:
		customID, customVariantID = it.CustomRecurringProductID, it.CustomRecurringVariantID
	case *orderdomain.Upsell:
		isAddOn = it.IsAddOn
		customID, customVariantID = it.CustomRecurringProductID, it.CustomRecurringVariantID
	}

	if !isAddOn {
		product, err := s.catalogRepo.FindByID(ctx, s.db, item.ItemProductID())
		if err != nil {
			return 0, nil, err
		}
		if product != nil && product.RecursToOther() {
			if customID != nil {
				return *customID, customVariantID, nil
			}
			return *product.RecurProductID, nil, nil
		}
	}
	return item.ItemProductID(), nil, nil
}

// resolveNextQuantity follows the same precedence: an explicit next-cycle
// quantity, then the current quantity when the product preserves it, else 1.
func (s *Service) resolveNextQuantity(ctx context.Context, item orderdomain.LineItem, model *subscriptiondomain.BillingModelOrder, nextProductID snowflake.ID) (int, error) {
	if model != nil && model.NextRecurringQuantity != nil {
		return *model.NextRecurringQuantity, nil
	}

	product, err := s.catalogRepo.FindByID(ctx, s.db, nextProductID)
	if err != nil {
		return 0, err
	}
	if product != nil && product.IsQtyPreserved {
		return item.ItemQuantity(), nil
	}
	return 1, nil
}

func (s *Service) UpsertOverride(ctx context.Context, req subscriptiondomain.UpsertOverrideRequest) (*subscriptiondomain.SubscriptionOverride, error) {
	if req.SubscriptionID == "" {
		return nil, subscriptiondomain.ErrMissingSubscription
	}

	now := s.clock.Now()
	return s.repo.UpsertOverride(ctx, s.db, &subscriptiondomain.SubscriptionOverride{
		ID:                     s.genID.Generate(),
		SubscriptionID:         req.SubscriptionID,
		AddressID:              req.AddressID,
		ContactPaymentSourceID: req.ContactPaymentSourceID,
		PromoCode:              req.PromoCode,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
}

func (s *Service) ConsumeOverride(ctx context.Context, subscriptionID string) (*subscriptiondomain.SubscriptionOverride, error) {
	if subscriptionID == "" {
		return nil, subscriptiondomain.ErrMissingSubscription
	}

	var consumed *subscriptiondomain.SubscriptionOverride
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		consumed, err = s.repo.ConsumeOverride(ctx, tx, subscriptionID, s.clock.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (s *Service) findLineItem(ctx context.Context, ownerType string, id snowflake.ID) (orderdomain.LineItem, error) {
	switch ownerType {
	case orderdomain.OwnerTypeOrder:
		order, err := s.orderRepo.FindOrderByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, subscriptiondomain.ErrLineItemNotFound
		}
		return order, nil
	case orderdomain.OwnerTypeUpsell:
		upsell, err := s.orderRepo.FindUpsellByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if upsell == nil {
			return nil, subscriptiondomain.ErrLineItemNotFound
		}
		return upsell, nil
	default:
		return nil, subscriptiondomain.ErrInvalidOwnerType
	}
}
