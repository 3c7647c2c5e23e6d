package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/recurflow/internal/catalog/domain"
	"github.com/smallbiznis/recurflow/internal/config"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	pricingdomain "github.com/smallbiznis/recurflow/internal/pricing/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	salvage *config.SalvageConfigHolder

	orderRepo        orderdomain.Repository
	catalogRepo      catalogdomain.Repository
	totalsRepo       ordertotaldomain.Repository
	subscriptionRepo subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	Salvage          *config.SalvageConfigHolder
	OrderRepo        orderdomain.Repository
	CatalogRepo      catalogdomain.Repository
	TotalsRepo       ordertotaldomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
}

func NewService(p ServiceParam) pricingdomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("pricing.service"),
		salvage:          p.Salvage,
		orderRepo:        p.OrderRepo,
		catalogRepo:      p.CatalogRepo,
		totalsRepo:       p.TotalsRepo,
		subscriptionRepo: p.SubscriptionRepo,
	}
}

// lineItemFacts are the order-row fields the input assembly needs, normalized
// across the two owner tables.
type lineItemFacts struct {
	ProductID   snowflake.ID
	VariantID   *snowflake.ID
	Quantity    int
	UnitPrice   decimal.Decimal
	RebillDepth int
	IsRetrying  bool
	CurrencyID  string
}

func (s *Service) ComputeLineItemPricing(ctx context.Context, req pricingdomain.ComputeRequest) (*pricingdomain.Result, error) {
	db := s.db.WithContext(ctx)

	facts, err := s.findFacts(ctx, db, req)
	if err != nil {
		return nil, err
	}

	product, err := s.catalogRepo.FindByID(ctx, db, facts.ProductID)
	if err != nil {
		return nil, err
	}

	model, err := s.subscriptionRepo.FindBillingModel(ctx, db, req.OwnerType, req.OrderID)
	if err != nil {
		return nil, err
	}

	in := pricingdomain.Input{
		UnitPrice:   facts.UnitPrice,
		Quantity:    facts.Quantity,
		HasVariant:  facts.VariantID != nil,
		RebillDepth: facts.RebillDepth,
	}
	if product != nil {
		in.CatalogPrice = product.Price
		in.IsBundle = product.IsBundle()
	}

	ref := ordertotaldomain.Ref{OrderID: req.OrderID, OwnerType: ordertotaldomain.OwnerType(req.OwnerType)}
	couponPct, err := s.totalsRepo.Find(ctx, db, ref, ordertotaldomain.KindCouponDiscount)
	if err != nil {
		return nil, err
	}
	couponFlat, err := s.totalsRepo.Find(ctx, db, ref, ordertotaldomain.KindCouponFlatDiscount)
	if err != nil {
		return nil, err
	}
	in.CouponDiscount = ordertotaldomain.ValueOrZero(couponPct).Add(ordertotaldomain.ValueOrZero(couponFlat))

	bmDiscount, err := s.totalsRepo.Find(ctx, db, ref, ordertotaldomain.KindBillingModelDiscount)
	if err != nil {
		return nil, err
	}
	switch {
	case bmDiscount != nil:
		in.BillingModelDiscount = bmDiscount.Value
	case model != nil:
		in.BillingModelDiscount = model.DiscountAmount
	}

	if model != nil {
		in.IsTrialWorkflow = model.IsTrial
		in.SubscriptionCredit = model.SubscriptionCredit
		if facts.RebillDepth > 0 {
			in.RebillDiscountPercent = model.DiscountPercent
		}
	}
	if credit, err := s.totalsRepo.Find(ctx, db, ref, ordertotaldomain.KindBillingModelSubscriptionCredit); err != nil {
		return nil, err
	} else if credit != nil {
		in.SubscriptionCredit = credit.Value
	}

	// A step-down row exists only while decline salvage is retrying. The
	// ledger row wins; without one the salvage policy tier for this depth
	// applies.
	if facts.IsRetrying {
		stepDown, err := s.totalsRepo.Find(ctx, db, ref, ordertotaldomain.KindStepDownDiscount)
		if err != nil {
			return nil, err
		}
		if stepDown != nil {
			pct := stepDown.Value
			in.RetryDiscountPercent = &pct
		} else if s.salvage != nil {
			in.RetryDiscountPercent = s.salvage.DiscountPercentFor(facts.RebillDepth)
		}
	}

	unit := pricingdomain.CalculateUnitPrice(in)
	return &pricingdomain.Result{
		UnitPrice:           facts.UnitPrice,
		CalculatedUnitPrice: unit,
		Quantity:            facts.Quantity,
		LineTotal:           unit.Mul(decimal.NewFromInt(int64(facts.Quantity))),
		CurrencyID:          facts.CurrencyID,
	}, nil
}

func (s *Service) findFacts(ctx context.Context, db *gorm.DB, req pricingdomain.ComputeRequest) (*lineItemFacts, error) {
	switch req.OwnerType {
	case orderdomain.OwnerTypeOrder:
		order, err := s.orderRepo.FindOrderByID(ctx, db, req.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, pricingdomain.ErrLineItemNotFound
		}
		return &lineItemFacts{
			ProductID:   order.ProductID,
			VariantID:   order.VariantID,
			Quantity:    order.Quantity,
			UnitPrice:   order.UnitPrice,
			RebillDepth: order.RebillDepth,
			IsRetrying:  order.RetryAt != nil && !order.RetryAt.IsZero(),
			CurrencyID:  order.CurrencyID,
		}, nil
	case orderdomain.OwnerTypeUpsell:
		upsell, err := s.orderRepo.FindUpsellByID(ctx, db, req.OrderID)
		if err != nil {
			return nil, err
		}
		if upsell == nil {
			return nil, pricingdomain.ErrLineItemNotFound
		}
		return &lineItemFacts{
			ProductID:   upsell.ProductID,
			VariantID:   upsell.VariantID,
			Quantity:    upsell.Quantity,
			UnitPrice:   upsell.UnitPrice,
			RebillDepth: upsell.RebillDepth,
			IsRetrying:  upsell.RetryAt != nil && !upsell.RetryAt.IsZero(),
			CurrencyID:  upsell.CurrencyID,
		}, nil
	default:
		return nil, pricingdomain.ErrInvalidOwnerType
	}
}
