package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
	"github.com/smallbiznis/recurflow/internal/clock"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	ordertotaldomain "github.com/smallbiznis/recurflow/internal/ordertotal/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	swapdomain "github.com/smallbiznis/recurflow/internal/swap/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock

	orderRepo        orderdomain.Repository
	totalsRepo       ordertotaldomain.Repository
	subscriptionRepo subscriptiondomain.Repository
}

type ServiceParam struct {
	fx.In

	DB               *gorm.DB
	Log              *zap.Logger
	GenID            *snowflake.Node
	Clock            clock.Clock
	OrderRepo        orderdomain.Repository
	TotalsRepo       ordertotaldomain.Repository
	SubscriptionRepo subscriptiondomain.Repository
}

func NewService(p ServiceParam) swapdomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("swap.service"),
		genID:            p.GenID,
		clock:            p.Clock,
		orderRepo:        p.OrderRepo,
		totalsRepo:       p.TotalsRepo,
		subscriptionRepo: p.SubscriptionRepo,
	}
}

// Swap runs the whole exchange in one transaction. Any failure rolls the
// transaction back and reports Swapped=false; the error itself is logged, not
// returned, so a failed swap reads the same as an ineligible one.
func (s *Service) Swap(ctx context.Context, act actor.Actor, orderID snowflake.ID) (swapdomain.Result, error) {
	var result swapdomain.Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindOrderByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrOrderNotFound
		}

		upsell, err := s.orderRepo.FindSwapCandidateUpsell(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if upsell == nil {
			return nil
		}

		orderRef := ordertotaldomain.Ref{OrderID: order.ID, OwnerType: orderdomain.OwnerTypeOrder}
		upsellRef := ordertotaldomain.Ref{OrderID: upsell.ID, OwnerType: orderdomain.OwnerTypeUpsell}

		for _, kind := range []ordertotaldomain.Kind{
			ordertotaldomain.KindLineItemTaxPercent,
			ordertotaldomain.KindLineItemTax,
		} {
			if err := s.swapTotals(ctx, tx, orderRef, upsellRef, kind, order.CurrencyID); err != nil {
				return err
			}
		}

		orderModel, err := s.subscriptionRepo.FindBillingModel(ctx, tx, orderdomain.OwnerTypeOrder, order.ID)
		if err != nil {
			return err
		}
		upsellModel, err := s.subscriptionRepo.FindBillingModel(ctx, tx, orderdomain.OwnerTypeUpsell, upsell.ID)
		if err != nil {
			return err
		}

		if err := s.flipBundleMains(ctx, tx, order, orderModel); err != nil {
			return err
		}
		if err := s.flipBundleMains(ctx, tx, upsell, upsellModel); err != nil {
			return err
		}

		orderOptions, err := s.orderRepo.ListCustomOptionIDs(ctx, tx, orderdomain.OwnerTypeOrder, order.ID)
		if err != nil {
			return err
		}
		upsellOptions, err := s.orderRepo.ListCustomOptionIDs(ctx, tx, orderdomain.OwnerTypeUpsell, upsell.ID)
		if err != nil {
			return err
		}
		if err := s.orderRepo.UpdateCustomOptionsOwner(ctx, tx, orderOptions, orderdomain.OwnerTypeUpsell, upsell.ID); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateCustomOptionsOwner(ctx, tx, upsellOptions, orderdomain.OwnerTypeOrder, order.ID); err != nil {
			return err
		}

		if err := s.orderRepo.SwapLineItems(ctx, tx, order, upsell); err != nil {
			return err
		}

		switch {
		case orderModel != nil && upsellModel != nil:
			if err := s.subscriptionRepo.UpsertBillingModel(ctx, tx, crossAssignSchedule(orderModel, upsellModel)); err != nil {
				return err
			}
			if err := s.subscriptionRepo.UpsertBillingModel(ctx, tx, crossAssignSchedule(upsellModel, orderModel)); err != nil {
				return err
			}
		case orderModel != nil:
			if err := s.subscriptionRepo.UpdateBillingModelOwner(ctx, tx, orderModel.ID, orderdomain.OwnerTypeUpsell, upsell.ID); err != nil {
				return err
			}
		case upsellModel != nil:
			if err := s.subscriptionRepo.UpdateBillingModelOwner(ctx, tx, upsellModel.ID, orderdomain.OwnerTypeOrder, order.ID); err != nil {
				return err
			}
		}

		upsellID := upsell.ID
		result = swapdomain.Result{Swapped: true, SwappedMainToUpsellID: &upsellID}
		return nil
	})
	if err != nil {
		s.log.Warn("swap rolled back",
			zap.Int64("order_id", int64(orderID)),
			zap.String("actor", string(act.Type)),
			zap.Error(err),
		)
		return swapdomain.Result{}, nil
	}
	return result, nil
}

// swapTotals exchanges one ledger kind between the two items, skipping kinds
// where both sides are zero or absent.
func (s *Service) swapTotals(ctx context.Context, tx *gorm.DB, orderRef, upsellRef ordertotaldomain.Ref, kind ordertotaldomain.Kind, currencyID string) error {
	orderTotal, err := s.totalsRepo.Find(ctx, tx, orderRef, kind)
	if err != nil {
		return err
	}
	upsellTotal, err := s.totalsRepo.Find(ctx, tx, upsellRef, kind)
	if err != nil {
		return err
	}

	orderValue := ordertotaldomain.ValueOrZero(orderTotal)
	upsellValue := ordertotaldomain.ValueOrZero(upsellTotal)
	if orderValue.IsZero() && upsellValue.IsZero() {
		return nil
	}

	now := s.clock.Now()
	if err := s.totalsRepo.Upsert(ctx, tx, &ordertotaldomain.OrderTotal{
		ID:         s.genID.Generate(),
		OrderID:    orderRef.OrderID,
		OwnerType:  orderRef.OwnerType,
		Kind:       kind,
		Value:      upsellValue,
		CurrencyID: currencyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return err
	}
	return s.totalsRepo.Upsert(ctx, tx, &ordertotaldomain.OrderTotal{
		ID:         s.genID.Generate(),
		OrderID:    upsellRef.OrderID,
		OwnerType:  upsellRef.OwnerType,
		Kind:       kind,
		Value:      orderValue,
		CurrencyID: currencyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// flipBundleMains toggles the is-main flag on bundle rows tied to the item's
// current product. Next-cycle rows are touched only when the upcoming
// recurring product differs from the active one.
func (s *Service) flipBundleMains(ctx context.Context, tx *gorm.DB, item orderdomain.LineItem, model *subscriptiondomain.BillingModelOrder) error {
	rows, err := s.orderRepo.ListBundleItems(ctx, tx, item.ItemOwnerType(), item.ItemID())
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	nextProductID := item.ItemProductID()
	if model != nil && model.NextRecurringProductID != nil {
		nextProductID = *model.NextRecurringProductID
	}
	nextDiffers := nextProductID != item.ItemProductID()

	for _, row := range rows {
		if row.ProductID != item.ItemProductID() {
			continue
		}
		if row.Cycle == orderdomain.BundleCycleNext && !nextDiffers {
			continue
		}
		if err := s.orderRepo.SetBundleMain(ctx, tx, row.ID, !row.IsMain); err != nil {
			return err
		}
	}
	return nil
}

func crossAssignSchedule(dst, src *subscriptiondomain.BillingModelOrder) *subscriptiondomain.BillingModelOrder {
	out := *dst
	out.SubscriptionID = src.SubscriptionID
	out.CyclesRemaining = src.CyclesRemaining
	out.FrequencyID = src.FrequencyID
	out.IntervalDays = src.IntervalDays
	out.NextRecurringProductID = src.NextRecurringProductID
	out.NextRecurringVariantID = src.NextRecurringVariantID
	out.NextRecurringPrice = src.NextRecurringPrice
	out.NextRecurringQuantity = src.NextRecurringQuantity
	out.IsTrial = src.IsTrial
	out.IsPrepaid = src.IsPrepaid
	out.PrepaidCycles = src.PrepaidCycles
	out.DiscountPercent = src.DiscountPercent
	out.DiscountAmount = src.DiscountAmount
	out.SubscriptionCredit = src.SubscriptionCredit
	out.BillDay = src.BillDay
	out.BillMonth = src.BillMonth
	return &out
}
