package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/recurflow/internal/order/domain"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"github.com/smallbiznis/recurflow/pkg/db/option"
	"gorm.io/gorm"
)

const orderColumns = `id, customer_id, product_id, variant_id, product_name, quantity, unit_price,
	 offer_id, step_number, status_id, refund_type_id, subscription_id, ancestor_id, parent_id,
	 rebill_depth, is_recurring, is_hold, hold_type_id, hold_date, recur_at, retry_at,
	 custom_recurring_product_id, custom_recurring_variant_id, currency_id, currency_value,
	 total_revenue, gateway_id, payment_method, is_consent_required, provider_consent_workflow,
	 consent_notified_at, is_split_shippable, tracking_number, is_shippable, is_archived,
	 purchased_at, created_at, updated_at`

const upsellColumns = `id, order_id, product_id, variant_id, product_name, quantity, unit_price,
	 offer_id, step_number, status_id, refund_type_id, is_add_on, subscription_id, ancestor_id,
	 parent_id, rebill_depth, is_recurring, is_hold, hold_type_id, hold_date, recur_at, retry_at,
	 custom_recurring_product_id, custom_recurring_variant_id, currency_id, currency_value,
	 tracking_number, is_shippable, is_archived, purchased_at, created_at, updated_at`

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, o *orderdomain.Order) error {
	return db.WithContext(ctx).Create(o).Error
}

func (r *repo) InsertUpsell(ctx context.Context, db *gorm.DB, u *orderdomain.Upsell) error {
	return db.WithContext(ctx).Create(u).Error
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindUpsellByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Upsell, error) {
	var u orderdomain.Upsell
	err := db.WithContext(ctx).Raw(
		`SELECT `+upsellColumns+` FROM upsells WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) ListUpsellsByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]orderdomain.Upsell, error) {
	var upsells []orderdomain.Upsell
	err := db.WithContext(ctx).Raw(
		`SELECT `+upsellColumns+` FROM upsells
		 WHERE order_id = ? AND deleted_at IS NULL
		 ORDER BY id ASC`,
		orderID,
	).Scan(&upsells).Error
	if err != nil {
		return nil, err
	}
	return upsells, nil
}

func (r *repo) FindSwapCandidateUpsell(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*orderdomain.Upsell, error) {
	var u orderdomain.Upsell
	err := db.WithContext(ctx).Raw(
		`SELECT `+upsellColumns+` FROM upsells
		 WHERE order_id = ? AND is_add_on = ? AND is_recurring = ?
		   AND deleted_at IS NULL
		 ORDER BY purchased_at DESC, recur_at DESC
		 LIMIT 1`,
		orderID,
		false,
		true,
	).Scan(&u).Error
	if err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, nil
	}
	return &u, nil
}

func (r *repo) StopRecurrence(ctx context.Context, db *gorm.DB, ownerType string, id snowflake.ID, holdType *subscriptiondomain.HoldType, holdDate time.Time) error {
	table := tableFor(ownerType)
	return db.WithContext(ctx).Exec(
		`UPDATE `+table+` SET
			is_recurring = ?, is_hold = ?, hold_type_id = ?, hold_date = ?,
			retry_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		false,
		holdType != nil,
		holdType,
		holdDate,
		id,
	).Error
}

// SwapLineItems issues the two cross-assignments back to back on the caller's
// transaction handle. Values come from rows read inside that same
// transaction, so the pair behaves as one synchronized update.
func (r *repo) SwapLineItems(ctx context.Context, db *gorm.DB, o *orderdomain.Order, u *orderdomain.Upsell) error {
	err := db.WithContext(ctx).Exec(
		`UPDATE orders SET
			subscription_id = ?, recur_at = ?, retry_at = ?,
			is_recurring = ?, is_hold = ?, hold_type_id = ?, hold_date = ?,
			product_id = ?, variant_id = ?, product_name = ?,
			unit_price = ?, quantity = ?, currency_value = ?,
			refund_type_id = ?, offer_id = ?, step_number = ?,
			custom_recurring_product_id = ?, custom_recurring_variant_id = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		u.SubscriptionID, u.RecurAt, u.RetryAt,
		u.IsRecurring, u.IsHold, u.HoldTypeID, u.HoldDate,
		u.ProductID, u.VariantID, u.ProductName,
		u.UnitPrice, u.Quantity, u.CurrencyValue,
		u.RefundTypeID, u.OfferID, u.StepNumber,
		u.CustomRecurringProductID, u.CustomRecurringVariantID,
		o.ID,
	).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(
		`UPDATE upsells SET
			subscription_id = ?, recur_at = ?, retry_at = ?,
			is_recurring = ?, is_hold = ?, hold_type_id = ?, hold_date = ?,
			product_id = ?, variant_id = ?, product_name = ?,
			unit_price = ?, quantity = ?, currency_value = ?,
			refund_type_id = ?, offer_id = ?, step_number = ?,
			custom_recurring_product_id = ?, custom_recurring_variant_id = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		o.SubscriptionID, o.RecurAt, o.RetryAt,
		o.IsRecurring, o.IsHold, o.HoldTypeID, o.HoldDate,
		o.ProductID, o.VariantID, o.ProductName,
		o.UnitPrice, o.Quantity, o.CurrencyValue,
		o.RefundTypeID, o.OfferID, o.StepNumber,
		o.CustomRecurringProductID, o.CustomRecurringVariantID,
		u.ID,
	).Error
}

func (r *repo) UpdateRefund(ctx context.Context, db *gorm.DB, id snowflake.ID, status orderdomain.OrderStatus, refundType orderdomain.RefundType) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET status_id = ?, refund_type_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		status,
		refundType,
		id,
	).Error
}

func (r *repo) UpdateConsentNotifiedAt(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET consent_notified_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		at,
		id,
	).Error
}

func (r *repo) ListBundleItems(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) ([]orderdomain.OrderBundleItem, error) {
	var items []orderdomain.OrderBundleItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, owner_type, product_id, cycle, is_main, created_at, updated_at
		 FROM order_bundle_items
		 WHERE owner_type = ? AND order_id = ?
		 ORDER BY id ASC`,
		ownerType,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetBundleMain(ctx context.Context, db *gorm.DB, id snowflake.ID, isMain bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE order_bundle_items SET is_main = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		isMain,
		id,
	).Error
}

func (r *repo) ListCustomOptionIDs(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM order_custom_options WHERE owner_type = ? AND order_id = ?`,
		ownerType,
		orderID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) UpdateCustomOptionsOwner(ctx context.Context, db *gorm.DB, ids []snowflake.ID, ownerType string, orderID snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE order_custom_options SET owner_type = ?, order_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id IN ?`,
		ownerType,
		orderID,
		ids,
	).Error
}

func (r *repo) ListOrders(ctx context.Context, db *gorm.DB, req orderdomain.ListOrdersRequest) ([]orderdomain.Order, error) {
	opts := []option.QueryOption{}
	if req.CustomerID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: *req.CustomerID}))
	}
	if req.SubscriptionID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "subscription_id", Operator: option.EQ, Value: *req.SubscriptionID}))
	}
	if req.Status != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status_id", Operator: option.EQ, Value: *req.Status}))
	}

	sortBy := option.WithQuerySortBy(req.SortBy, req.OrderBy, map[string]bool{
		"created_at":   true,
		"purchased_at": true,
		"recur_at":     true,
	})
	if sortBy == "" {
		sortBy = "created_at desc"
	}
	opts = append(opts, option.WithSortBy(sortBy), option.ApplyPagination(req.Pagination))

	query := db.WithContext(ctx).Model(&orderdomain.Order{})
	for _, opt := range opts {
		query = opt.Apply(query)
	}

	var orders []orderdomain.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func tableFor(ownerType string) string {
	if ownerType == orderdomain.OwnerTypeUpsell {
		return "upsells"
	}
	return "orders"
}
