package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/recurflow/internal/subscription/domain"
	"gorm.io/gorm"
)

const billingModelColumns = `id, order_id, owner_type, subscription_id, cycles_remaining,
	 frequency_id, interval_days, next_recurring_product_id, next_recurring_variant_id,
	 next_recurring_price, next_recurring_quantity, is_trial, is_prepaid, prepaid_cycles,
	 discount_percent, discount_amount, subscription_credit, bill_day, bill_month,
	 created_at, updated_at`

const overrideColumns = `id, subscription_id, address_id, contact_payment_source_id,
	 promo_code, consumed_at, created_at, updated_at`

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) FindBillingModel(ctx context.Context, db *gorm.DB, ownerType string, orderID snowflake.ID) (*subscriptiondomain.BillingModelOrder, error) {
	var m subscriptiondomain.BillingModelOrder
	err := db.WithContext(ctx).Raw(
		`SELECT `+billingModelColumns+` FROM billing_model_orders
		 WHERE owner_type = ? AND order_id = ?`,
		ownerType,
		orderID,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindBillingModelsBySubscription(ctx context.Context, db *gorm.DB, subscriptionID string) ([]subscriptiondomain.BillingModelOrder, error) {
	var models []subscriptiondomain.BillingModelOrder
	err := db.WithContext(ctx).Raw(
		`SELECT `+billingModelColumns+` FROM billing_model_orders
		 WHERE subscription_id = ?
		 ORDER BY id ASC`,
		subscriptionID,
	).Scan(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}

func (r *repo) UpsertBillingModel(ctx context.Context, db *gorm.DB, m *subscriptiondomain.BillingModelOrder) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE billing_model_orders SET
			subscription_id = ?, cycles_remaining = ?, frequency_id = ?, interval_days = ?,
			next_recurring_product_id = ?, next_recurring_variant_id = ?,
			next_recurring_price = ?, next_recurring_quantity = ?,
			is_trial = ?, is_prepaid = ?, prepaid_cycles = ?,
			discount_percent = ?, discount_amount = ?, subscription_credit = ?,
			bill_day = ?, bill_month = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE owner_type = ? AND order_id = ?`,
		m.SubscriptionID, m.CyclesRemaining, m.FrequencyID, m.IntervalDays,
		m.NextRecurringProductID, m.NextRecurringVariantID,
		m.NextRecurringPrice, m.NextRecurringQuantity,
		m.IsTrial, m.IsPrepaid, m.PrepaidCycles,
		m.DiscountPercent, m.DiscountAmount, m.SubscriptionCredit,
		m.BillDay, m.BillMonth,
		m.OwnerType, m.OrderID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_model_orders (`+billingModelColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrderID, m.OwnerType, m.SubscriptionID, m.CyclesRemaining,
		m.FrequencyID, m.IntervalDays, m.NextRecurringProductID, m.NextRecurringVariantID,
		m.NextRecurringPrice, m.NextRecurringQuantity, m.IsTrial, m.IsPrepaid, m.PrepaidCycles,
		m.DiscountPercent, m.DiscountAmount, m.SubscriptionCredit, m.BillDay, m.BillMonth,
		m.CreatedAt, m.UpdatedAt,
	).Error
}

func (r *repo) UpdateBillingModelOwner(ctx context.Context, db *gorm.DB, id snowflake.ID, ownerType string, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_model_orders SET owner_type = ?, order_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		ownerType,
		orderID,
		id,
	).Error
}

func (r *repo) FindUnconsumedOverride(ctx context.Context, db *gorm.DB, subscriptionID string) (*subscriptiondomain.SubscriptionOverride, error) {
	var o subscriptiondomain.SubscriptionOverride
	err := db.WithContext(ctx).Raw(
		`SELECT `+overrideColumns+` FROM subscription_overrides
		 WHERE subscription_id = ? AND consumed_at IS NULL`,
		subscriptionID,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

// UpsertOverride replaces the pending values of the unconsumed row when one
// exists, never touching consumed_at, else inserts a fresh row.
func (r *repo) UpsertOverride(ctx context.Context, db *gorm.DB, o *subscriptiondomain.SubscriptionOverride) (*subscriptiondomain.SubscriptionOverride, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscription_overrides SET
			address_id = ?, contact_payment_source_id = ?, promo_code = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE subscription_id = ? AND consumed_at IS NULL`,
		o.AddressID, o.ContactPaymentSourceID, o.PromoCode,
		o.SubscriptionID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO subscription_overrides (`+overrideColumns+`)
			 VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
			o.ID, o.SubscriptionID, o.AddressID, o.ContactPaymentSourceID,
			o.PromoCode, o.CreatedAt, o.UpdatedAt,
		).Error
		if err != nil {
			return nil, err
		}
	}

	return r.FindUnconsumedOverride(ctx, db, o.SubscriptionID)
}

// ConsumeOverride claims the pending row in a single statement so concurrent
// billers cannot both apply it.
func (r *repo) ConsumeOverride(ctx context.Context, db *gorm.DB, subscriptionID string, at time.Time) (*subscriptiondomain.SubscriptionOverride, error) {
	pending, err := r.FindUnconsumedOverride(ctx, db, subscriptionID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil
	}

	result := db.WithContext(ctx).Exec(
		`UPDATE subscription_overrides SET consumed_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND consumed_at IS NULL`,
		at,
		pending.ID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race to another consumer.
		return nil, nil
	}

	pending.ConsumedAt = &at
	return pending, nil
}
