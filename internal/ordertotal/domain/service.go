package domain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type Service interface {
	// SetTotal replaces the stored value for (ref, kind). It never
	// accumulates.
	SetTotal(ctx context.Context, ref Ref, kind Kind, value decimal.Decimal, currencyID string) error

	// GetTotal returns the stored value, or zero when no row exists. Use for
	// additive kinds where absence means zero.
	GetTotal(ctx context.Context, ref Ref, kind Kind) (decimal.Decimal, error)

	// FindTotal returns nil when no row exists. Use for presence-sensitive
	// kinds where "absent" and "zero" mean different things.
	FindTotal(ctx context.Context, ref Ref, kind Kind) (*decimal.Decimal, error)
}

var (
	ErrInvalidOwnerType = errors.New("invalid_owner_type")
	ErrMissingCurrency  = errors.New("missing_currency")
)
