// Package domain describes the swap operation: exchanging the main billing
// role between an order and one of its recurring upsells.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/actor"
)

// Result reports the outcome of a swap attempt. Swapped is false both when no
// eligible upsell exists and when the transaction rolled back; callers never
// see an error from a failed swap.
type Result struct {
	Swapped               bool          `json:"swapped"`
	SwappedMainToUpsellID *snowflake.ID `json:"swapped_main_to_upsell_id,omitempty"`
}

type Service interface {
	// Swap exchanges the main billing role between the order and its most
	// recently created, non-add-on, still-recurring upsell. The whole
	// exchange commits atomically or not at all.
	Swap(ctx context.Context, act actor.Actor, orderID snowflake.ID) (Result, error)
}
