package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func holdTypePtr(h HoldType) *HoldType { return &h }

func TestDeriveStatus(t *testing.T) {
	retry := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		flags Flags
		want  Status
	}{
		{
			name:  "recurring with no retry is active",
			flags: Flags{IsRecurring: true},
			want:  StatusActive,
		},
		{
			name:  "recurring with pending retry is retrying",
			flags: Flags{IsRecurring: true, RetryAt: &retry},
			want:  StatusRetrying,
		},
		{
			name:  "recurring ignores hold fields",
			flags: Flags{IsRecurring: true, IsHold: true, HoldTypeID: holdTypePtr(HoldTypeUser)},
			want:  StatusActive,
		},
		{
			name:  "merchant hold is paused",
			flags: Flags{IsHold: true, HoldTypeID: holdTypePtr(HoldTypeMerchant)},
			want:  StatusPaused,
		},
		{
			name:  "merchant hold type wins even without the hold bit",
			flags: Flags{HoldTypeID: holdTypePtr(HoldTypeMerchant)},
			want:  StatusPaused,
		},
		{
			name:  "user hold is cancelled",
			flags: Flags{IsHold: true, HoldTypeID: holdTypePtr(HoldTypeUser)},
			want:  StatusCancelled,
		},
		{
			name:  "decline salvage hold is cancelled",
			flags: Flags{IsHold: true, HoldTypeID: holdTypePtr(HoldTypeDeclineSalvage)},
			want:  StatusCancelled,
		},
		{
			name:  "stopped with no hold at all is completed",
			flags: Flags{},
			want:  StatusCompleted,
		},
		{
			name:  "hold bit without attribution is cancelled",
			flags: Flags{IsHold: true},
			want:  StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.flags))
		})
	}
}

func TestDeriveStatusZeroRetryDate(t *testing.T) {
	var zero time.Time
	got := DeriveStatus(Flags{IsRecurring: true, RetryAt: &zero})
	assert.Equal(t, StatusActive, got, "a zero retry date must not report retrying")
}
