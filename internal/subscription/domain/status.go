package domain

// DeriveStatus computes the reported subscription state from the stored
// flags. Recurring items are active unless a retry date is pending; stopped
// items are paused under a merchant hold, otherwise cancelled. A stopped item
// with no hold of any kind is reported as completed: it finished naturally
// rather than being held or cancelled.
func DeriveStatus(f Flags) Status {
	if f.IsRecurring {
		if f.RetryAt != nil && !f.RetryAt.IsZero() {
			return StatusRetrying
		}
		return StatusActive
	}

	if f.HoldTypeID != nil && *f.HoldTypeID == HoldTypeMerchant {
		return StatusPaused
	}

	if !f.IsHold && f.HoldTypeID == nil {
		return StatusCompleted
	}

	return StatusCancelled
}
