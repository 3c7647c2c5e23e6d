package domain

import "time"

// sentinel dates some legacy rows carry instead of NULL.
var epochSentinel = time.Unix(0, 0)

// NextValidRecurringDate prefers the retry date when it is a real date, then
// the scheduled recurring date, else nil.
func NextValidRecurringDate(retryAt, recurAt *time.Time) *time.Time {
	if isRealDate(retryAt) {
		return retryAt
	}
	if isRealDate(recurAt) {
		return recurAt
	}
	return nil
}

func isRealDate(t *time.Time) bool {
	if t == nil {
		return false
	}
	if t.IsZero() {
		return false
	}
	return !t.Equal(epochSentinel)
}

// IsActivelyRecurring reports whether the item will bill again: it has a next
// valid date, recurrence is on, and it is neither held nor archived.
func IsActivelyRecurring(flags Flags, recurAt *time.Time, archived bool) bool {
	if NextValidRecurringDate(flags.RetryAt, recurAt) == nil {
		return false
	}
	return flags.IsRecurring && !flags.IsHold && !archived
}
