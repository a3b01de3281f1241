package rental

import "time"

// DisplayCategoryOf picks the single badge shown for an order. The scheduled
// check ignores dates: an order stays scheduled until explicitly started.
func DisplayCategoryOf(o Order, now time.Time) DisplayCategory {
	switch o.Status {
	case StatusCancelled:
		return CategoryCancelled
	case StatusPartiallyReturned:
		return CategoryPartiallyReturned
	case StatusCompleted:
		return CategoryReturned
	case StatusScheduled:
		return CategoryScheduled
	}
	if mixedReturn(o.Items) {
		return CategoryPartiallyReturned
	}
	if o.End.Before(now) {
		return CategoryLate
	}
	return CategoryOngoing
}

// mixedReturn reports an item marked returned while some other item is
// still out or missing.
func mixedReturn(items []Item) bool {
	for i, it := range items {
		if it.ReturnStatus != ReturnReturned {
			continue
		}
		for j, other := range items {
			if j == i {
				continue
			}
			if other.ReturnedQuantity < other.Quantity || other.Missing() {
				return true
			}
		}
	}
	return false
}

// CanonicalStatus derives the persisted status from item return state.
// Precedence: completed, flagged, partially_returned, unchanged.
func CanonicalStatus(current Status, items []Item) Status {
	if len(items) == 0 {
		return current
	}
	allFull := true
	anyReturned := false
	abnormal := false
	for _, it := range items {
		if it.ReturnedQuantity > 0 {
			anyReturned = true
		}
		if !it.FullyReturned() {
			allFull = false
		}
		if it.HasDamage() || it.PartiallyReturned() || it.Missing() {
			abnormal = true
		}
	}
	switch {
	case allFull && !abnormal:
		return StatusCompleted
	case abnormal:
		return StatusFlagged
	case anyReturned:
		return StatusPartiallyReturned
	default:
		return current
	}
}
