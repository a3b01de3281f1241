package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCancelGrace    = 10 * time.Minute
	DefaultScheduleWindow = time.Hour
)

// DefaultLateFeeMaxRatio bounds a late fee to five times subtotal plus tax.
var DefaultLateFeeMaxRatio = decimal.NewFromInt(5)

// Policy holds the tunable lifecycle rules.
type Policy struct {
	// CancelGrace is how long an active order stays cancellable.
	CancelGrace time.Duration
	// ScheduleWindow separates orders that became active around their
	// creation from bookings entered with a start far in the past.
	ScheduleWindow time.Duration
	// LateFeeMaxRatio is the sanity bound for late fees relative to subtotal plus tax.
	LateFeeMaxRatio decimal.Decimal
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		CancelGrace:     DefaultCancelGrace,
		ScheduleWindow:  DefaultScheduleWindow,
		LateFeeMaxRatio: DefaultLateFeeMaxRatio,
	}
}

func (p Policy) normalized() Policy {
	if p.CancelGrace <= 0 {
		p.CancelGrace = DefaultCancelGrace
	}
	if p.ScheduleWindow <= 0 {
		p.ScheduleWindow = DefaultScheduleWindow
	}
	if !p.LateFeeMaxRatio.IsPositive() {
		p.LateFeeMaxRatio = DefaultLateFeeMaxRatio
	}
	return p
}

// ActiveSince is the instant the grace window counts from: the start when it
// is no earlier than ScheduleWindow before creation, else the creation time.
func (p Policy) ActiveSince(o Order) time.Time {
	p = p.normalized()
	if !o.Start.Before(o.BookingDate.Add(-p.ScheduleWindow)) {
		return o.Start
	}
	return o.BookingDate
}

// CanCancel decides whether the order may be cancelled at now.
func (p Policy) CanCancel(o Order, now time.Time) bool {
	p = p.normalized()
	switch o.Status {
	case StatusScheduled:
		return true
	case StatusActive:
		return now.Sub(p.ActiveSince(o)) <= p.CancelGrace
	default:
		return false
	}
}

// LateFeeLimit is the largest late fee accepted without a warning.
func (p Policy) LateFeeLimit(o Order) decimal.Decimal {
	p = p.normalized()
	return p.LateFeeMaxRatio.Mul(o.Subtotal.Add(o.Tax()))
}

// CanTransition reports whether a simple status transition is allowed.
// Cancellation is additionally gated by CanCancel.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	switch to {
	case StatusActive:
		return from == StatusScheduled || from == StatusPendingReturn
	case StatusCompleted:
		return from == StatusActive || from == StatusPendingReturn || from == StatusPartiallyReturned || from == StatusFlagged
	case StatusPartiallyReturned:
		return from == StatusActive || from == StatusPendingReturn || from == StatusFlagged
	case StatusCancelled:
		return from == StatusScheduled || from == StatusActive
	case StatusPendingReturn:
		return from == StatusActive
	default:
		return false
	}
}
