package rental

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/shared"
)

// ItemOutcome declares the full return state of one item. A nil damage fee
// or description clears it.
type ItemOutcome struct {
	ItemID            uuid.UUID        `json:"item_id" validate:"required"`
	ReturnedQuantity  int              `json:"returned_quantity" validate:"gte=0"`
	Missing           bool             `json:"missing,omitempty"`
	DamageFee         *decimal.Decimal `json:"damage_fee,omitempty"`
	DamageDescription *string          `json:"damage_description,omitempty" validate:"omitempty,max=1000"`
}

// SettleRequest is one return settlement batch. A nil late fee keeps the
// order's current late fee.
type SettleRequest struct {
	OrderID         uuid.UUID        `json:"-"`
	ExpectedVersion int64            `json:"expected_version" validate:"required,gt=0"`
	Items           []ItemOutcome    `json:"items" validate:"required,min=1,dive"`
	LateFee         *decimal.Decimal `json:"late_fee,omitempty"`
	ActorID         int64            `json:"-"`
}

// SettleResult is the authoritative outcome of a settlement.
type SettleResult struct {
	NewStatus   Status          `json:"new_status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Version     int64           `json:"version"`
	NoOp        bool            `json:"no_op,omitempty"`
}

// SettlementPlan is the validated effect of a batch on an order.
type SettlementPlan struct {
	Order   Order
	Changed []Item
	Summary audit.SettlementSummary
	NoOp    bool
}

// PlanSettlement validates the batch against the order and computes the
// resulting order without touching storage. Every problem is reported at once;
// a non-nil error means nothing may be written.
func PlanSettlement(o Order, req SettleRequest, now time.Time, policy Policy) (SettlementPlan, error) {
	var errs shared.ValidationErrors
	if len(req.Items) == 0 {
		errs = append(errs, shared.Invalid("items", "at least one item outcome is required"))
	}

	next := o.Clone()
	index := make(map[uuid.UUID]int, len(next.Items))
	for i, it := range next.Items {
		index[it.ID] = i
	}
	seen := make(map[uuid.UUID]bool, len(req.Items))
	var changed []int

	for n, out := range req.Items {
		field := fmt.Sprintf("items[%d]", n)
		pos, ok := index[out.ItemID]
		if !ok {
			errs = append(errs, shared.Invalid(field+".item_id", "item does not belong to this order"))
			continue
		}
		if seen[out.ItemID] {
			errs = append(errs, shared.Invalid(field+".item_id", "item listed more than once"))
			continue
		}
		seen[out.ItemID] = true

		cur := next.Items[pos]
		if out.ReturnedQuantity < 0 || out.ReturnedQuantity > cur.Quantity {
			errs = append(errs, shared.Invalid(field+".returned_quantity", fmt.Sprintf("must be between 0 and %d", cur.Quantity)))
			continue
		}
		if out.Missing && out.ReturnedQuantity == cur.Quantity {
			errs = append(errs, shared.Invalid(field+".missing", "cannot be missing when every unit was returned"))
			continue
		}
		fee := decimal.Zero
		if out.DamageFee != nil {
			fee = *out.DamageFee
		}
		if fee.IsNegative() {
			errs = append(errs, shared.Invalid(field+".damage_fee", "must not be negative"))
			continue
		}
		desc := trimmedOrNil(out.DamageDescription)
		if fee.IsPositive() && desc == nil {
			errs = append(errs, shared.Invalid(field+".damage_description", "required when damage_fee is greater than zero"))
			continue
		}

		upd := applyOutcome(cur, out.ReturnedQuantity, out.Missing, fee, desc, o.End, now)
		if !sameReturnState(cur, upd) {
			changed = append(changed, pos)
		}
		next.Items[pos] = upd
	}

	if req.LateFee != nil {
		switch {
		case req.LateFee.IsNegative():
			errs = append(errs, shared.Invalid("late_fee", "must not be negative"))
		case req.LateFee.GreaterThan(policy.LateFeeLimit(o)):
			errs = append(errs, &shared.ValidationError{
				Field:   "late_fee",
				Message: fmt.Sprintf("exceeds %s, confirm the amount", policy.LateFeeLimit(o).StringFixed(2)),
				Warning: true,
			})
		default:
			next.LateFee = *req.LateFee
		}
	}
	if len(errs) > 0 {
		return SettlementPlan{}, errs
	}

	next.Status = CanonicalStatus(o.Status, next.Items)
	// a late completion recorded by a status change is never cleared here
	next.LateReturned = o.LateReturned || anyLate(next.Items)
	next.Recalculate()

	plan := SettlementPlan{Order: next, Summary: summarize(next)}
	for _, pos := range changed {
		plan.Changed = append(plan.Changed, next.Items[pos])
	}
	plan.NoOp = len(plan.Changed) == 0 &&
		next.Status == o.Status &&
		next.LateFee.Equal(o.LateFee) &&
		next.TotalAmount.Equal(o.TotalAmount) &&
		next.LateReturned == o.LateReturned
	return plan, nil
}

// applyOutcome sets the declared state on an item. An existing return date is
// kept so re-applying the same outcome leaves the item unchanged.
func applyOutcome(it Item, returned int, missing bool, fee decimal.Decimal, desc *string, end, now time.Time) Item {
	it.ReturnedQuantity = returned
	it.DamageFee = fee
	it.DamageDescription = desc
	switch {
	case missing:
		it.ReturnStatus = ReturnMissing
	case returned > 0:
		it.ReturnStatus = ReturnReturned
	default:
		it.ReturnStatus = ReturnNotYet
	}
	if returned > 0 {
		if it.ActualReturnDate == nil {
			at := now
			it.ActualReturnDate = &at
		}
		it.LateReturn = it.ActualReturnDate.After(end)
	} else {
		it.ActualReturnDate = nil
		it.LateReturn = false
	}
	return it
}

func sameReturnState(a, b Item) bool {
	return a.ReturnedQuantity == b.ReturnedQuantity &&
		a.ReturnStatus == b.ReturnStatus &&
		a.DamageFee.Equal(b.DamageFee) &&
		equalStringPtr(a.DamageDescription, b.DamageDescription) &&
		(a.ActualReturnDate == nil) == (b.ActualReturnDate == nil) &&
		a.LateReturn == b.LateReturn
}

func anyLate(items []Item) bool {
	for _, it := range items {
		if it.LateReturn {
			return true
		}
	}
	return false
}

func summarize(o Order) audit.SettlementSummary {
	s := audit.SettlementSummary{
		DamageTotal:  o.DamageTotal(),
		LateFee:      o.LateFee,
		TotalAmount:  o.TotalAmount,
		LateReturned: o.LateReturned,
	}
	for _, it := range o.Items {
		switch {
		case it.Missing():
			s.Missing++
		case it.FullyReturned():
			s.Returned++
		case it.PartiallyReturned():
			s.Partial++
		default:
			s.Outstanding++
		}
		if it.HasDamage() {
			s.Damaged++
		}
	}
	return s
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
