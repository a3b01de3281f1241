package projection

import (
	"time"

	"github.com/rentflow/rentflow/internal/rental"
)

// StatusPatch projects a simple transition: only the status changes.
type StatusPatch struct {
	Status rental.Status
}

// Apply implements Patch.
func (p StatusPatch) Apply(o rental.Order) (rental.Order, error) {
	next := o.Clone()
	next.Status = p.Status
	return next, nil
}

// SettlementPatch projects a settlement batch with the same planning rules
// the server applies.
type SettlementPatch struct {
	Request rental.SettleRequest
	Now     time.Time
	Policy  rental.Policy
}

// Apply implements Patch.
func (p SettlementPatch) Apply(o rental.Order) (rental.Order, error) {
	plan, err := rental.PlanSettlement(o, p.Request, p.Now, p.Policy)
	if err != nil {
		return o, err
	}
	return plan.Order, nil
}
