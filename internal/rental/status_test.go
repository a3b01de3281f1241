package rental

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStatusPrecedence(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := scenarioOrder(now)

	o.Items[0].ReturnedQuantity = 2
	o.Items[0].ReturnStatus = ReturnReturned
	require.Equal(t, StatusPartiallyReturned, CanonicalStatus(StatusActive, o.Items))

	o.Items[1].DamageFee = decimal.NewFromInt(20)
	o.Items[1].DamageDescription = str("scratched")
	require.Equal(t, StatusFlagged, CanonicalStatus(StatusActive, o.Items))

	o.Items[1].DamageFee = decimal.Zero
	o.Items[1].DamageDescription = nil
	o.Items[1].ReturnedQuantity = 1
	o.Items[1].ReturnStatus = ReturnReturned
	require.Equal(t, StatusCompleted, CanonicalStatus(StatusActive, o.Items))
}

func TestCanonicalStatusAbnormalCases(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := map[string]func(*Order){
		"partial quantity": func(o *Order) {
			o.Items[0].ReturnedQuantity = 1
			o.Items[0].ReturnStatus = ReturnReturned
		},
		"missing item": func(o *Order) {
			o.Items[1].ReturnStatus = ReturnMissing
		},
		"damage note only": func(o *Order) {
			o.Items[0].ReturnedQuantity = 2
			o.Items[1].ReturnedQuantity = 1
			o.Items[1].DamageDescription = str("cracked lens")
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := scenarioOrder(now)
			mutate(&o)
			require.Equal(t, StatusFlagged, CanonicalStatus(StatusActive, o.Items))
		})
	}
}

func TestCanonicalStatusUnchangedWithoutReturns(t *testing.T) {
	o := scenarioOrder(time.Now())
	require.Equal(t, StatusPendingReturn, CanonicalStatus(StatusPendingReturn, o.Items))
	require.Equal(t, StatusActive, CanonicalStatus(StatusActive, nil))
}

func TestDisplayCategoryOf(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	o := scenarioOrder(now)
	o.Status = StatusCancelled
	require.Equal(t, CategoryCancelled, DisplayCategoryOf(o, now))

	o.Status = StatusPartiallyReturned
	require.Equal(t, CategoryPartiallyReturned, DisplayCategoryOf(o, now))

	o.Status = StatusCompleted
	require.Equal(t, CategoryReturned, DisplayCategoryOf(o, now))

	o.Status = StatusScheduled
	o.End = now.Add(-time.Hour)
	require.Equal(t, CategoryScheduled, DisplayCategoryOf(o, now), "scheduled ignores dates")

	o = scenarioOrder(now)
	o.Status = StatusFlagged
	o.Items[0].ReturnedQuantity = 2
	o.Items[0].ReturnStatus = ReturnReturned
	require.Equal(t, CategoryPartiallyReturned, DisplayCategoryOf(o, now))

	o = scenarioOrder(now)
	o.End = now.Add(-time.Minute)
	require.Equal(t, CategoryLate, DisplayCategoryOf(o, now))

	o = scenarioOrder(now)
	require.Equal(t, CategoryOngoing, DisplayCategoryOf(o, now))

	o.Status = StatusPendingReturn
	require.Equal(t, CategoryOngoing, DisplayCategoryOf(o, now))
}

func TestDisplayCategoryMissingCountsAsNotBack(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := scenarioOrder(now)
	o.Status = StatusFlagged
	o.Items[0].ReturnedQuantity = 2
	o.Items[0].ReturnStatus = ReturnReturned
	o.Items[1].ReturnedQuantity = 1
	o.Items[1].ReturnStatus = ReturnReturned
	require.Equal(t, CategoryOngoing, DisplayCategoryOf(o, now))

	o.Items[1].ReturnStatus = ReturnMissing
	require.Equal(t, CategoryPartiallyReturned, DisplayCategoryOf(o, now))
}

func TestOrderDateProjections(t *testing.T) {
	o := Order{
		Start: time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC),
	}
	require.Equal(t, "2024-03-01", o.StartDate())
	require.Equal(t, "2024-03-03", o.EndDate())
}

func TestRecalculateNeverTrustsStoredTotals(t *testing.T) {
	o := scenarioOrder(time.Now())
	o.Subtotal = decimal.NewFromInt(1)
	o.TotalAmount = decimal.NewFromInt(1)
	gst := decimal.NewFromInt(90)
	o.GSTAmount = &gst
	o.LateFee = decimal.NewFromInt(50)
	o.Items[1].DamageFee = decimal.NewFromInt(25)

	o.Recalculate()
	require.Equal(t, "900", o.Subtotal.String())
	require.Equal(t, "1065", o.TotalAmount.String())
	require.Equal(t, "600", o.Items[0].LineTotal().String())
}
