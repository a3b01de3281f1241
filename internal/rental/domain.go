package rental

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ============================================================================
// ORDER STATUS
// ============================================================================

// Status is the canonical, persisted lifecycle state of an order.
type Status string

const (
	StatusScheduled         Status = "scheduled"          // Booked, window not started
	StatusActive            Status = "active"             // Items are out with the customer
	StatusPendingReturn     Status = "pending_return"     // Window ended, nothing settled yet
	StatusPartiallyReturned Status = "partially_returned" // Some quantity back, nothing abnormal
	StatusFlagged           Status = "flagged"            // Damage, partial or missing items
	StatusCompleted         Status = "completed"          // Everything back in order
	StatusCancelled         Status = "cancelled"          // Terminal, never deleted
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusPendingReturn, StatusPartiallyReturned,
		StatusFlagged, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further lifecycle change is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanEdit checks if the item set and window may still be replaced.
func (s Status) CanEdit() bool {
	return s == StatusScheduled || s == StatusActive
}

// CanStart checks if the rental can be started.
func (s Status) CanStart() bool {
	return s == StatusScheduled
}

// CanSettle checks if return outcomes may be recorded.
func (s Status) CanSettle() bool {
	switch s {
	case StatusActive, StatusPendingReturn, StatusPartiallyReturned, StatusFlagged:
		return true
	default:
		return false
	}
}

// ReturnStatus tracks one item's return.
type ReturnStatus string

const (
	ReturnNotYet   ReturnStatus = "not_yet_returned"
	ReturnReturned ReturnStatus = "returned"
	ReturnMissing  ReturnStatus = "missing"
)

// IsValid checks if the return status is valid
func (r ReturnStatus) IsValid() bool {
	return r == ReturnNotYet || r == ReturnReturned || r == ReturnMissing
}

// DisplayCategory is the single badge shown for an order in lists.
type DisplayCategory string

const (
	CategoryCancelled         DisplayCategory = "cancelled"
	CategoryPartiallyReturned DisplayCategory = "partially_returned"
	CategoryReturned          DisplayCategory = "returned"
	CategoryScheduled         DisplayCategory = "scheduled"
	CategoryLate              DisplayCategory = "late"
	CategoryOngoing           DisplayCategory = "ongoing"
)

// IsValid checks if the category is known.
func (c DisplayCategory) IsValid() bool {
	switch c {
	case CategoryCancelled, CategoryPartiallyReturned, CategoryReturned, CategoryScheduled, CategoryLate, CategoryOngoing:
		return true
	default:
		return false
	}
}

// ============================================================================
// ORDER ENTITY
// ============================================================================

const dateLayout = "2006-01-02"

// Order is the unit of consistency: header plus owned items.
// Start and End are the single source of truth for the rental window.
type Order struct {
	ID            uuid.UUID        `json:"id"`
	InvoiceNumber string           `json:"invoice_number"`
	BranchID      int64            `json:"branch_id"`
	CustomerID    int64            `json:"customer_id"`
	CreatedBy     int64            `json:"created_by"`
	BookingDate   time.Time        `json:"booking_date"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	Status        Status           `json:"status"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	GSTAmount     *decimal.Decimal `json:"gst_amount,omitempty"`
	LateFee       decimal.Decimal  `json:"late_fee"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	LateReturned  bool             `json:"late_returned"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Items         []Item           `json:"items"`
}

// StartDate is the calendar projection of Start.
func (o Order) StartDate() string {
	return o.Start.Format(dateLayout)
}

// EndDate is the calendar projection of End.
func (o Order) EndDate() string {
	return o.End.Format(dateLayout)
}

// Duration is the length of the rental window.
func (o Order) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Tax returns the optional tax amount or zero.
func (o Order) Tax() decimal.Decimal {
	if o.GSTAmount == nil {
		return decimal.Zero
	}
	return *o.GSTAmount
}

// DamageTotal sums item damage fees.
func (o Order) DamageTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.DamageFee)
	}
	return total
}

// Recalculate derives subtotal and total from the items. Stored totals are
// never trusted or accumulated.
func (o *Order) Recalculate() {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	o.Subtotal = subtotal
	o.TotalAmount = subtotal.Add(o.Tax()).Add(o.LateFee).Add(o.DamageTotal())
}

// HasReturns reports whether any item has returned quantity.
func (o Order) HasReturns() bool {
	for _, it := range o.Items {
		if it.ReturnedQuantity > 0 {
			return true
		}
	}
	return false
}

// Item returns the item with the given id.
func (o Order) Item(id uuid.UUID) (Item, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Clone returns a deep enough copy for optimistic patching.
func (o Order) Clone() Order {
	cp := o
	cp.Items = append([]Item(nil), o.Items...)
	if o.GSTAmount != nil {
		gst := *o.GSTAmount
		cp.GSTAmount = &gst
	}
	return cp
}

// Item is one rented line of an order.
type Item struct {
	ID                uuid.UUID       `json:"id"`
	OrderID           uuid.UUID       `json:"order_id"`
	ProductName       *string         `json:"product_name,omitempty"`
	PhotoRef          *string         `json:"photo_ref,omitempty"`
	Quantity          int             `json:"quantity"`
	PricePerDay       decimal.Decimal `json:"price_per_day"`
	Days              int             `json:"days"`
	ReturnStatus      ReturnStatus    `json:"return_status"`
	ReturnedQuantity  int             `json:"returned_quantity"`
	ActualReturnDate  *time.Time      `json:"actual_return_date,omitempty"`
	LateReturn        bool            `json:"late_return"`
	DamageFee         decimal.Decimal `json:"damage_fee"`
	DamageDescription *string         `json:"damage_description,omitempty"`
}

// LineTotal is quantity × price per day × days.
func (i Item) LineTotal() decimal.Decimal {
	return i.PricePerDay.Mul(decimal.NewFromInt(int64(i.Quantity))).Mul(decimal.NewFromInt(int64(i.Days)))
}

// HasDamage reports a damage fee or a damage note.
func (i Item) HasDamage() bool {
	return i.DamageFee.IsPositive() || (i.DamageDescription != nil && *i.DamageDescription != "")
}

// FullyReturned reports whether every rented unit is back.
func (i Item) FullyReturned() bool {
	return i.ReturnedQuantity == i.Quantity
}

// PartiallyReturned reports 0 < returned < quantity.
func (i Item) PartiallyReturned() bool {
	return i.ReturnedQuantity > 0 && i.ReturnedQuantity < i.Quantity
}

// Missing reports an item flagged as never recovered.
func (i Item) Missing() bool {
	return i.ReturnStatus == ReturnMissing
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ItemInput describes one line in create and edit requests.
type ItemInput struct {
	ProductName *string         `json:"product_name,omitempty" validate:"omitempty,max=200"`
	PhotoRef    *string         `json:"photo_ref,omitempty" validate:"omitempty,max=500"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	PricePerDay decimal.Decimal `json:"price_per_day"`
	Days        int             `json:"days" validate:"required,gt=0"`
}

// CreateOrderRequest represents request to create an order with its items.
type CreateOrderRequest struct {
	BranchID       int64            `json:"branch_id" validate:"required,gt=0"`
	CustomerID     int64            `json:"customer_id" validate:"required,gt=0"`
	Start          time.Time        `json:"start" validate:"required"`
	End            time.Time        `json:"end" validate:"required,gtfield=Start"`
	GSTAmount      *decimal.Decimal `json:"gst_amount,omitempty"`
	Items          []ItemInput      `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string           `json:"-"`
}

// EditOrderRequest replaces the window and/or the item set before any return.
type EditOrderRequest struct {
	ExpectedVersion int64            `json:"expected_version" validate:"required,gt=0"`
	Start           *time.Time       `json:"start,omitempty"`
	End             *time.Time       `json:"end,omitempty"`
	GSTAmount       *decimal.Decimal `json:"gst_amount,omitempty"`
	Items           *[]ItemInput     `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// TransitionRequest is a simple status change (cancel, force-complete, ...).
type TransitionRequest struct {
	OrderID uuid.UUID        `json:"-"`
	Status  Status           `json:"status" validate:"required,oneof=active completed cancelled partially_returned"`
	LateFee *decimal.Decimal `json:"late_fee,omitempty"`
	ActorID int64            `json:"-"`
}

// ListFilter narrows order listings.
type ListFilter struct {
	BranchID int64
	Category *DisplayCategory
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

// ListCursor marks the last order returned by a keyset scan.
type ListCursor struct {
	Start time.Time
	ID    uuid.UUID
}

// OrderPage selects a slice of a listing ordered newest start first, ties
// broken by descending id. When After is set the scan resumes strictly after
// that order and Offset is ignored.
type OrderPage struct {
	After  *ListCursor
	Offset int
	Limit  int
}

// OrderView is an order snapshot decorated with derived display data.
type OrderView struct {
	Order
	StartDay  string          `json:"start_date"`
	EndDay    string          `json:"end_date"`
	Category  DisplayCategory `json:"display_category"`
	CanCancel bool            `json:"can_cancel"`
}
