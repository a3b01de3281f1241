package rental

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/changefeed"
)

// memoryRepo serialises transactions like a row lock and only publishes the
// working copy when fn succeeds.
type memoryRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]Order
	timeline  []audit.Entry
	seq       map[string]int64
	failNext  error
	listCalls int
}

type memoryTx struct {
	orders   map[uuid.UUID]Order
	timeline []audit.Entry
	seq      map[string]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders: make(map[uuid.UUID]Order),
		seq:    make(map[string]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	tx := &memoryTx{
		orders:   make(map[uuid.UUID]Order, len(r.orders)),
		timeline: append([]audit.Entry(nil), r.timeline...),
		seq:      make(map[string]int64, len(r.seq)),
	}
	for id, o := range r.orders {
		tx.orders[id] = o.Clone()
	}
	for k, v := range r.seq {
		tx.seq[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.orders, r.timeline, r.seq = tx.orders, tx.timeline, tx.seq
	return nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (r *memoryRepo) matching(filter ListFilter) []Order {
	var out []Order
	for _, o := range r.orders {
		if filter.BranchID != 0 && o.BranchID != filter.BranchID {
			continue
		}
		if filter.From != nil && o.End.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !o.Start.Before(*filter.To) {
			continue
		}
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return listsBefore(out[i].Start, out[i].ID, out[j].Start, out[j].ID) })
	return out
}

// listsBefore mirrors ORDER BY start_at DESC, id DESC.
func listsBefore(aStart time.Time, aID uuid.UUID, bStart time.Time, bID uuid.UUID) bool {
	if !aStart.Equal(bStart) {
		return aStart.After(bStart)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}

func (r *memoryRepo) CountOrders(ctx context.Context, filter ListFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(filter)), nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, filter ListFilter, page OrderPage) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := r.matching(filter)
	if page.After != nil {
		i := sort.Search(len(out), func(i int) bool {
			return listsBefore(page.After.Start, page.After.ID, out[i].Start, out[i].ID)
		})
		out = out[i:]
	} else {
		out = out[min(page.Offset, len(out)):]
	}
	return out[:min(page.Limit, len(out))], nil
}

func (r *memoryRepo) ListExpiredScheduled(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(func(o Order) bool {
		return o.Status == StatusScheduled && o.Start.Before(now) && (branchID == 0 || o.BranchID == branchID)
	}, limit), nil
}

func (r *memoryRepo) ListOverdueActive(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.listIDs(func(o Order) bool {
		return o.Status == StatusActive && o.End.Before(now) && (branchID == 0 || o.BranchID == branchID)
	}, limit), nil
}

func (r *memoryRepo) listIDs(match func(Order) bool, limit int) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for id, o := range r.orders {
		if match(o) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *memoryRepo) entries(orderID uuid.UUID) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.timeline {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

func (r *memoryRepo) put(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o.Clone()
}

func (tx *memoryTx) NextInvoiceNumber(ctx context.Context, branchID int64, day time.Time) (string, error) {
	key := fmt.Sprintf("%d:%s", branchID, day.Format(dateLayout))
	tx.seq[key]++
	return formatInvoiceNumber(branchID, day, tx.seq[key]), nil
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o Order) error {
	o.Items = nil
	tx.orders[o.ID] = o
	return nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, items []Item) error {
	for _, it := range items {
		o, ok := tx.orders[it.OrderID]
		if !ok {
			return ErrOrderNotFound
		}
		o.Items = append(o.Items, it)
		tx.orders[it.OrderID] = o
	}
	return nil
}

func (tx *memoryTx) LockOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	o, ok := tx.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, o Order) error {
	cur, ok := tx.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Items = cur.Items
	tx.orders[o.ID] = o
	return nil
}

func (tx *memoryTx) ReplaceItems(ctx context.Context, orderID uuid.UUID, items []Item) error {
	o, ok := tx.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Items = append([]Item(nil), items...)
	tx.orders[orderID] = o
	return nil
}

func (tx *memoryTx) UpdateItemReturns(ctx context.Context, items []Item) error {
	for _, it := range items {
		o, ok := tx.orders[it.OrderID]
		if !ok {
			return ErrOrderNotFound
		}
		o.Items = append([]Item(nil), o.Items...)
		for i := range o.Items {
			if o.Items[i].ID == it.ID {
				o.Items[i] = it
			}
		}
		tx.orders[it.OrderID] = o
	}
	return nil
}

func (tx *memoryTx) ExpireScheduled(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error) {
	return tx.conditional(id, now, func(o Order) bool {
		return o.Status == StatusScheduled && o.Start.Before(now)
	}, StatusCancelled)
}

func (tx *memoryTx) MarkOverdue(ctx context.Context, id uuid.UUID, now time.Time) (Order, bool, error) {
	return tx.conditional(id, now, func(o Order) bool {
		return o.Status == StatusActive && o.End.Before(now)
	}, StatusPendingReturn)
}

func (tx *memoryTx) conditional(id uuid.UUID, now time.Time, match func(Order) bool, to Status) (Order, bool, error) {
	o, ok := tx.orders[id]
	if !ok || !match(o) {
		return Order{}, false, nil
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = now
	tx.orders[id] = o
	return o.Clone(), true, nil
}

func (tx *memoryTx) AppendTimeline(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	entry.ID = int64(len(tx.timeline) + 1)
	tx.timeline = append(tx.timeline, entry)
	return entry, nil
}

// scenarioOrder is the reference order: two lines, 900 subtotal, no tax.
func scenarioOrder(now time.Time) Order {
	id := uuid.New()
	o := Order{
		ID:            id,
		InvoiceNumber: "INV-1-20240301-0001",
		BranchID:      1,
		CustomerID:    10,
		CreatedBy:     5,
		BookingDate:   now.Add(-48 * time.Hour),
		Start:         now.Add(-24 * time.Hour),
		End:           now.Add(time.Hour),
		Status:        StatusActive,
		Version:       1,
		Items: []Item{
			{ID: uuid.New(), OrderID: id, Quantity: 2, PricePerDay: decimal.NewFromInt(300), Days: 1, ReturnStatus: ReturnNotYet},
			{ID: uuid.New(), OrderID: id, Quantity: 1, PricePerDay: decimal.NewFromInt(300), Days: 1, ReturnStatus: ReturnNotYet},
		},
	}
	o.Recalculate()
	return o
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func str(s string) *string {
	return &s
}

type recordingPublisher struct {
	mu     sync.Mutex
	events int
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...changefeed.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events += len(events)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

type recordingOutcomes struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingOutcomes) RecordSettlement(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
