package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/changefeed"
	"github.com/rentflow/rentflow/internal/shared"
)

const (
	idempotencyModule = "rental.create"
	maxPerPage        = 100
	listScanBatch     = 500
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	CountOrders(ctx context.Context, filter ListFilter) (int, error)
	ListOrders(ctx context.Context, filter ListFilter, page OrderPage) ([]Order, error)
	ListExpiredScheduled(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error)
	ListOverdueActive(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error)
}

// IdempotencyPort guards order creation against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Complete(ctx context.Context, key, ref string) error
	Resolve(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// OutcomeRecorder counts settlement outcomes.
type OutcomeRecorder interface {
	RecordSettlement(outcome string)
}

// Service orchestrates the order lifecycle.
type Service struct {
	repo        RepositoryPort
	policy      Policy
	logger      *slog.Logger
	notes       *audit.Notes
	feed        changefeed.Publisher
	cache       *Cache
	idempotency IdempotencyPort
	outcomes    OutcomeRecorder
	clock       func() time.Time
}

// NewService constructs the rental service.
func NewService(repo RepositoryPort, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		policy: policy.normalized(),
		logger: logger.With(slog.String("component", "rental")),
		notes:  audit.NewNotes("en"),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SetPublisher wires the change feed.
func (s *Service) SetPublisher(feed changefeed.Publisher) { s.feed = feed }

// SetCache wires the read cache.
func (s *Service) SetCache(cache *Cache) { s.cache = cache }

// SetIdempotency wires the idempotency store used by CreateOrder.
func (s *Service) SetIdempotency(store IdempotencyPort) { s.idempotency = store }

// SetOutcomeRecorder wires settlement metrics.
func (s *Service) SetOutcomeRecorder(rec OutcomeRecorder) { s.outcomes = rec }

// SetNotes overrides the timeline note formatter.
func (s *Service) SetNotes(notes *audit.Notes) {
	if notes != nil {
		s.notes = notes
	}
}

// WithClock overrides the time source for testing.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Policy returns the active lifecycle policy.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) now() time.Time {
	return s.clock()
}

// ============================================================================
// LIFECYCLE OPERATIONS
// ============================================================================

// CreateOrder persists an order and its items in one transaction.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, actorID int64) (Order, error) {
	if actorID <= 0 {
		return Order{}, shared.ErrUnauthenticated
	}
	errs := validateWindow(req.Start, req.End)
	errs = append(errs, validateItems(req.Items)...)
	errs = append(errs, validateTax(req.GSTAmount)...)
	if err := errs.OrNil(); err != nil {
		return Order{}, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return s.replayCreate(ctx, key)
			}
			return Order{}, fmt.Errorf("check idempotency: %w", err)
		}
	}

	now := s.now()
	o := Order{
		ID:          uuid.New(),
		BranchID:    req.BranchID,
		CustomerID:  req.CustomerID,
		CreatedBy:   actorID,
		BookingDate: now,
		Start:       req.Start.UTC(),
		End:         req.End.UTC(),
		Status:      StatusActive,
		GSTAmount:   req.GSTAmount,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if o.Start.After(now) {
		o.Status = StatusScheduled
	}
	o.Items = buildItems(o.ID, req.Items)
	o.Recalculate()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextInvoiceNumber(ctx, o.BranchID, now)
		if err != nil {
			return fmt.Errorf("invoice number: %w", err)
		}
		o.InvoiceNumber = number
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := tx.InsertItems(ctx, o.Items); err != nil {
			return fmt.Errorf("insert items: %w", err)
		}
		return s.appendEntry(ctx, tx, o.ID, audit.ActionCreated, nil, &o.Status, fmt.Sprintf("invoice %s, %d items", o.InvoiceNumber, len(o.Items)), actorID, now)
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, key)
		}
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.Complete(ctx, key, o.ID.String()); err != nil {
			s.logger.Warn("record idempotency result", slog.String("order_id", o.ID.String()), slog.Any("error", err))
		}
	}

	events := []changefeed.Event{s.orderEvent(o, changefeed.KindInsert)}
	events = append(events, s.itemEvents(o, o.Items, changefeed.KindInsert)...)
	s.publish(ctx, events)
	s.logger.Info("order created",
		slog.String("order_id", o.ID.String()),
		slog.String("invoice", o.InvoiceNumber),
		slog.String("status", string(o.Status)),
	)
	return o, nil
}

func (s *Service) replayCreate(ctx context.Context, key string) (Order, error) {
	ref, err := s.idempotency.Resolve(ctx, key)
	if err != nil {
		return Order{}, fmt.Errorf("resolve idempotency: %w", err)
	}
	if ref == "" {
		return Order{}, ErrDuplicateRequest
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return Order{}, fmt.Errorf("resolve idempotency: %w", err)
	}
	return s.repo.GetOrder(ctx, id)
}

// EditOrder replaces the window and/or the item set. Allowed only before any
// quantity has been returned.
func (s *Service) EditOrder(ctx context.Context, id uuid.UUID, req EditOrderRequest, actorID int64) (Order, error) {
	if actorID <= 0 {
		return Order{}, shared.ErrUnauthenticated
	}
	var errs shared.ValidationErrors
	if req.Items != nil {
		errs = append(errs, validateItems(*req.Items)...)
	}
	errs = append(errs, validateTax(req.GSTAmount)...)
	if err := errs.OrNil(); err != nil {
		return Order{}, err
	}

	now := s.now()
	var updated Order
	var removed []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Version != req.ExpectedVersion {
			return ErrVersionMismatch
		}
		if o.HasReturns() {
			return ErrItemsLocked
		}
		if !o.Status.CanEdit() {
			return ErrInvalidTransition
		}

		next := o.Clone()
		var changes []string
		if req.Start != nil {
			next.Start = req.Start.UTC()
			changes = append(changes, "start")
		}
		if req.End != nil {
			next.End = req.End.UTC()
			changes = append(changes, "end")
		}
		if err := validateWindow(next.Start, next.End).OrNil(); err != nil {
			return err
		}
		if req.GSTAmount != nil {
			next.GSTAmount = req.GSTAmount
			changes = append(changes, "tax")
		}
		if req.Items != nil {
			removed = o.Items
			next.Items = buildItems(o.ID, *req.Items)
			changes = append(changes, "items")
			if err := tx.ReplaceItems(ctx, o.ID, next.Items); err != nil {
				return fmt.Errorf("replace items: %w", err)
			}
		}
		next.Recalculate()
		next.Version = o.Version + 1
		next.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = next
		return s.appendEntry(ctx, tx, o.ID, audit.ActionEdited, &o.Status, &next.Status, "updated "+strings.Join(changes, ", "), actorID, now)
	})
	if err != nil {
		return Order{}, fmt.Errorf("edit order: %w", err)
	}

	events := []changefeed.Event{s.orderEvent(updated, changefeed.KindUpdate)}
	if removed != nil {
		events = append(events, s.itemEvents(updated, removed, changefeed.KindDelete)...)
		events = append(events, s.itemEvents(updated, updated.Items, changefeed.KindInsert)...)
	}
	s.afterWrite(ctx, updated, events)
	return updated, nil
}

// StartRental moves a scheduled order to active, shifting the window to
// begin now while keeping its original duration.
func (s *Service) StartRental(ctx context.Context, id uuid.UUID, actorID int64) (Order, error) {
	if actorID <= 0 {
		return Order{}, shared.ErrUnauthenticated
	}
	now := s.now()
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanStart() {
			return ErrInvalidTransition
		}
		next := o.Clone()
		duration := o.Duration()
		next.Start = now
		next.End = now.Add(duration)
		next.Status = StatusActive
		next.Version = o.Version + 1
		next.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = next
		return s.appendEntry(ctx, tx, o.ID, audit.ActionStarted, &o.Status, &next.Status, "window "+next.StartDate()+" to "+next.EndDate(), actorID, now)
	})
	if err != nil {
		return Order{}, fmt.Errorf("start rental: %w", err)
	}
	s.afterWrite(ctx, updated, []changefeed.Event{s.orderEvent(updated, changefeed.KindUpdate)})
	return updated, nil
}

// TransitionStatus applies a simple status change. Repeating the current
// status with no fee change returns the snapshot without writing.
func (s *Service) TransitionStatus(ctx context.Context, req TransitionRequest) (OrderView, error) {
	if req.ActorID <= 0 {
		return OrderView{}, shared.ErrUnauthenticated
	}
	switch req.Status {
	case StatusActive, StatusCompleted, StatusCancelled, StatusPartiallyReturned:
	default:
		return OrderView{}, shared.Invalid("status", "must be one of active, completed, cancelled, partially_returned")
	}
	if req.LateFee != nil && req.LateFee.IsNegative() {
		return OrderView{}, shared.Invalid("late_fee", "must not be negative")
	}

	now := s.now()
	var updated Order
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if o.Status == req.Status && (req.LateFee == nil || req.LateFee.Equal(o.LateFee)) {
			updated = o
			return nil
		}
		if req.Status != o.Status && !CanTransition(o.Status, req.Status) {
			return ErrInvalidTransition
		}
		if req.Status == StatusCancelled && o.Status != StatusCancelled && !s.policy.CanCancel(o, now) {
			return ErrCannotCancel
		}
		if req.LateFee != nil && req.LateFee.GreaterThan(s.policy.LateFeeLimit(o)) {
			return &shared.ValidationError{
				Field:   "late_fee",
				Message: fmt.Sprintf("exceeds %s, confirm the amount", s.policy.LateFeeLimit(o).StringFixed(2)),
				Warning: true,
			}
		}

		next := o.Clone()
		next.Status = req.Status
		if req.LateFee != nil {
			next.LateFee = *req.LateFee
		}
		if req.Status == StatusCompleted && now.After(o.End) {
			next.LateReturned = true
		}
		next.Recalculate()
		next.Version = o.Version + 1
		next.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated, changed = next, true
		notes := "status set to " + string(next.Status)
		if req.LateFee != nil {
			notes += ", late fee " + next.LateFee.StringFixed(2)
		}
		return s.appendEntry(ctx, tx, o.ID, audit.ActionStatusChanged, &o.Status, &next.Status, notes, req.ActorID, now)
	})
	if err != nil {
		return OrderView{}, fmt.Errorf("transition status: %w", err)
	}
	if changed {
		s.afterWrite(ctx, updated, []changefeed.Event{s.orderEvent(updated, changefeed.KindUpdate)})
	}
	return s.view(updated, now), nil
}

// SettleReturn validates and applies a settlement batch atomically. A batch
// that would change nothing returns the current state without writing or
// logging, whatever version the caller holds.
func (s *Service) SettleReturn(ctx context.Context, req SettleRequest) (result SettleResult, err error) {
	defer func() { s.recordOutcome(result, err) }()
	if req.ActorID <= 0 {
		return SettleResult{}, shared.ErrUnauthenticated
	}

	now := s.now()
	var plan SettlementPlan
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.LockOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		plan, err = PlanSettlement(o, req, now, s.policy)
		if err != nil {
			return err
		}
		if plan.NoOp {
			result = SettleResult{NewStatus: o.Status, TotalAmount: o.TotalAmount, Version: o.Version, NoOp: true}
			return nil
		}
		if o.Version != req.ExpectedVersion {
			return ErrVersionMismatch
		}
		if !o.Status.CanSettle() {
			return ErrInvalidTransition
		}

		next := plan.Order
		next.Version = o.Version + 1
		next.UpdatedAt = now
		if err := tx.UpdateItemReturns(ctx, plan.Changed); err != nil {
			return fmt.Errorf("update items: %w", err)
		}
		if err := tx.UpdateOrder(ctx, next); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.appendEntry(ctx, tx, o.ID, audit.ActionReturned, &o.Status, &next.Status, s.notes.Settlement(plan.Summary), req.ActorID, now); err != nil {
			return err
		}
		plan.Order = next
		result = SettleResult{NewStatus: next.Status, TotalAmount: next.TotalAmount, Version: next.Version}
		return nil
	})
	if err != nil {
		return SettleResult{}, fmt.Errorf("settle return: %w", err)
	}
	if !result.NoOp {
		events := []changefeed.Event{s.orderEvent(plan.Order, changefeed.KindUpdate)}
		events = append(events, s.itemEvents(plan.Order, plan.Changed, changefeed.KindUpdate)...)
		s.afterWrite(ctx, plan.Order, events)
		s.logger.Info("return settled",
			slog.String("order_id", req.OrderID.String()),
			slog.String("status", string(result.NewStatus)),
			slog.String("total", result.TotalAmount.String()),
			slog.Int("items", len(plan.Changed)),
		)
	}
	return result, nil
}

func (s *Service) recordOutcome(result SettleResult, err error) {
	if s.outcomes == nil {
		return
	}
	outcome := "applied"
	switch {
	case err == nil && result.NoOp:
		outcome = "noop"
	case err == nil:
	case errors.Is(err, shared.ErrValidation):
		outcome = "validation"
	case errors.Is(err, shared.ErrConflict):
		outcome = "conflict"
	case errors.Is(err, shared.ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	s.outcomes.RecordSettlement(outcome)
}

// ============================================================================
// SWEEPER OPERATIONS
// ============================================================================

// ExpiredCandidates lists scheduled orders whose start has passed.
func (s *Service) ExpiredCandidates(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.repo.ListExpiredScheduled(ctx, branchID, now, limit)
}

// OverdueCandidates lists active orders whose window has ended.
func (s *Service) OverdueCandidates(ctx context.Context, branchID int64, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.repo.ListOverdueActive(ctx, branchID, now, limit)
}

// ExpireOrder cancels a scheduled order whose start has passed. It reports
// false when the order was already handled elsewhere.
func (s *Service) ExpireOrder(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return s.conditionalTransition(ctx, id, now, StatusScheduled, StatusCancelled, audit.ActionExpired,
		func(tx TxRepository, o *Order, changed *bool) error {
			var err error
			*o, *changed, err = tx.ExpireScheduled(ctx, id, now)
			return err
		},
		func(o Order) string {
			return s.notes.Expired(int64(now.Sub(o.Start) / time.Minute))
		})
}

// MarkOverdue moves an active order past its end to pending_return.
func (s *Service) MarkOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	return s.conditionalTransition(ctx, id, now, StatusActive, StatusPendingReturn, audit.ActionStatusChanged,
		func(tx TxRepository, o *Order, changed *bool) error {
			var err error
			*o, *changed, err = tx.MarkOverdue(ctx, id, now)
			return err
		},
		func(o Order) string {
			return "rental window ended " + o.EndDate()
		})
}

func (s *Service) conditionalTransition(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	from, to Status,
	action audit.Action,
	update func(TxRepository, *Order, *bool) error,
	notes func(Order) string,
) (bool, error) {
	var o Order
	var changed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := update(tx, &o, &changed); err != nil || !changed {
			return err
		}
		return s.appendEntry(ctx, tx, id, action, &from, &to, notes(o), 0, now)
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.afterWrite(ctx, o, []changefeed.Event{s.orderEvent(o, changefeed.KindUpdate)})
	}
	return changed, nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

// GetOrder returns an order snapshot with derived display data.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (OrderView, error) {
	o, err := s.cache.FetchOrder(ctx, id, func(ctx context.Context) (Order, error) {
		return s.repo.GetOrder(ctx, id)
	})
	if err != nil {
		return OrderView{}, err
	}
	return s.view(o, s.now()), nil
}

// ListOrders lists orders, optionally narrowed to one display category.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]OrderView, shared.Pagination, error) {
	if filter.Category != nil && !filter.Category.IsValid() {
		return nil, shared.Pagination{}, shared.Invalid("category", "unknown display category")
	}
	if filter.PerPage <= 0 {
		filter.PerPage = shared.DefaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}
	filter.Page = shared.ClampPage(filter.Page)
	if filter.Category != nil {
		return s.listByCategory(ctx, filter)
	}

	total, err := s.repo.CountOrders(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	paging := shared.NewPagination(filter.Page, filter.PerPage, total)
	start, end := paging.Bounds()
	views := make([]OrderView, 0, end-start)
	if start == end {
		return views, paging, nil
	}
	orders, err := s.repo.ListOrders(ctx, filter, OrderPage{Offset: start, Limit: end - start})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	now := s.now()
	for _, o := range orders {
		views = append(views, s.view(o, now))
	}
	return views, paging, nil
}

// listByCategory walks the whole range in keyset batches. The category
// depends on the clock, so matches are counted here rather than in SQL.
func (s *Service) listByCategory(ctx context.Context, filter ListFilter) ([]OrderView, shared.Pagination, error) {
	now := s.now()
	skip := shared.PageOffset(filter.Page, filter.PerPage)
	views := make([]OrderView, 0, filter.PerPage)
	total := 0
	var after *ListCursor
	for {
		batch, err := s.repo.ListOrders(ctx, filter, OrderPage{After: after, Limit: listScanBatch})
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		for _, o := range batch {
			v := s.view(o, now)
			if v.Category != *filter.Category {
				continue
			}
			if total >= skip && len(views) < filter.PerPage {
				views = append(views, v)
			}
			total++
		}
		if len(batch) < listScanBatch {
			break
		}
		last := batch[len(batch)-1]
		after = &ListCursor{Start: last.Start, ID: last.ID}
	}
	return views, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) view(o Order, now time.Time) OrderView {
	return OrderView{
		Order:     o,
		StartDay:  o.StartDate(),
		EndDay:    o.EndDate(),
		Category:  DisplayCategoryOf(o, now),
		CanCancel: s.policy.CanCancel(o, now),
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *Service) appendEntry(ctx context.Context, tx TxRepository, orderID uuid.UUID, action audit.Action, prev, next *Status, notes string, actorID int64, at time.Time) error {
	entry := audit.Entry{
		OrderID:   orderID,
		Action:    action,
		Notes:     notes,
		ActorID:   actorID,
		CreatedAt: at,
	}
	if prev != nil {
		v := string(*prev)
		entry.PreviousStatus = &v
	}
	if next != nil {
		v := string(*next)
		entry.NewStatus = &v
	}
	if _, err := tx.AppendTimeline(ctx, entry); err != nil {
		return fmt.Errorf("append timeline: %w", err)
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, o Order, events []changefeed.Event) {
	if err := s.cache.Bump(ctx, o.ID); err != nil {
		s.logger.Warn("bump order cache", slog.String("order_id", o.ID.String()), slog.Any("error", err))
	}
	s.publish(ctx, events)
}

// publish never fails the caller: the write is already committed and
// consumers fall back to refetching.
func (s *Service) publish(ctx context.Context, events []changefeed.Event) {
	if s.feed == nil || len(events) == 0 {
		return
	}
	if err := s.feed.Publish(ctx, events...); err != nil {
		s.logger.Warn("publish change events", slog.Int("events", len(events)), slog.Any("error", err))
	}
}

func (s *Service) orderEvent(o Order, kind changefeed.Kind) changefeed.Event {
	return changefeed.Event{Entity: changefeed.EntityOrder, ID: o.ID, OrderID: o.ID, BranchID: o.BranchID, Kind: kind, At: s.now()}
}

func (s *Service) itemEvents(o Order, items []Item, kind changefeed.Kind) []changefeed.Event {
	events := make([]changefeed.Event, 0, len(items))
	at := s.now()
	for _, it := range items {
		events = append(events, changefeed.Event{Entity: changefeed.EntityItem, ID: it.ID, OrderID: o.ID, BranchID: o.BranchID, Kind: kind, At: at})
	}
	return events
}

func buildItems(orderID uuid.UUID, inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, Item{
			ID:           uuid.New(),
			OrderID:      orderID,
			ProductName:  trimmedOrNil(in.ProductName),
			PhotoRef:     trimmedOrNil(in.PhotoRef),
			Quantity:     in.Quantity,
			PricePerDay:  in.PricePerDay,
			Days:         in.Days,
			ReturnStatus: ReturnNotYet,
			DamageFee:    decimal.Zero,
		})
	}
	return items
}

func validateWindow(start, end time.Time) shared.ValidationErrors {
	var errs shared.ValidationErrors
	if start.IsZero() {
		errs = append(errs, shared.Invalid("start", "is required"))
	}
	if end.IsZero() {
		errs = append(errs, shared.Invalid("end", "is required"))
	}
	if len(errs) == 0 && !end.After(start) {
		errs = append(errs, shared.Invalid("end", "must be after start"))
	}
	return errs
}

func validateItems(items []ItemInput) shared.ValidationErrors {
	var errs shared.ValidationErrors
	if len(items) == 0 {
		errs = append(errs, shared.Invalid("items", "at least one item is required"))
	}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if it.Quantity <= 0 {
			errs = append(errs, shared.Invalid(field+".quantity", "must be greater than zero"))
		}
		if it.Days <= 0 {
			errs = append(errs, shared.Invalid(field+".days", "must be greater than zero"))
		}
		if it.PricePerDay.IsNegative() {
			errs = append(errs, shared.Invalid(field+".price_per_day", "must not be negative"))
		}
	}
	return errs
}

func validateTax(gst *decimal.Decimal) shared.ValidationErrors {
	if gst != nil && gst.IsNegative() {
		return shared.ValidationErrors{shared.Invalid("gst_amount", "must not be negative")}
	}
	return nil
}
