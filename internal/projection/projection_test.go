package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/rentflow/internal/changefeed"
	"github.com/rentflow/rentflow/internal/rental"
	"github.com/rentflow/rentflow/internal/shared"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleOrder() rental.Order {
	id := uuid.New()
	o := rental.Order{
		ID:          id,
		BranchID:    1,
		BookingDate: testNow.Add(-48 * time.Hour),
		Start:       testNow.Add(-24 * time.Hour),
		End:         testNow.Add(time.Hour),
		Status:      rental.StatusActive,
		Version:     1,
		Items: []rental.Item{
			{ID: uuid.New(), OrderID: id, Quantity: 2, PricePerDay: decimal.NewFromInt(300), Days: 1, ReturnStatus: rental.ReturnNotYet},
			{ID: uuid.New(), OrderID: id, Quantity: 1, PricePerDay: decimal.NewFromInt(300), Days: 1, ReturnStatus: rental.ReturnNotYet},
		},
	}
	o.Recalculate()
	return o
}

func TestMemoryStoreApplyAndRollback(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	store.Reconcile(o, 0)

	mutation, err := store.ApplyOptimistic(o.ID, StatusPatch{Status: rental.StatusCancelled})
	require.NoError(t, err)
	view, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, rental.StatusCancelled, view.Status)

	store.Rollback(o.ID, mutation)
	view, _ = store.Get(o.ID)
	assert.Equal(t, rental.StatusActive, view.Status)
	assert.Zero(t, store.Pending(o.ID))
}

func TestMemoryStoreSettlementPatchUsesPlanning(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	store.Reconcile(o, 0)
	late := decimal.NewFromInt(50)

	_, err := store.ApplyOptimistic(o.ID, SettlementPatch{
		Request: rental.SettleRequest{
			OrderID: o.ID,
			Items:   []rental.ItemOutcome{{ItemID: o.Items[0].ID, ReturnedQuantity: 2}},
			LateFee: &late,
		},
		Now:    testNow,
		Policy: rental.DefaultPolicy(),
	})
	require.NoError(t, err)

	view, _ := store.Get(o.ID)
	assert.Equal(t, rental.StatusPartiallyReturned, view.Status)
	assert.Equal(t, "950", view.TotalAmount.String())
	assert.Equal(t, int64(1), view.Version, "tentative views keep the authoritative version")
}

func TestMemoryStoreRejectedPatchLeavesNoTrace(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	store.Reconcile(o, 0)

	_, err := store.ApplyOptimistic(o.ID, SettlementPatch{
		Request: rental.SettleRequest{Items: []rental.ItemOutcome{{ItemID: o.Items[0].ID, ReturnedQuantity: 5}}},
		Now:     testNow,
		Policy:  rental.DefaultPolicy(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, store.Pending(o.ID))

	_, err = store.ApplyOptimistic(uuid.New(), StatusPatch{Status: rental.StatusCompleted})
	require.ErrorIs(t, err, ErrNotCached)
}

func TestMemoryStoreIgnoresStaleAuthoritativeSnapshot(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	newer := o.Clone()
	newer.Version = 3
	newer.Status = rental.StatusFlagged
	store.Reconcile(newer, 0)

	store.Reconcile(o, 0)
	view, _ := store.Get(o.ID)
	assert.Equal(t, int64(3), view.Version)
	assert.Equal(t, rental.StatusFlagged, view.Status)
}

func TestMemoryStoreRollbackKeepsNewerRemoteWrite(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	store.Reconcile(o, 0)

	mutation, err := store.ApplyOptimistic(o.ID, StatusPatch{Status: rental.StatusCompleted})
	require.NoError(t, err)

	remote := o.Clone()
	remote.Version = 2
	remote.LateFee = decimal.NewFromInt(20)
	remote.Recalculate()
	store.Reconcile(remote, 0)

	view, _ := store.Get(o.ID)
	assert.Equal(t, rental.StatusCompleted, view.Status, "pending write still shown over the remote change")
	assert.Equal(t, "920", view.TotalAmount.String())

	store.Rollback(o.ID, mutation)
	view, _ = store.Get(o.ID)
	assert.Equal(t, rental.StatusActive, view.Status)
	assert.Equal(t, int64(2), view.Version)
	assert.Equal(t, "920", view.TotalAmount.String())
}

func TestMemoryStoreInvalidateKeepsPendingOverlays(t *testing.T) {
	store := NewMemoryStore()
	o := sampleOrder()
	store.Reconcile(o, 0)
	mutation, err := store.ApplyOptimistic(o.ID, StatusPatch{Status: rental.StatusCompleted})
	require.NoError(t, err)

	store.Invalidate(o.ID)
	_, ok := store.Get(o.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Pending(o.ID))

	confirmed := o.Clone()
	confirmed.Version = 2
	confirmed.Status = rental.StatusCompleted
	store.Reconcile(confirmed, mutation)
	view, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), view.Version)
	assert.Zero(t, store.Pending(o.ID))
}

// fakeEngine records what the projection looked like while each call was in
// flight.
type fakeEngine struct {
	mu        sync.Mutex
	order     rental.Order
	settleErr error
	getErr    error
	gets      int
	store     Store
	during    rental.Status
}

func (f *fakeEngine) GetOrder(ctx context.Context, id uuid.UUID) (rental.OrderView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return rental.OrderView{}, f.getErr
	}
	if id != f.order.ID {
		return rental.OrderView{}, fmt.Errorf("get: %w", shared.ErrNotFound)
	}
	return rental.OrderView{Order: f.order.Clone()}, nil
}

func (f *fakeEngine) SettleReturn(ctx context.Context, req rental.SettleRequest) (rental.SettleResult, error) {
	if f.store != nil {
		view, _ := f.store.Get(req.OrderID)
		f.during = view.Status
	}
	if f.settleErr != nil {
		return rental.SettleResult{}, f.settleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	plan, err := rental.PlanSettlement(f.order, req, testNow, rental.DefaultPolicy())
	if err != nil {
		return rental.SettleResult{}, err
	}
	plan.Order.Version = f.order.Version + 1
	f.order = plan.Order
	return rental.SettleResult{NewStatus: f.order.Status, TotalAmount: f.order.TotalAmount, Version: f.order.Version}, nil
}

func (f *fakeEngine) TransitionStatus(ctx context.Context, req rental.TransitionRequest) (rental.OrderView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order.Status = req.Status
	f.order.Version++
	return rental.OrderView{Order: f.order.Clone()}, nil
}

func TestClientSettleReconcilesWithServer(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	engine := &fakeEngine{order: o, store: store}
	client := NewClient(engine, store, rental.DefaultPolicy(), nil).WithClock(func() time.Time { return testNow })

	res, err := client.SettleReturn(context.Background(), rental.SettleRequest{
		OrderID:         o.ID,
		ExpectedVersion: 1,
		Items: []rental.ItemOutcome{
			{ItemID: o.Items[0].ID, ReturnedQuantity: 2},
			{ItemID: o.Items[1].ID, ReturnedQuantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCompleted, engine.during, "tentative result visible while the call is in flight")
	assert.Equal(t, rental.StatusCompleted, res.NewStatus)

	view, ok := store.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, int64(2), view.Version)
	assert.Zero(t, store.Pending(o.ID))
}

func TestClientSettleRollsBackOnFailure(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	engine := &fakeEngine{order: o, store: store, settleErr: fmt.Errorf("settle: %w", rental.ErrVersionMismatch)}
	client := NewClient(engine, store, rental.DefaultPolicy(), nil).WithClock(func() time.Time { return testNow })

	_, err := client.SettleReturn(context.Background(), rental.SettleRequest{
		OrderID:         o.ID,
		ExpectedVersion: 1,
		Items:           []rental.ItemOutcome{{ItemID: o.Items[0].ID, ReturnedQuantity: 2}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, rental.StatusPartiallyReturned, engine.during)

	view, _ := store.Get(o.ID)
	assert.Equal(t, rental.StatusActive, view.Status)
	assert.Zero(t, store.Pending(o.ID))
}

func TestClientSettleLocalValidationSkipsEngine(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	engine := &fakeEngine{order: o, store: store}
	client := NewClient(engine, store, rental.DefaultPolicy(), nil).WithClock(func() time.Time { return testNow })

	_, err := client.SettleReturn(context.Background(), rental.SettleRequest{
		OrderID:         o.ID,
		ExpectedVersion: 1,
		Items:           []rental.ItemOutcome{{ItemID: uuid.New(), ReturnedQuantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, engine.during)
	assert.Equal(t, int64(1), engine.order.Version)
}

func TestClientRefetchFailureInvalidates(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	engine := &fakeEngine{order: o}
	client := NewClient(engine, store, rental.DefaultPolicy(), nil).WithClock(func() time.Time { return testNow })
	_, err := client.Order(context.Background(), o.ID)
	require.NoError(t, err)

	engine.getErr = shared.ErrTransientIO
	_, err = client.SettleReturn(context.Background(), rental.SettleRequest{
		OrderID:         o.ID,
		ExpectedVersion: 1,
		Items:           []rental.ItemOutcome{{ItemID: o.Items[0].ID, ReturnedQuantity: 2}},
	})
	require.NoError(t, err, "the write itself succeeded")
	_, ok := store.Get(o.ID)
	assert.False(t, ok)
	assert.Zero(t, store.Pending(o.ID))
}

func TestClientTransitionStatus(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	engine := &fakeEngine{order: o}
	client := NewClient(engine, store, rental.DefaultPolicy(), nil)

	view, err := client.TransitionStatus(context.Background(), rental.TransitionRequest{OrderID: o.ID, Status: rental.StatusCompleted, ActorID: 1})
	require.NoError(t, err)
	assert.Equal(t, rental.StatusCompleted, view.Status)
	cached, _ := store.Get(o.ID)
	assert.Equal(t, int64(2), cached.Version)
}

type chanFeed struct {
	ch chan changefeed.Event
}

func (f *chanFeed) Subscribe(ctx context.Context, branchID int64) (<-chan changefeed.Event, error) {
	return f.ch, nil
}

func TestSyncerRefreshesCachedOrders(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	store.Reconcile(o, 0)
	remote := o.Clone()
	remote.Version = 4
	remote.Status = rental.StatusFlagged
	engine := &fakeEngine{order: remote}
	feed := &chanFeed{ch: make(chan changefeed.Event, 4)}
	syncer := NewSyncer(feed, engine, store, nil)

	feed.ch <- changefeed.Event{Entity: changefeed.EntityItem, ID: o.Items[0].ID, OrderID: o.ID, Kind: changefeed.KindUpdate}
	feed.ch <- changefeed.Event{Entity: changefeed.EntityOrder, ID: uuid.New(), OrderID: uuid.New(), Kind: changefeed.KindUpdate}
	close(feed.ch)
	require.NoError(t, syncer.Run(context.Background(), 1))

	view, _ := store.Get(o.ID)
	assert.Equal(t, int64(4), view.Version)
	assert.Equal(t, rental.StatusFlagged, view.Status)
	assert.Equal(t, 1, engine.gets, "uncached orders are not fetched")
}

func TestSyncerInvalidatesOnDeleteAndNotFound(t *testing.T) {
	o := sampleOrder()
	gone := sampleOrder()
	store := NewMemoryStore()
	store.Reconcile(o, 0)
	store.Reconcile(gone, 0)
	syncer := NewSyncer(&chanFeed{}, &fakeEngine{order: o}, store, nil)

	syncer.Handle(context.Background(), changefeed.Event{Entity: changefeed.EntityOrder, ID: o.ID, OrderID: o.ID, Kind: changefeed.KindDelete})
	_, ok := store.Get(o.ID)
	assert.False(t, ok)

	require.NoError(t, syncer.Refresh(context.Background(), gone.ID))
	_, ok = store.Get(gone.ID)
	assert.False(t, ok)
}

func TestSyncerRefreshReportsTransientErrors(t *testing.T) {
	o := sampleOrder()
	store := NewMemoryStore()
	store.Reconcile(o, 0)
	syncer := NewSyncer(&chanFeed{}, &fakeEngine{order: o, getErr: errors.New("offline")}, store, nil)

	require.Error(t, syncer.Refresh(context.Background(), o.ID))
	_, ok := store.Get(o.ID)
	assert.True(t, ok, "stale data stays visible while offline")
}
