package rental

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentflow/rentflow/internal/platform/httpx"
	"github.com/rentflow/rentflow/internal/shared"
)

type stubEngine struct {
	createReq  CreateOrderRequest
	settleReq  SettleRequest
	settleErr  error
	view       OrderView
	listFilter ListFilter
}

func (s *stubEngine) CreateOrder(ctx context.Context, req CreateOrderRequest, actorID int64) (Order, error) {
	s.createReq = req
	return Order{ID: uuid.New(), Status: StatusScheduled, CreatedBy: actorID}, nil
}

func (s *stubEngine) EditOrder(ctx context.Context, id uuid.UUID, req EditOrderRequest, actorID int64) (Order, error) {
	return Order{ID: id, Version: req.ExpectedVersion + 1}, nil
}

func (s *stubEngine) StartRental(ctx context.Context, id uuid.UUID, actorID int64) (Order, error) {
	return Order{ID: id, Status: StatusActive}, nil
}

func (s *stubEngine) TransitionStatus(ctx context.Context, req TransitionRequest) (OrderView, error) {
	return OrderView{Order: Order{ID: req.OrderID, Status: req.Status}}, nil
}

func (s *stubEngine) SettleReturn(ctx context.Context, req SettleRequest) (SettleResult, error) {
	s.settleReq = req
	if s.settleErr != nil {
		return SettleResult{}, s.settleErr
	}
	return SettleResult{NewStatus: StatusCompleted, TotalAmount: decimal.NewFromInt(950), Version: req.ExpectedVersion + 1}, nil
}

func (s *stubEngine) GetOrder(ctx context.Context, id uuid.UUID) (OrderView, error) {
	if s.view.ID != id {
		return OrderView{}, ErrOrderNotFound
	}
	return s.view, nil
}

func (s *stubEngine) ListOrders(ctx context.Context, filter ListFilter) ([]OrderView, shared.Pagination, error) {
	s.listFilter = filter
	return []OrderView{s.view}, shared.NewPagination(1, 20, 1), nil
}

type recordingTrigger struct {
	mu       sync.Mutex
	branches []int64
}

func (t *recordingTrigger) Touch(ctx context.Context, branchID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.branches = append(t.branches, branchID)
}

func newTestRouter(engine Engine, trigger SweepTrigger) http.Handler {
	h := NewHandler(nil, engine)
	if trigger != nil {
		h.SetSweepTrigger(trigger)
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := shared.ParseActor(r.Header.Get(shared.ActorHeader)); err == nil {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	})
	h.MountRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrderHandlerPassesIdempotencyKey(t *testing.T) {
	engine := &stubEngine{}
	router := newTestRouter(engine, nil)
	body := `{"branch_id":1,"customer_id":2,"start":"2024-03-02T10:00:00Z","end":"2024-03-03T10:00:00Z",
		"items":[{"quantity":2,"price_per_day":"300","days":1}]}`

	rec := doRequest(t, router, http.MethodPost, "/orders", body, map[string]string{
		shared.ActorHeader: "7",
		IdempotencyHeader:  " key-1 ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "key-1", engine.createReq.IdempotencyKey)
	assert.True(t, engine.createReq.Items[0].PricePerDay.Equal(decimal.NewFromInt(300)))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/orders/"))
}

func TestCreateOrderHandlerRequiresActor(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	rec := doRequest(t, router, http.MethodPost, "/orders", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderHandlerReportsEveryField(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	body := `{"branch_id":1,"start":"2024-03-02T10:00:00Z","end":"2024-03-01T10:00:00Z","items":[{"quantity":0,"price_per_day":"1","days":1}]}`

	rec := doRequest(t, router, http.MethodPost, "/orders", body, map[string]string{shared.ActorHeader: "7"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "validation", problem.Type)
	fields := make([]string, 0, len(problem.Fields))
	for _, f := range problem.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"customer_id", "end", "items[0].quantity"}, fields)
}

func TestCreateOrderHandlerRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	rec := doRequest(t, router, http.MethodPost, "/orders", `{"nope":1}`, map[string]string{shared.ActorHeader: "7"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettleReturnHandler(t *testing.T) {
	engine := &stubEngine{}
	router := newTestRouter(engine, nil)
	id := uuid.New()
	itemID := uuid.New()
	body := `{"expected_version":3,"late_fee":"50","items":[{"item_id":"` + itemID.String() + `","returned_quantity":2}]}`

	rec := doRequest(t, router, http.MethodPost, "/orders/"+id.String()+"/returns", body, map[string]string{shared.ActorHeader: "9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, engine.settleReq.OrderID)
	assert.Equal(t, int64(9), engine.settleReq.ActorID)
	require.NotNil(t, engine.settleReq.LateFee)
	assert.Equal(t, "50", engine.settleReq.LateFee.String())

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "completed", result["new_status"])
	assert.Equal(t, "950", result["total_amount"])
	assert.EqualValues(t, 4, result["version"])
}

func TestSettleReturnHandlerMapsErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"version", ErrVersionMismatch, http.StatusConflict},
		{"missing order", ErrOrderNotFound, http.StatusNotFound},
		{"warning", shared.ValidationErrors{{Field: "late_fee", Message: "too high", Warning: true}}, http.StatusBadRequest},
		{"storage", shared.ErrTransientIO, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &stubEngine{settleErr: tc.err}
			router := newTestRouter(engine, nil)
			body := `{"expected_version":1,"items":[{"item_id":"` + uuid.NewString() + `","returned_quantity":1}]}`
			rec := doRequest(t, router, http.MethodPost, "/orders/"+uuid.NewString()+"/returns", body, map[string]string{shared.ActorHeader: "9"})
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestSettleReturnHandlerRequiresVersion(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	body := `{"items":[{"item_id":"` + uuid.NewString() + `","returned_quantity":1}]}`
	rec := doRequest(t, router, http.MethodPost, "/orders/"+uuid.NewString()+"/returns", body, map[string]string{shared.ActorHeader: "9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "expected_version")
}

func TestTransitionHandlerRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	rec := doRequest(t, router, http.MethodPost, "/orders/"+uuid.NewString()+"/status", `{"status":"flagged"}`, map[string]string{shared.ActorHeader: "9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadHandlersTouchSweep(t *testing.T) {
	now := time.Now().UTC()
	view := OrderView{Order: scenarioOrder(now)}
	engine := &stubEngine{view: view}
	trigger := &recordingTrigger{}
	router := newTestRouter(engine, trigger)

	rec := doRequest(t, router, http.MethodGet, "/orders?branch_id=1&category=late&from=2024-03-01", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, engine.listFilter.Category)
	assert.Equal(t, CategoryLate, *engine.listFilter.Category)
	require.NotNil(t, engine.listFilter.From)

	rec = doRequest(t, router, http.MethodGet, "/orders/"+view.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/orders/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []int64{1, 1}, trigger.branches)
}

func TestListHandlerRejectsBadCategory(t *testing.T) {
	router := newTestRouter(&stubEngine{}, nil)
	rec := doRequest(t, router, http.MethodGet, "/orders?category=soon", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListHandlerRejectsOutOfRangePage(t *testing.T) {
	engine := &stubEngine{}
	router := newTestRouter(engine, nil)
	for _, page := range []string{"0", "4611686018427387904"} {
		rec := doRequest(t, router, http.MethodGet, "/orders?page="+page, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "page %s", page)
	}
	assert.Zero(t, engine.listFilter.Page)
}
