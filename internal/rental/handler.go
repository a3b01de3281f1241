package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/platform/httpx"
	"github.com/rentflow/rentflow/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for order creation.
const IdempotencyHeader = "Idempotency-Key"

// Engine is the contract the HTTP layer needs from the lifecycle service.
type Engine interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest, actorID int64) (Order, error)
	EditOrder(ctx context.Context, id uuid.UUID, req EditOrderRequest, actorID int64) (Order, error)
	StartRental(ctx context.Context, id uuid.UUID, actorID int64) (Order, error)
	TransitionStatus(ctx context.Context, req TransitionRequest) (OrderView, error)
	SettleReturn(ctx context.Context, req SettleRequest) (SettleResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (OrderView, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]OrderView, shared.Pagination, error)
}

// SweepTrigger asks for an expiry sweep of one branch. Implementations must
// not block the caller.
type SweepTrigger interface {
	Touch(ctx context.Context, branchID int64)
}

// Handler manages order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Engine
	validator *validator.Validate
	sweep     SweepTrigger
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Engine) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{logger: logger, service: service, validator: v}
}

// SetSweepTrigger wires the read-path expiry trigger.
func (h *Handler) SetSweepTrigger(t SweepTrigger) { h.sweep = t }

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.showOrder)
	r.Put("/orders/{id}", h.editOrder)
	r.Post("/orders/{id}/start", h.startRental)
	r.Post("/orders/{id}/status", h.transitionStatus)
	r.Post("/orders/{id}/returns", h.settleReturn)
}

// ============================================================================
// READ HANDLERS
// ============================================================================

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.touch(r.Context(), filter.BranchID)
	views, paging, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": views,
		"paging": paging,
	})
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err, slog.String("order_id", id.String()))
		return
	}
	h.touch(r.Context(), view.BranchID)
	httpx.JSON(w, http.StatusOK, view)
}

// ============================================================================
// WRITE HANDLERS
// ============================================================================

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actorID, err := shared.ActorFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateOrderRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	order, err := h.service.CreateOrder(r.Context(), req, actorID)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID.String())
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) editOrder(w http.ResponseWriter, r *http.Request) {
	actorID, err := shared.ActorFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := orderIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req EditOrderRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.EditOrder(r.Context(), id, req, actorID)
	if err != nil {
		h.fail(w, "edit order", err, slog.String("order_id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) startRental(w http.ResponseWriter, r *http.Request) {
	actorID, err := shared.ActorFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := orderIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.StartRental(r.Context(), id, actorID)
	if err != nil {
		h.fail(w, "start rental", err, slog.String("order_id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) transitionStatus(w http.ResponseWriter, r *http.Request) {
	actorID, err := shared.ActorFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := orderIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req TransitionRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.OrderID, req.ActorID = id, actorID
	view, err := h.service.TransitionStatus(r.Context(), req)
	if err != nil {
		h.fail(w, "transition status", err, slog.String("order_id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) settleReturn(w http.ResponseWriter, r *http.Request) {
	actorID, err := shared.ActorFromContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := orderIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SettleRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.OrderID, req.ActorID = id, actorID
	result, err := h.service.SettleReturn(r.Context(), req)
	if err != nil {
		h.fail(w, "settle return", err, slog.String("order_id", id.String()))
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// ============================================================================
// HELPERS
// ============================================================================

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return shared.Invalid("body", "malformed JSON: "+err.Error())
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		errs := make(shared.ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, shared.Invalid(fieldPath(fe), describe(fe)))
		}
		return errs
	}
	return nil
}

// fieldPath drops the root struct name: "SettleRequest.items[0].item_id"
// becomes "items[0].item_id".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gtfield":
		return "must be after " + strings.ToLower(fe.Param())
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrConflict):
		h.logger.Debug(op, append(attrs, slog.Any("error", err))...)
	default:
		h.logger.Error(op, append(attrs, slog.Any("error", err))...)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) touch(ctx context.Context, branchID int64) {
	if h.sweep == nil || branchID <= 0 {
		return
	}
	h.sweep.Touch(ctx, branchID)
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, shared.Invalid("id", "must be a UUID")
	}
	return id, nil
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	var errs shared.ValidationErrors
	if raw := strings.TrimSpace(q.Get("branch_id")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			errs = append(errs, shared.Invalid("branch_id", "must be a positive integer"))
		}
		filter.BranchID = v
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		c := DisplayCategory(raw)
		if !c.IsValid() {
			errs = append(errs, shared.Invalid("category", "unknown display category"))
		}
		filter.Category = &c
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := parseInstant(raw)
		if err != nil {
			errs = append(errs, shared.Invalid(p.name, "must be RFC3339 or YYYY-MM-DD"))
			continue
		}
		*p.dst = &t
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > shared.MaxPage {
			errs = append(errs, shared.Invalid("page", fmt.Sprintf("must be an integer between 1 and %d", shared.MaxPage)))
		}
		filter.Page = v
	}
	if raw := strings.TrimSpace(q.Get("per_page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, shared.Invalid("per_page", "must be an integer"))
		}
		filter.PerPage = v
	}
	return filter, errs.OrNil()
}

func parseInstant(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(dateLayout, raw)
}
