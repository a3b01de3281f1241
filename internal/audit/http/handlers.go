package audithttp

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/audit"
	"github.com/rentflow/rentflow/internal/platform/httpx"
	"github.com/rentflow/rentflow/internal/shared"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, orderID uuid.UUID) ([]audit.Entry, error)
}

// Handler serves order timelines.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
}

// NewHandler wires the timeline handler.
func NewHandler(logger *slog.Logger, service TimelineService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load order timeline", slog.Any("error", err), slog.String("order_id", filters.OrderID.String()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	orderID, err := parseOrderID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Export(r.Context(), orderID)
	if err != nil {
		h.logger.Error("export order timeline", slog.Any("error", err), slog.String("order_id", orderID.String()))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"timeline-%s.csv\"", orderID))
	if err := writeCSV(w, entries); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func writeCSV(w http.ResponseWriter, entries []audit.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "action", "previous_status", "new_status", "actor_id", "notes"}); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			deref(e.PreviousStatus),
			deref(e.NewStatus),
			strconv.FormatInt(e.ActorID, 10),
			e.Notes,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, shared.Invalid("id", "must be a UUID")
	}
	return id, nil
}

func parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	orderID, err := parseOrderID(r)
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	filters := audit.TimelineFilters{OrderID: orderID}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		if filters.Page, err = strconv.Atoi(raw); err != nil || filters.Page < 1 || filters.Page > shared.MaxPage {
			return audit.TimelineFilters{}, shared.Invalid("page", fmt.Sprintf("must be an integer between 1 and %d", shared.MaxPage))
		}
	}
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		if filters.PageSize, err = strconv.Atoi(raw); err != nil {
			return audit.TimelineFilters{}, shared.Invalid("page_size", "must be an integer")
		}
	}
	return filters, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
