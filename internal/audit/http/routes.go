package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/rentflow/rentflow/internal/platform/httpx"
	"github.com/rentflow/rentflow/internal/shared"
)

// CSV exports scan the whole timeline, so they get a tighter per-actor budget.
const (
	exportLimit  = 10
	exportWindow = time.Minute
)

// MountRoutes registers the order timeline endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/orders/{id}/timeline", h.handleTimeline)
	r.With(httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(exportKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too many exports", "retry after the window resets")
		}),
	)).Get("/orders/{id}/timeline.csv", h.handleExport)
}

// exportKey buckets by actor when known, else by client IP.
func exportKey(r *http.Request) (string, error) {
	if actor, err := shared.ActorFromContext(r.Context()); err == nil {
		return "actor:" + strconv.FormatInt(actor, 10), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
