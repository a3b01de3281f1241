package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentflow/rentflow/internal/platform/httpx"
	"github.com/rentflow/rentflow/internal/rental"
	"github.com/rentflow/rentflow/internal/shared"
)

// RemoteEngine talks to the order API over HTTP so a Client can run outside
// the server process.
type RemoteEngine struct {
	baseURL string
	actorID int64
	http    *http.Client
}

// NewRemoteEngine targets an API root such as "https://shop.example/api/v1".
// A nil httpClient gets one with a 10 second timeout.
func NewRemoteEngine(baseURL string, actorID int64, httpClient *http.Client) *RemoteEngine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteEngine{baseURL: strings.TrimRight(baseURL, "/"), actorID: actorID, http: httpClient}
}

// GetOrder fetches the authoritative order view.
func (e *RemoteEngine) GetOrder(ctx context.Context, id uuid.UUID) (rental.OrderView, error) {
	var view rental.OrderView
	err := e.do(ctx, http.MethodGet, "/orders/"+id.String(), nil, &view)
	return view, err
}

// SettleReturn submits one settlement batch.
func (e *RemoteEngine) SettleReturn(ctx context.Context, req rental.SettleRequest) (rental.SettleResult, error) {
	var res rental.SettleResult
	err := e.do(ctx, http.MethodPost, "/orders/"+req.OrderID.String()+"/returns", req, &res)
	return res, err
}

// TransitionStatus requests a direct status change.
func (e *RemoteEngine) TransitionStatus(ctx context.Context, req rental.TransitionRequest) (rental.OrderView, error) {
	var view rental.OrderView
	err := e.do(ctx, http.MethodPost, "/orders/"+req.OrderID.String()+"/status", req, &view)
	return view, err
}

func (e *RemoteEngine) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.actorID > 0 {
		req.Header.Set(shared.ActorHeader, strconv.FormatInt(e.actorID, 10))
	}

	resp, err := e.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", shared.ErrTransientIO, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeProblem(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", shared.ErrTransientIO, path, err)
	}
	return nil
}

// decodeProblem turns a problem response back into the error class the
// server mapped it from.
func decodeProblem(resp *http.Response) error {
	var p httpx.ProblemDetail
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&p)
	msg := p.Detail
	if msg == "" {
		msg = p.Title
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if len(p.Fields) == 0 {
			return fmt.Errorf("%s: %w", msg, shared.ErrValidation)
		}
		errs := make(shared.ValidationErrors, 0, len(p.Fields))
		for _, f := range p.Fields {
			errs = append(errs, &shared.ValidationError{Field: f.Field, Message: f.Message, Warning: f.Warning})
		}
		return errs
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, shared.ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, shared.ErrConflict)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, shared.ErrUnauthenticated)
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", shared.ErrTransientIO, resp.StatusCode)
	default:
		return fmt.Errorf("order api: status %d: %s", resp.StatusCode, msg)
	}
}
