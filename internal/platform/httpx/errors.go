package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/rentflow/rentflow/internal/shared"
)

// RespondError maps classified domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fields shared.ValidationErrors
	var single *shared.ValidationError
	switch {
	case errors.As(err, &fields):
		ValidationProblem(w, fields)
	case errors.As(err, &single):
		ValidationProblem(w, shared.ValidationErrors{single})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthenticated", err.Error())
	case errors.Is(err, shared.ErrTransientIO), errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
