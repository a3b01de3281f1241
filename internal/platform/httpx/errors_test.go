package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rentflow/rentflow/internal/shared"
)

func TestRespondErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("order: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("settle: %w", shared.ErrConflict), http.StatusConflict},
		{shared.ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: dial tcp", shared.ErrTransientIO), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.code, rr.Code, tc.err.Error())
	}
}

func TestRespondErrorListsFields(t *testing.T) {
	rr := httptest.NewRecorder()
	errs := shared.ValidationErrors{
		shared.Invalid("items[1].damage_description", "required when damage_fee > 0"),
	}
	RespondError(rr, fmt.Errorf("settle: %w", errs))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "validation", body.Type)
	require.Len(t, body.Fields, 1)
	require.Equal(t, "items[1].damage_description", body.Fields[0].Field)
}
