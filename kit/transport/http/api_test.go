package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/calyxweb/calyx/kit/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRespond(t *testing.T) {
	t.Parallel()

	api := NewAPI(WithLog(zaptest.NewLogger(t)))

	t.Run("with body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/things", nil)

		api.Respond(w, r, http.StatusOK, map[string]string{"message": "hi"})

		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
		require.JSONEq(t, `{"message": "hi"}`, w.Body.String())
	})

	t.Run("nil body writes only the status", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest("DELETE", "/things/1", nil)

		api.Respond(w, r, http.StatusNoContent, nil)

		require.Equal(t, http.StatusNoContent, w.Code)
		require.Equal(t, 0, w.Body.Len())
	})
}

func TestErrStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     string
		wantHTTP int
	}{
		{errors.ENotFound, http.StatusNotFound},
		{errors.EInvalid, http.StatusBadRequest},
		{errors.EConflict, http.StatusUnprocessableEntity},
		{errors.EForbidden, http.StatusForbidden},
		{errors.EInternal, http.StatusInternalServerError},
		{errors.EUnavailable, http.StatusServiceUnavailable},
	}

	api := NewAPI(WithLog(zaptest.NewLogger(t)))

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/things", nil)

			api.Err(w, r, &errors.Error{Code: tt.code, Msg: "oops"})

			require.Equal(t, tt.wantHTTP, w.Code)
			require.Equal(t, tt.code, w.Header().Get(ErrorCodeHeader))
			require.JSONEq(t, fmt.Sprintf(`{"code": %q, "message": "oops"}`, tt.code), w.Body.String())
		})
	}
}

func TestErrHidesInternalDetail(t *testing.T) {
	t.Parallel()

	api := NewAPI(WithLog(zaptest.NewLogger(t)))
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/things", nil)

	api.Err(w, r, fmt.Errorf("database file is corrupt at offset 1234"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "offset 1234")
}

type decodeBody struct {
	Title string `json:"title"`
}

type validatedBody struct {
	Title string `json:"title"`
}

func (b *validatedBody) Validate() error {
	if b.Title == "" {
		return &errors.Error{Code: errors.EInvalid, Msg: "title is required"}
	}
	return nil
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	api := NewAPI()

	t.Run("decodes a valid body", func(t *testing.T) {
		var b decodeBody
		err := api.DecodeJSON(strings.NewReader(`{"title": "peony"}`), &b)
		require.NoError(t, err)
		require.Equal(t, "peony", b.Title)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		var b decodeBody
		err := api.DecodeJSON(strings.NewReader(`{"title": "peony", "extra": 1}`), &b)
		require.Error(t, err)
		require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		var b decodeBody
		err := api.DecodeJSON(strings.NewReader(`{"title":`), &b)
		require.Error(t, err)
		require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
	})

	t.Run("runs the validator", func(t *testing.T) {
		var b validatedBody
		err := api.DecodeJSON(strings.NewReader(`{"title": ""}`), &b)
		require.Error(t, err)
		require.Equal(t, errors.EInvalid, errors.ErrorCode(err))
		require.Contains(t, err.Error(), "title is required")
	})
}
