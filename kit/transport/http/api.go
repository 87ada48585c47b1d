// Package http provides the shared HTTP plumbing of calyx: response
// encoding, coded-error handling, and middleware.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/calyxweb/calyx/kit/errors"
	"go.uber.org/zap"
)

// API is the toolkit route handlers use to read requests and write
// responses. All responses, including errors, are JSON.
type API struct {
	log *zap.Logger
}

// APIOption configures an API.
type APIOption func(*API)

// WithLog sets the logger errors are reported to.
func WithLog(log *zap.Logger) APIOption {
	return func(a *API) {
		a.log = log
	}
}

// NewAPI returns an API with the provided options applied.
func NewAPI(opts ...APIOption) *API {
	a := &API{log: zap.NewNop()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Respond writes v as the JSON response body with the given status code.
// A nil v writes only the status code.
func (a *API) Respond(w http.ResponseWriter, r *http.Request, code int, v any) {
	if v == nil {
		w.WriteHeader(code)
		return
	}

	b, err := json.Marshal(v)
	if err != nil {
		a.Err(w, r, &errors.Error{Code: errors.EInternal, Msg: "failed to encode response", Err: err})
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// Err writes err as a JSON error response, mapping its error code to an
// HTTP status code. Internal errors are logged with their full chain; the
// client only ever sees the sanitized message.
func (a *API) Err(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	code := errors.ErrorCode(err)
	if code == errors.EInternal {
		a.log.Error("api internal error",
			zap.String("path", r.URL.Path),
			zap.String("op", errors.ErrorOp(err)),
			zap.Error(err))
	}

	HandleHTTPError(w, err)
}

// DecodeJSON decodes the JSON value from rd into v, rejecting unknown
// fields. When v implements Validator, Validate is called after decoding.
func (a *API) DecodeJSON(rd io.Reader, v any) error {
	dec := json.NewDecoder(rd)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &errors.Error{Code: errors.EInvalid, Msg: "invalid json body", Err: err}
	}

	if vv, ok := v.(Validator); ok {
		if err := vv.Validate(); err != nil {
			if _, ok := err.(*errors.Error); ok {
				return err
			}
			return &errors.Error{Code: errors.EUnprocessableEntity, Err: err}
		}
	}

	return nil
}

// Validator is implemented by request bodies that can check themselves
// after decoding.
type Validator interface {
	Validate() error
}
