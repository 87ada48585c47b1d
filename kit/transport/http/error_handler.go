package http

import (
	"encoding/json"
	"net/http"

	"github.com/calyxweb/calyx/kit/errors"
)

// ErrorCodeHeader carries the calyx error code of an error response so
// automated clients do not need to parse the body.
const ErrorCodeHeader = "X-Calyx-Error-Code"

// HandleHTTPError encodes err with the appropriate status code and format,
// and sets the ErrorCodeHeader header on the response.
func HandleHTTPError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	code := errors.ErrorCode(err)
	httpCode, ok := statusCode[code]
	if !ok {
		httpCode = http.StatusBadRequest
	}
	w.Header().Set(ErrorCodeHeader, code)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpCode)

	e := struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    code,
		Message: errors.ErrorMessage(err),
	}
	b, _ := json.Marshal(e)
	_, _ = w.Write(b)
}

// statusCode converts a calyx error code to an HTTP status code.
var statusCode = map[string]int{
	errors.EInternal:            http.StatusInternalServerError,
	errors.ENotImplemented:      http.StatusNotImplemented,
	errors.ENotFound:            http.StatusNotFound,
	errors.EConflict:            http.StatusUnprocessableEntity,
	errors.EInvalid:             http.StatusBadRequest,
	errors.EUnprocessableEntity: http.StatusUnprocessableEntity,
	errors.EEmptyValue:          http.StatusBadRequest,
	errors.EUnavailable:         http.StatusServiceUnavailable,
	errors.EForbidden:           http.StatusForbidden,
	errors.EMethodNotAllowed:    http.StatusMethodNotAllowed,
	errors.ETooLarge:            http.StatusRequestEntityTooLarge,
}
