package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error carries a code and a caller-safe message alongside the underlying
// cause. The cause is for logs; only Code and Msg reach clients.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

// New creates a coded error wrapping an optional underlying cause.
func New(code Code, msg string, underlying error) *Error {
	return &Error{Code: code, Msg: msg, Err: underlying}
}

// Newf creates a coded error with a formatted message and no cause.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code from err, or Unknown for nil / uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return Unknown
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Unknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

type httpError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes err as a JSON error response. Uncoded errors are masked
// as internal so store details never leak to clients.
func WriteJSON(w http.ResponseWriter, err error) {
	ae := &Error{Code: Internal, Msg: "internal error"}
	var coded *Error
	if errors.As(err, &coded) {
		ae = coded
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.Code.HTTPStatus())
	json.NewEncoder(w).Encode(httpError{Code: ae.Code.String(), Message: ae.Msg})
}
