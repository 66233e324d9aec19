package apperr

import (
	"net/http"
)

// Code classifies an error for callers and for HTTP mapping.
type Code int

const (
	Unknown Code = iota
	Validation
	Unauthorized
	NotFound
	Conflict
	Exhausted
	Downstream
	Internal
)

func (c Code) String() string {
	switch c {
	case Validation:
		return "validation"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Exhausted:
		return "exhausted"
	case Downstream:
		return "downstream"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Exhausted:
		return http.StatusServiceUnavailable
	case Downstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
