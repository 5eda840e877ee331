package api

import (
	"net/http"

	"github.com/agora-community/agora/internal/apperr"
)

// Application error codes, below the JSON-RPC reserved range
const (
	ErrValidation  = -32001
	ErrPermission  = -32003
	ErrNotFound    = -32004
	ErrRateLimited = -32029
	ErrServer      = -32000
)

// errorData is the structured part of an application error response
type errorData struct {
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// classify maps err to an HTTP status, a JSON-RPC error code and the data
// returned to the caller. Internal details are never exposed.
func classify(err error) (int, int, *errorData) {
	appErr, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrServer, &errorData{Code: "internal"}
	}

	data := &errorData{Code: appErr.Code, Message: appErr.Message}
	switch appErr.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, ErrValidation, data
	case apperr.KindPermission:
		return http.StatusForbidden, ErrPermission, data
	case apperr.KindNotFound:
		return http.StatusNotFound, ErrNotFound, data
	case apperr.KindRateLimited:
		data.RetryAfter = appErr.RetryAfter
		return http.StatusTooManyRequests, ErrRateLimited, data
	default:
		return http.StatusInternalServerError, ErrServer, &errorData{Code: appErr.Code}
	}
}
