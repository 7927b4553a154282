package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-occupancy/internal/tracker"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnauthorized     = "unauthorised"
	ErrCodeForbidden        = "forbidden"
	ErrCodeInternal         = "internal_error"
	ErrCodeValidation       = "validation_error"
)

// statusCodes gives the code used when a handler writes a bare status.
var statusCodes = map[int]string{
	http.StatusBadRequest:          ErrCodeBadRequest,
	http.StatusUnauthorized:        ErrCodeUnauthorized,
	http.StatusForbidden:           ErrCodeForbidden,
	http.StatusNotFound:            ErrCodeNotFound,
	http.StatusMethodNotAllowed:    ErrCodeMethodNotAllowed,
	http.StatusInternalServerError: ErrCodeInternal,
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error. An empty code is derived from status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	if code == "" {
		code = statusCodes[status]
	}
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "", message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "", message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "", message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "", message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, "", message)
}

// trackerErrorStatus maps a tracker failure to a status and code.
// Anything unrecognised is an internal error.
func trackerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tracker.ErrUnknownLocation):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, tracker.ErrInvalidCommand):
		return http.StatusBadRequest, ErrCodeValidation
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// handleNotFound and handleMethodNotAllowed keep router misses in the
// same JSON shape as handler errors.
func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeNotFound(w, "no such endpoint")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "", r.Method+" is not allowed here")
}
