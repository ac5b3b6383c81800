package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// Device carries the failed probe on bridge_unavailable responses.
	Device any `json:"device,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeInternal     = "internal_error"
	ErrCodeUnavailable  = "service_unavailable"

	// ErrCodeBridgeUnavailable marks a failed PipeWire query.
	ErrCodeBridgeUnavailable = "bridge_unavailable"
)

// codeStatus maps each code to its HTTP status.
var codeStatus = map[string]int{
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeUnavailable:       http.StatusServiceUnavailable,
	ErrCodeBridgeUnavailable: http.StatusBadGateway,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// fail writes an Error for code. Unknown codes are sent as 500.
func fail(w http.ResponseWriter, code, message string) {
	failWith(w, Error{Code: code, Message: message})
}

func failWith(w http.ResponseWriter, e Error) {
	status, ok := codeStatus[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	e.Status = status
	writeJSON(w, status, e)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	fail(w, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	fail(w, ErrCodeNotFound, message)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	fail(w, ErrCodeUnauthorized, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	fail(w, ErrCodeInternal, message)
}
