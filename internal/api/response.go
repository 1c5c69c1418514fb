package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"stocktrack/pkg/stocktrack"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeErrorResponse maps err to a status code and writes an ErrorResponse.
// Errors without a code are treated as internal.
func writeErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	var se *stocktrack.Error
	if errors.As(err, &se) {
		status = mapErrorCodeToHTTPStatus(se.Code)
		resp.ErrorCode = string(se.Code)
	}
	if r != nil {
		resp.RequestID = middleware.GetReqID(r.Context())
	}
	if lw, ok := w.(interface{ SetErrorMessage(string) }); ok {
		lw.SetErrorMessage(resp.Error)
	}
	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeErrorResponse(w, r, stocktrack.NewError(stocktrack.ErrCodeInvalidInput, message))
}

func mapErrorCodeToHTTPStatus(code stocktrack.ErrorCode) int {
	switch code {
	case stocktrack.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case stocktrack.ErrCodeNotFound:
		return http.StatusNotFound
	case stocktrack.ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
