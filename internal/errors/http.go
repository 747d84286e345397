package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPErrorResponse is the JSON error envelope returned by every API
// error path:
//
//	{"error": {"code": "...", "message": "...", "request_id": "..."}}
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// HTTPErrorDetail carries the machine-readable error code, a human
// message, and optional request correlation and context.
type HTTPErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPError is an error with an explicit HTTP status and code.
// Handlers return these for client-caused failures.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError creates an HTTPError with the given status, code, and message.
func NewHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// NewValidationError reports a 400 with code VALIDATION_ERROR.
func NewValidationError(message string, details map[string]any) *HTTPError {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

// NewNotFoundError reports a 404 with code NOT_FOUND.
func NewNotFoundError(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, "NOT_FOUND", message)
}

// RespondWithError writes err to w as an HTTPErrorResponse.
//
// *HTTPError values map to their declared status. Pipeline errors map to
// 502 (upstream dependency failed). Everything else is a 500 with code
// INTERNAL_ERROR and the raw message withheld.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	detail := HTTPErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	}
	status := http.StatusInternalServerError

	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		status = httpErr.Status
		detail.Code = httpErr.Code
		detail.Message = httpErr.Message
		detail.Details = httpErr.Details
	case IsGeneration(err), IsSearch(err):
		status = http.StatusBadGateway
		detail.Code = "UPSTREAM_ERROR"
		detail.Message = err.Error()
	}

	if r != nil {
		detail.RequestID = r.Header.Get("X-Request-ID")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: detail})
}
