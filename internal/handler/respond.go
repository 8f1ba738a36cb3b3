package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/opsdeck/platform/internal/domain"
)

// ErrorEnvelope is the fixed JSON shape of every non-success response.
type ErrorEnvelope struct {
	Success bool         `json:"success"`
	Error   *ErrorObject `json:"error"`
}

// ErrorObject carries the machine-readable error inside the envelope.
type ErrorObject struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Status     int                    `json:"status"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RetryAfter int                    `json:"retryAfter,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes the error envelope for a domain.AppError. Unclassified
// errors surface as a generic 500; callers wanting taxonomy mapping run
// domain.Classify first.
func RespondError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*domain.AppError)
	if !ok {
		appErr = domain.ErrInternal("internal server error", err)
	}

	obj := &ErrorObject{
		Code:    appErr.Code,
		Message: appErr.Message,
		Status:  appErr.Status,
		Details: appErr.Details,
	}
	// retryAfter is promoted out of details for 429 responses.
	if appErr.Code == domain.CodeRateLimited {
		if ra, ok := appErr.Details["retryAfter"].(int); ok {
			obj.RetryAfter = ra
			obj.Details = nil
		}
	}

	RespondJSON(w, appErr.Status, ErrorEnvelope{Success: false, Error: obj})
}

// DecodeJSON reads and decodes a JSON request body into dst, capped at 1 MiB.
func DecodeJSON(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, 1<<20)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// A second document or trailing garbage is an error.
	if dec.More() {
		return domain.ErrBadRequest("unexpected trailing data in request body")
	}
	return nil
}
