// Package shared holds the JSON response helpers every handler uses, so the
// error envelope stays identical across domains.
package shared

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	dErrors "ssoportal/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// ErrorBody is the wire envelope for failed requests.
type ErrorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a coded domain error into the JSON error envelope.
// Uncoded errors collapse into a 500 with a generic message.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, dErrors.ToHTTPStatus(err), ErrorBody{
		Error:            string(dErrors.CodeOf(err)),
		ErrorDescription: dErrors.MessageOf(err),
	})
}

// Decode parses a JSON request body into dst, returning a coded BadRequest on
// malformed input.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}

// ParseID parses a UUID path parameter into a coded BadRequest on failure.
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}
