// Package shared holds the response helpers every handler package uses, so
// the wire shape of errors stays uniform across features.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "prato/pkg/domain-errors"
)

// ErrorBody is the uniform error envelope. Fields carries per-field messages
// for validation failures and is omitted otherwise.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are swallowed;
// by that point the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto the HTTP envelope. Non-domain errors
// become opaque 500s so internals never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var dErr *dErrors.Error
	if !errors.As(err, &dErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorBody{
			Error:   string(dErrors.CodeInternal),
			Message: "internal error",
		})
		return
	}

	WriteJSON(w, dErrors.ToHTTPStatus(dErr.Code), ErrorBody{
		Error:   string(dErr.Code),
		Message: dErr.Message,
		Fields:  dErr.Fields,
	})
}
