// Package httputil centralizes JSON response writing so every module emits the same
// error envelope.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "adminconsole/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for every error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors never expose their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, dErrors.HTTPStatus(code), resp)
}

// WriteErrorDetail is like WriteError but always includes the description, including
// for internal errors. Use only where the failure is operational rather than caused by
// the caller and the message carries no secrets.
func WriteErrorDetail(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.HTTPStatus(code), ErrorResponse{
		Error:            string(code),
		ErrorDescription: err.Error(),
	})
}
