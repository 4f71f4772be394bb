// Package httputil centralizes JSON responses and error translation so every
// handler renders the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	"companyhub/pkg/apperrors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the standard error envelope. Data and Metadata are populated
// only when a failing request still produced partial results.
type ErrorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Data     any    `json:"data,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

// WriteError translates a coded error into its HTTP response. Internal
// errors hide their message.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	body := ErrorBody{Error: string(code)}
	if code != apperrors.CodeInternal {
		if coded, ok := apperrors.AsError(err); ok {
			body.Message = coded.Message
		} else {
			body.Message = err.Error()
		}
	}
	WriteJSON(w, apperrors.ToHTTPStatus(code), body)
}
