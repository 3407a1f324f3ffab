package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// errorBody is the wire shape of every error this API emits. RedirectTo
// carries the guard's navigation target for non-browser clients.
type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
// Encoding happens into a buffer first so an encode failure can still
// produce a clean 500 instead of a half-written body.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Client disconnects surface here; nothing to recover.
		return
	}
}

// ErrorParams describes one error response. Err is optional for
// responses whose meaning is fully carried by ErrCode (guard redirects,
// retryable defers).
type ErrorParams struct {
	Code       int
	ErrCode    string
	Err        error
	RedirectTo string
}

// WriteError writes the standard error payload.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := errorBody{Error: p.ErrCode, RedirectTo: p.RedirectTo}
	if p.Err != nil {
		body.Message = p.Err.Error()
	}
	WriteJSON(w, p.Code, body)
}
