package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

type errorBody struct {
	Code    bookstore.Code `json:"code"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps a code class to an HTTP status.
func statusOf(code bookstore.Code) int {
	switch code.Class() {
	case bookstore.CodeNotFound:
		return http.StatusNotFound
	case bookstore.CodeUnauthorized:
		return http.StatusForbidden
	case bookstore.CodeInvalidInput:
		return http.StatusBadRequest
	case bookstore.CodeConflict:
		return http.StatusConflict
	case bookstore.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case bookstore.CodeKycRequired:
		return http.StatusForbidden
	case bookstore.CodeRecoveryUnavailable:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorStatus(w, statusOf(bookstore.CodeOf(err)), err)
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: bookstore.CodeOf(err), Message: bookstore.MessageOf(err)}})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return bookstore.Wrap(err, bookstore.CodeInvalidInput, "invalid json")
	}
	return nil
}
