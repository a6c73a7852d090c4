package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dshills/amazonmart/internal/orders"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Level: orders.LevelWarning, Message: message})
}

// writeFailure maps a classified service error onto a status code and the
// single user-visible message.
func writeFailure(w http.ResponseWriter, err error) {
	kind, ok := orders.KindOf(err)
	if !ok {
		kind = orders.KindConnectivity
	}
	msg := orders.Describe(err)
	writeJSON(w, statusFor(kind), ErrorResponse{
		Error:   kind.String(),
		Level:   msg.Level,
		Message: msg.Text,
	})
}

func statusFor(kind orders.Kind) int {
	switch kind {
	case orders.KindValidation:
		return http.StatusUnprocessableEntity
	case orders.KindConstraint:
		return http.StatusConflict
	case orders.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// decodeJSON reads a single JSON object from the body. It writes the 400
// reply itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "Invalid JSON body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "Request body is required"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}
