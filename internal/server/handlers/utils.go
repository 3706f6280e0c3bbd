package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diwenne/smashspeed-rn/internal/bridge"
	"github.com/diwenne/smashspeed-rn/internal/trimmer"
)

// RespondJSON sends a JSON response with the given status code and data
func RespondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// ErrorBody is the JSON shape of a failed call.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondError sends a coded error.
func RespondError(w http.ResponseWriter, statusCode int, code, message string) {
	RespondJSON(w, statusCode, ErrorBody{Code: code, Message: message})
}

// statusForCode maps a failure code to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case trimmer.CodeFileNotFound, bridge.CodeUnknownMethod:
		return http.StatusNotFound
	case trimmer.CodeTrimFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
