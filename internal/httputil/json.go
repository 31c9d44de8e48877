package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the shape of error payloads.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// ErrorWithSuggestions writes a JSON error response with actionable
// suggestions for the user.
func ErrorWithSuggestions(w http.ResponseWriter, status int, message string, suggestions []string) {
	JSON(w, status, ErrorResponse{Error: message, Suggestions: suggestions})
}
