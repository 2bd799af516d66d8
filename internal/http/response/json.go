package response

import (
	"encoding/json"
	"net/http"

	"github.com/diagnosis/natours/pkg/logger"
)

// Envelope is the success body: {"status":"success", ...}.
type Envelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Results *int   `json:"results,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// Success writes {"status":"success","data":data}.
func Success(w http.ResponseWriter, statusCode int, data any) {
	WriteJSON(w, statusCode, Envelope{Status: "success", Data: data})
}

// List writes a success body with a results count.
func List(w http.ResponseWriter, data any, n int) {
	WriteJSON(w, http.StatusOK, Envelope{Status: "success", Results: &n, Data: data})
}

func Message(w http.ResponseWriter, statusCode int, msg string) {
	WriteJSON(w, statusCode, Envelope{Status: "success", Message: msg})
}

// NoContent writes an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
