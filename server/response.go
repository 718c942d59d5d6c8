package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// writeError reports message as {"error": ...}, echoing the request id so a
// failure can be matched with its log line.
func writeError(w http.ResponseWriter, status int, message string) {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(status)
	}
	body := map[string]string{"error": message}
	if id := w.Header().Get(requestIDHeader); id != "" {
		body["requestId"] = id
	}
	writeJSON(w, status, body)
}
