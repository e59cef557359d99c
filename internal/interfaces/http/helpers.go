// Package http holds the inbound HTTP handlers: the webhook endpoint
// and the small operational API (sync trigger, connect token,
// credential and device registration).
package http

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps inbound request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}
