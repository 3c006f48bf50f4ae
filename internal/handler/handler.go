// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/postkeeper/postkeeper/internal/handler/dto"
)

// Version is reported by the root and liveness endpoints.
const Version = "0.1.0"

// ServiceInfo is the body served at the root path.
type ServiceInfo struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Resource string `json:"resource"`
}

// Handler serves the endpoints that sit outside /Posts.
type Handler struct {
	info ServiceInfo
}

// New creates a Handler describing this service.
func New() *Handler {
	return &Handler{info: ServiceInfo{
		Service:  "postkeeper",
		Version:  Version,
		Resource: "/Posts",
	}}
}

// Hello identifies the service.
// GET /
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.info)
}

// NotFound answers unknown routes with the API's error shape.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Resource not found", Code: "NOT_FOUND"})
}

// MethodNotAllowed answers a known route hit with the wrong verb.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}
