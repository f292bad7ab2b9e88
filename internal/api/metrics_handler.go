package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/health"
)

// MetricsHandler exposes JSON endpoint-health summaries alongside the
// Prometheus /metrics surface (registered separately via
// promhttp.Handler in the router).
type MetricsHandler struct {
	health *health.Controller
	logger *zap.Logger
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(health *health.Controller, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{health: health, logger: logger}
}

// RegisterRoutes registers the JSON health-summary routes.
func (h *MetricsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/metrics/endpoint/{name}", h.GetEndpointHealth).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/metrics/endpoint", h.GetAllEndpointHealth).Methods("GET", "OPTIONS")
}

// GetEndpointHealth returns the last observed reachability for one endpoint.
func (h *MetricsHandler) GetEndpointHealth(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	status, err := h.health.GetHealth(name)
	if err != nil {
		http.Error(w, "endpoint not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// GetAllEndpointHealth returns the last observed reachability for every
// configured endpoint.
func (h *MetricsHandler) GetAllEndpointHealth(w http.ResponseWriter, r *http.Request) {
	all := h.health.GetAllHealth()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(all)
}
