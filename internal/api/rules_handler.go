package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/models"
	"github.com/shardkit/proxy/pkg/ruleset"
)

// RulesHandler exposes CRUD over the sharding rule set, the endpoint
// pool, and node groups, all backed by the etcd ruleset store.
type RulesHandler struct {
	store  ruleset.Store
	logger *zap.Logger
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(store ruleset.Store, logger *zap.Logger) *RulesHandler {
	return &RulesHandler{store: store, logger: logger}
}

func (h *RulesHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *RulesHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

// ListRules handles GET /api/v1/rules
func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(r.Context())
	if err != nil {
		h.logger.Error("failed to list rules", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list rules")
		return
	}
	h.writeJSON(w, http.StatusOK, rules)
}

// PutRule handles PUT /api/v1/rules/{table}
func (h *RulesHandler) PutRule(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	var rule models.RuleRecord
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if rule.Table == "" {
		rule.Table = table
	}
	if rule.Table != table {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "table in body does not match path")
		return
	}
	if rule.DatabaseStrategy == nil && rule.TableStrategy == nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "rule must set a database_strategy or table_strategy")
		return
	}

	if err := h.store.PutRule(r.Context(), rule); err != nil {
		h.logger.Error("failed to put rule", zap.String("table", table), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist rule")
		return
	}
	h.logger.Info("rule upserted", zap.String("table", table))
	h.writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/rules/{table}
func (h *RulesHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if err := h.store.DeleteRule(r.Context(), table); err != nil {
		h.logger.Error("failed to delete rule", zap.String("table", table), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete rule")
		return
	}
	h.logger.Info("rule deleted", zap.String("table", table))
	w.WriteHeader(http.StatusNoContent)
}

// ListEndpoints handles GET /api/v1/endpoints
func (h *RulesHandler) ListEndpoints(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.ListEndpoints(r.Context())
	if err != nil {
		h.logger.Error("failed to list endpoints", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list endpoints")
		return
	}
	h.writeJSON(w, http.StatusOK, endpoints)
}

// PutEndpoint handles PUT /api/v1/endpoints/{name}
func (h *RulesHandler) PutEndpoint(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var ep models.EndpointRecord
	if err := json.NewDecoder(r.Body).Decode(&ep); err != nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if ep.Name == "" {
		ep.Name = name
	}
	if ep.Name != name {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name in body does not match path")
		return
	}
	if ep.Addr == "" {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "addr is required")
		return
	}

	if err := h.store.PutEndpoint(r.Context(), ep); err != nil {
		h.logger.Error("failed to put endpoint", zap.String("name", name), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist endpoint")
		return
	}
	h.logger.Info("endpoint upserted", zap.String("name", name))
	h.writeJSON(w, http.StatusOK, ep)
}

// ListNodeGroups handles GET /api/v1/node-groups
func (h *RulesHandler) ListNodeGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.ListNodeGroups(r.Context())
	if err != nil {
		h.logger.Error("failed to list node groups", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list node groups")
		return
	}
	h.writeJSON(w, http.StatusOK, groups)
}

// PutNodeGroup handles PUT /api/v1/node-groups/{name}
func (h *RulesHandler) PutNodeGroup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var group models.NodeGroupRecord
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if group.Name == "" {
		group.Name = name
	}
	if group.Name != name {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name in body does not match path")
		return
	}
	if group.Primary == "" {
		h.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "primary is required")
		return
	}

	if err := h.store.PutNodeGroup(r.Context(), group); err != nil {
		h.logger.Error("failed to put node group", zap.String("name", name), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist node group")
		return
	}
	h.logger.Info("node group upserted", zap.String("name", name))
	h.writeJSON(w, http.StatusOK, group)
}

// GetSnapshot handles GET /api/v1/snapshot
func (h *RulesHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to build snapshot", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to build snapshot")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// SetupRulesRoutes registers the rules/endpoints/node-groups admin routes.
func SetupRulesRoutes(router *mux.Router, handler *RulesHandler) {
	router.HandleFunc("/api/v1/rules", handler.ListRules).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/v1/rules/{table}", handler.PutRule).Methods("PUT", "OPTIONS")
	router.HandleFunc("/api/v1/rules/{table}", handler.DeleteRule).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/api/v1/endpoints", handler.ListEndpoints).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/v1/endpoints/{name}", handler.PutEndpoint).Methods("PUT", "OPTIONS")
	router.HandleFunc("/api/v1/node-groups", handler.ListNodeGroups).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/v1/node-groups/{name}", handler.PutNodeGroup).Methods("PUT", "OPTIONS")
	router.HandleFunc("/api/v1/snapshot", handler.GetSnapshot).Methods("GET", "OPTIONS")
}
