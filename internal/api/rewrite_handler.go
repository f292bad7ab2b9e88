package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/internal/errors"
	"github.com/shardkit/proxy/pkg/observability"
	"github.com/shardkit/proxy/pkg/sharding"
	"github.com/shardkit/proxy/pkg/sqlast"
	"github.com/shardkit/proxy/pkg/sqlparse"
)

// RewriteRequest is a single SQL statement to rewrite against the
// current rule set.
type RewriteRequest struct {
	SQL       string `json:"sql"`
	DefaultDB string `json:"default_db"`
}

// RewriteTarget is one rewritten statement bound to a data source.
type RewriteTarget struct {
	SQL            string `json:"sql"`
	DataSourceKind string `json:"data_source_kind"`
	DataSource     string `json:"data_source"`
	ShardingColumn string `json:"sharding_column,omitempty"`
}

// RewriteResponse is the set of targets an input statement fans out to.
type RewriteResponse struct {
	Targets []RewriteTarget `json:"targets"`
}

// RewriteHandler parses and rewrites ad hoc SQL against the engine
// built from the current rule set snapshot. The engine is swapped
// atomically whenever the ruleset store's watch loop delivers a new
// snapshot, so a request never blocks on a reload in progress.
type RewriteHandler struct {
	engine *atomic.Pointer[sharding.Engine]
	logger *zap.Logger
}

// NewRewriteHandler creates a new rewrite handler over a hot-swappable
// engine pointer.
func NewRewriteHandler(engine *atomic.Pointer[sharding.Engine], logger *zap.Logger) *RewriteHandler {
	return &RewriteHandler{engine: engine, logger: logger}
}

func (h *RewriteHandler) writeError(w http.ResponseWriter, err *errors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": err.Code, "message": err.Message},
	})
}

func dataSourceKindString(k sharding.DataSourceKind) string {
	switch k {
	case sharding.DataSourceEndpoint:
		return "endpoint"
	case sharding.DataSourceNodeGroup:
		return "node_group"
	default:
		return "none"
	}
}

// primaryTable returns the first table referenced in the statement's
// top-level scope, used only as a metrics label; statements touching
// no table (or only subqueries) label as "unknown".
func primaryTable(stmt *sqlast.Statement) string {
	scope, ok := stmt.Scopes[1]
	if !ok || len(scope.Tables) == 0 {
		return "unknown"
	}
	return scope.Tables[0].StrippedName()
}

func dataSourceName(ds sharding.DataSource) string {
	switch ds.Kind {
	case sharding.DataSourceEndpoint:
		return ds.Endpoint.Name
	case sharding.DataSourceNodeGroup:
		return ds.NodeGroupName
	default:
		return ""
	}
}

// Rewrite handles POST /api/v1/rewrite: parses the submitted statement
// and rewrites it per the currently loaded rules.
func (h *RewriteHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(err, http.StatusBadRequest, "invalid request body"))
		return
	}
	if req.SQL == "" {
		h.writeError(w, errors.New(http.StatusBadRequest, "sql is required"))
		return
	}

	engine := h.engine.Load()
	if engine == nil {
		h.writeError(w, errors.New(http.StatusServiceUnavailable, "rule set not yet loaded"))
		return
	}

	stmt, err := sqlparse.Parse(req.SQL)
	if err != nil {
		h.writeError(w, errors.Wrap(err, http.StatusBadRequest, "failed to parse statement"))
		return
	}

	table := primaryTable(stmt)
	start := time.Now()
	outputs, err := engine.Rewrite(req.SQL, stmt, req.DefaultDB)
	observability.RewriteDuration.WithLabelValues(table).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RewriteTotal.WithLabelValues(table, "error").Inc()
		h.logger.Error("rewrite failed", zap.Error(err))
		h.writeError(w, errors.Wrap(err, http.StatusUnprocessableEntity, "rewrite failed"))
		return
	}
	observability.RewriteTotal.WithLabelValues(table, "ok").Inc()
	observability.RewriteTargetsPerStatement.WithLabelValues(table).Observe(float64(len(outputs)))

	resp := RewriteResponse{Targets: make([]RewriteTarget, 0, len(outputs))}
	for _, out := range outputs {
		resp.Targets = append(resp.Targets, RewriteTarget{
			SQL:            out.TargetSQL,
			DataSourceKind: dataSourceKindString(out.DataSource.Kind),
			DataSource:     dataSourceName(out.DataSource),
			ShardingColumn: out.ShardingColumn,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// SetupRewriteRoutes registers the ad hoc rewrite route plus the
// lightweight liveness endpoints the admin API exposes at / and
// /health.
func SetupRewriteRoutes(router *mux.Router, handler *RewriteHandler) {
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"service": "shardkit-proxy",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/rewrite",
				"GET /api/v1/rules",
				"GET /api/v1/metrics/endpoint",
				"GET /health",
			},
		})
	}).Methods("GET", "OPTIONS")

	router.HandleFunc("/api/v1/rewrite", handler.Rewrite).Methods("POST", "OPTIONS")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")
}
