package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/sharding"
)

func newTestRewriteRouter(engine *sharding.Engine) *mux.Router {
	ptr := &atomic.Pointer[sharding.Engine]{}
	ptr.Store(engine)

	router := mux.NewRouter()
	SetupRewriteRoutes(router, NewRewriteHandler(ptr, zap.NewNop()))
	return router
}

func testEngine() *sharding.Engine {
	rule := &sharding.Rule{
		Table:           "tshard",
		ActualDataNodes: []string{"ds0", "ds1"},
		DatabaseStrategy: &sharding.DatabaseStrategy{
			Column: "idx", Algorithm: sharding.Mod,
		},
	}
	topo := &sharding.Topology{
		Endpoints: map[string]*sharding.Endpoint{
			"ds0": {Name: "ds0", DB: "db0"},
			"ds1": {Name: "ds1", DB: "db1"},
		},
	}
	return sharding.NewEngine([]*sharding.Rule{rule}, topo)
}

func TestRewriteHandler_Rewrite(t *testing.T) {
	router := newTestRewriteRouter(testEngine())

	body, _ := json.Marshal(RewriteRequest{SQL: "SELECT idx from `db0`.tshard where idx = 3"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewrite", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", rec.Code, rec.Body.String())
	}

	var resp RewriteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(resp.Targets))
	}
	if resp.Targets[0].DataSourceKind != "endpoint" || resp.Targets[0].DataSource != "ds1" {
		t.Errorf("expected endpoint ds1, got %+v", resp.Targets[0])
	}
}

func TestRewriteHandler_MissingSQL(t *testing.T) {
	router := newTestRewriteRouter(testEngine())

	body, _ := json.Marshal(RewriteRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewrite", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestRewriteHandler_EngineNotLoaded(t *testing.T) {
	ptr := &atomic.Pointer[sharding.Engine]{}
	router := mux.NewRouter()
	SetupRewriteRoutes(router, NewRewriteHandler(ptr, zap.NewNop()))

	body, _ := json.Marshal(RewriteRequest{SQL: "SELECT 1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rewrite", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
}
