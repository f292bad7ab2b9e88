package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/health"
	"github.com/shardkit/proxy/pkg/sharding"
)

func newTestMetricsRouter() *mux.Router {
	topology := &sharding.Topology{
		Endpoints:  map[string]*sharding.Endpoint{},
		NodeGroups: map[string]*sharding.NodeGroup{},
	}
	ctl := health.NewController(topology, zap.NewNop(), time.Minute)
	handler := NewMetricsHandler(ctl, zap.NewNop())

	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestMetricsHandler_GetEndpointHealth_NotFound(t *testing.T) {
	router := newTestMetricsRouter()

	req := httptest.NewRequest("GET", "/api/v1/metrics/endpoint/ds0", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != 404 {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMetricsHandler_GetAllEndpointHealth_Empty(t *testing.T) {
	router := newTestMetricsRouter()

	req := httptest.NewRequest("GET", "/api/v1/metrics/endpoint", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty health map, got %v", body)
	}
}
