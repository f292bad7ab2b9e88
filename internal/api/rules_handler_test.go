package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/models"
)

// fakeStore is an in-memory ruleset.Store double for handler tests.
type fakeStore struct {
	rules      map[string]models.RuleRecord
	endpoints  map[string]models.EndpointRecord
	nodeGroups map[string]models.NodeGroupRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rules:      make(map[string]models.RuleRecord),
		endpoints:  make(map[string]models.EndpointRecord),
		nodeGroups: make(map[string]models.NodeGroupRecord),
	}
}

func (f *fakeStore) ListRules(ctx context.Context) ([]models.RuleRecord, error) {
	out := make([]models.RuleRecord, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) PutRule(ctx context.Context, r models.RuleRecord) error {
	f.rules[r.Table] = r
	return nil
}

func (f *fakeStore) DeleteRule(ctx context.Context, table string) error {
	delete(f.rules, table)
	return nil
}

func (f *fakeStore) ListEndpoints(ctx context.Context) ([]models.EndpointRecord, error) {
	out := make([]models.EndpointRecord, 0, len(f.endpoints))
	for _, e := range f.endpoints {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) PutEndpoint(ctx context.Context, e models.EndpointRecord) error {
	f.endpoints[e.Name] = e
	return nil
}

func (f *fakeStore) ListNodeGroups(ctx context.Context) ([]models.NodeGroupRecord, error) {
	out := make([]models.NodeGroupRecord, 0, len(f.nodeGroups))
	for _, g := range f.nodeGroups {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeStore) PutNodeGroup(ctx context.Context, g models.NodeGroupRecord) error {
	f.nodeGroups[g.Name] = g
	return nil
}

func (f *fakeStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	rules, _ := f.ListRules(ctx)
	endpoints, _ := f.ListEndpoints(ctx)
	groups, _ := f.ListNodeGroups(ctx)
	return models.Snapshot{Rules: rules, Endpoints: endpoints, NodeGroups: groups}, nil
}

func (f *fakeStore) Watch(ctx context.Context) (<-chan models.Snapshot, error) {
	ch := make(chan models.Snapshot)
	close(ch)
	return ch, nil
}

func newTestRouter(store *fakeStore) *mux.Router {
	router := mux.NewRouter()
	SetupRulesRoutes(router, NewRulesHandler(store, zap.NewNop()))
	return router
}

func TestRulesHandler_PutAndListRules(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rule := models.RuleRecord{
		Table:           "orders",
		ActualDataNodes: []string{"ds0", "ds1"},
		TableStrategy:   &models.TableStrategyRecord{Column: "order_id", Algorithm: "crc32_mod", ShardingCount: 4},
	}
	body, _ := json.Marshal(rule)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/rules/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PutRule: got status %d, body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ListRules: got status %d", rec.Code)
	}

	var rules []models.RuleRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &rules); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(rules) != 1 || rules[0].Table != "orders" {
		t.Fatalf("expected one rule for orders, got %+v", rules)
	}
}

func TestRulesHandler_PutRuleRejectsMismatchedTable(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rule := models.RuleRecord{Table: "other", TableStrategy: &models.TableStrategyRecord{Column: "id", Algorithm: "crc32_mod", ShardingCount: 2}}
	body, _ := json.Marshal(rule)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/rules/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestRulesHandler_DeleteRule(t *testing.T) {
	store := newFakeStore()
	store.rules["orders"] = models.RuleRecord{Table: "orders"}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/rules/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", rec.Code)
	}
	if _, ok := store.rules["orders"]; ok {
		t.Fatalf("expected rule to be deleted")
	}
}

func TestRulesHandler_GetSnapshot(t *testing.T) {
	store := newFakeStore()
	store.endpoints["ds0"] = models.EndpointRecord{Name: "ds0", Addr: "127.0.0.1:3306"}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if len(snap.Endpoints) != 1 || snap.Endpoints[0].Name != "ds0" {
		t.Fatalf("expected one endpoint ds0, got %+v", snap.Endpoints)
	}
}
