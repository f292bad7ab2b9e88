// Package ruleset is the etcd-backed store for sharding rules,
// endpoints and node groups: the durable source the admin API writes
// to and cmd/proxy's periodic resync and watch loop read from to keep
// the in-process sharding.Engine current.
package ruleset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/models"
	"github.com/shardkit/proxy/pkg/observability"
	"github.com/shardkit/proxy/pkg/sharding"
)

// Store is the ruleset persistence contract the admin API and
// cmd/proxy depend on.
type Store interface {
	ListRules(ctx context.Context) ([]models.RuleRecord, error)
	PutRule(ctx context.Context, r models.RuleRecord) error
	DeleteRule(ctx context.Context, table string) error
	ListEndpoints(ctx context.Context) ([]models.EndpointRecord, error)
	PutEndpoint(ctx context.Context, e models.EndpointRecord) error
	ListNodeGroups(ctx context.Context) ([]models.NodeGroupRecord, error)
	PutNodeGroup(ctx context.Context, g models.NodeGroupRecord) error
	Snapshot(ctx context.Context) (models.Snapshot, error)
	Watch(ctx context.Context) (<-chan models.Snapshot, error)
}

// EtcdStore implements Store against a live etcd cluster, caching the
// full ruleset in memory and rebuilding the cache on every watched
// change, mirroring the teacher's load-then-watch catalog shape.
type EtcdStore struct {
	client *clientv3.Client
	logger *zap.Logger
	prefix string

	mu         sync.RWMutex
	rules      map[string]models.RuleRecord
	endpoints  map[string]models.EndpointRecord
	nodeGroups map[string]models.NodeGroupRecord
	version    int64
}

// Config configures the etcd connection and key prefix.
type Config struct {
	Endpoints []string
	Username  string
	Password  string
	Prefix    string
	Timeout   time.Duration
}

// New connects to etcd and loads the current ruleset into its cache.
func New(cfg Config, logger *zap.Logger) (*EtcdStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/shardkit/rules/"
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to etcd: %w", err)
	}

	s := &EtcdStore{
		client:     client,
		logger:     logger,
		prefix:     cfg.Prefix,
		rules:      make(map[string]models.RuleRecord),
		endpoints:  make(map[string]models.EndpointRecord),
		nodeGroups: make(map[string]models.NodeGroupRecord),
	}
	if err := s.load(context.Background(), "startup"); err != nil {
		logger.Warn("failed to load initial ruleset", zap.Error(err))
	}
	return s, nil
}

func (s *EtcdStore) ruleKey(table string) string      { return s.prefix + "rules/" + table }
func (s *EtcdStore) endpointKey(name string) string   { return s.prefix + "endpoints/" + name }
func (s *EtcdStore) nodeGroupKey(name string) string  { return s.prefix + "nodegroups/" + name }

// ListRules returns every rule currently cached.
func (s *EtcdStore) ListRules(ctx context.Context) ([]models.RuleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RuleRecord, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out, nil
}

// PutRule writes a rule to etcd and updates the cache.
func (s *EtcdStore) PutRule(ctx context.Context, r models.RuleRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal rule: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.client.Put(cctx, s.ruleKey(r.Table), string(data)); err != nil {
		return fmt.Errorf("put rule %s: %w", r.Table, err)
	}

	s.mu.Lock()
	s.rules[r.Table] = r
	s.version++
	s.mu.Unlock()

	s.logger.Info("rule written", zap.String("table", r.Table))
	return nil
}

// DeleteRule removes a rule from etcd and the cache.
func (s *EtcdStore) DeleteRule(ctx context.Context, table string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.client.Delete(cctx, s.ruleKey(table)); err != nil {
		return fmt.Errorf("delete rule %s: %w", table, err)
	}

	s.mu.Lock()
	delete(s.rules, table)
	s.version++
	s.mu.Unlock()

	s.logger.Info("rule deleted", zap.String("table", table))
	return nil
}

// ListEndpoints returns every endpoint currently cached.
func (s *EtcdStore) ListEndpoints(ctx context.Context) ([]models.EndpointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.EndpointRecord, 0, len(s.endpoints))
	for _, e := range s.endpoints {
		out = append(out, e)
	}
	return out, nil
}

// PutEndpoint writes an endpoint to etcd and updates the cache.
func (s *EtcdStore) PutEndpoint(ctx context.Context, e models.EndpointRecord) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal endpoint: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.client.Put(cctx, s.endpointKey(e.Name), string(data)); err != nil {
		return fmt.Errorf("put endpoint %s: %w", e.Name, err)
	}

	s.mu.Lock()
	s.endpoints[e.Name] = e
	s.version++
	s.mu.Unlock()
	return nil
}

// ListNodeGroups returns every node group currently cached.
func (s *EtcdStore) ListNodeGroups(ctx context.Context) ([]models.NodeGroupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.NodeGroupRecord, 0, len(s.nodeGroups))
	for _, g := range s.nodeGroups {
		out = append(out, g)
	}
	return out, nil
}

// PutNodeGroup writes a node group to etcd and updates the cache.
func (s *EtcdStore) PutNodeGroup(ctx context.Context, g models.NodeGroupRecord) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal node group: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.client.Put(cctx, s.nodeGroupKey(g.Name), string(data)); err != nil {
		return fmt.Errorf("put node group %s: %w", g.Name, err)
	}

	s.mu.Lock()
	s.nodeGroups[g.Name] = g
	s.version++
	s.mu.Unlock()
	return nil
}

// Snapshot returns the full cached ruleset, tagged with its version.
func (s *EtcdStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := models.Snapshot{Version: s.version}
	for _, r := range s.rules {
		snap.Rules = append(snap.Rules, r)
	}
	for _, e := range s.endpoints {
		snap.Endpoints = append(snap.Endpoints, e)
	}
	for _, g := range s.nodeGroups {
		snap.NodeGroups = append(snap.NodeGroups, g)
	}
	return snap, nil
}

// Watch streams a fresh Snapshot every time any key under the prefix
// changes. The returned channel is closed when ctx is canceled.
func (s *EtcdStore) Watch(ctx context.Context) (<-chan models.Snapshot, error) {
	out := make(chan models.Snapshot, 10)

	go func() {
		defer close(out)
		watchChan := s.client.Watch(ctx, s.prefix, clientv3.WithPrefix())
		for resp := range watchChan {
			if resp.Canceled {
				return
			}
			if err := s.load(ctx, "watch"); err != nil {
				s.logger.Error("failed to reload ruleset", zap.Error(err))
				continue
			}
			snap, _ := s.Snapshot(ctx)
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// load replaces the in-memory cache with a full read of etcd.
func (s *EtcdStore) load(ctx context.Context, trigger string) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := s.client.Get(cctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("load ruleset from etcd: %w", err)
	}

	rules := make(map[string]models.RuleRecord)
	endpoints := make(map[string]models.EndpointRecord)
	nodeGroups := make(map[string]models.NodeGroupRecord)

	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		switch {
		case hasPrefix(key, s.prefix+"rules/"):
			var r models.RuleRecord
			if err := json.Unmarshal(kv.Value, &r); err != nil {
				s.logger.Warn("failed to unmarshal rule", zap.String("key", key), zap.Error(err))
				continue
			}
			rules[r.Table] = r
		case hasPrefix(key, s.prefix+"endpoints/"):
			var e models.EndpointRecord
			if err := json.Unmarshal(kv.Value, &e); err != nil {
				s.logger.Warn("failed to unmarshal endpoint", zap.String("key", key), zap.Error(err))
				continue
			}
			endpoints[e.Name] = e
		case hasPrefix(key, s.prefix+"nodegroups/"):
			var g models.NodeGroupRecord
			if err := json.Unmarshal(kv.Value, &g); err != nil {
				s.logger.Warn("failed to unmarshal node group", zap.String("key", key), zap.Error(err))
				continue
			}
			nodeGroups[g.Name] = g
		}
	}

	s.mu.Lock()
	s.rules = rules
	s.endpoints = endpoints
	s.nodeGroups = nodeGroups
	s.version = resp.Header.Revision
	s.mu.Unlock()

	observability.RulesetVersion.Set(float64(resp.Header.Revision))
	observability.RulesetReloadsTotal.WithLabelValues(trigger).Inc()
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// ToEngineInputs converts a Snapshot into the Rule list and Topology a
// sharding.Engine needs, the bridge cmd/proxy's resync loop uses after
// every Watch tick.
func ToEngineInputs(snap models.Snapshot, readWriteSplit bool) ([]*sharding.Rule, *sharding.Topology) {
	rules := make([]*sharding.Rule, 0, len(snap.Rules))
	for _, r := range snap.Rules {
		rules = append(rules, r.ToRule())
	}

	endpoints := make(map[string]*sharding.Endpoint, len(snap.Endpoints))
	for _, e := range snap.Endpoints {
		endpoints[e.Name] = e.ToEndpoint()
	}
	nodeGroups := make(map[string]*sharding.NodeGroup, len(snap.NodeGroups))
	for _, g := range snap.NodeGroups {
		nodeGroups[g.Name] = g.ToNodeGroup()
	}

	return rules, &sharding.Topology{Endpoints: endpoints, NodeGroups: nodeGroups, ReadWriteSplit: readWriteSplit}
}
