// Package models holds the JSON wire shapes shared by pkg/ruleset (the
// etcd-backed store) and the admin API handlers. They mirror
// pkg/sharding's in-memory types but carry JSON tags and conversion
// methods, keeping the engine package itself free of encoding concerns.
package models

import (
	"time"

	"github.com/shardkit/proxy/pkg/sharding"
)

// DatabaseStrategyRecord mirrors sharding.DatabaseStrategy.
type DatabaseStrategyRecord struct {
	Column    string `json:"column"`
	Algorithm string `json:"algorithm"`
}

// TableStrategyRecord mirrors sharding.TableStrategy.
type TableStrategyRecord struct {
	Column        string `json:"column"`
	Algorithm     string `json:"algorithm"`
	ShardingCount int    `json:"sharding_count"`
}

// RuleRecord is one sharding rule as stored in etcd and returned by the
// rules admin API.
type RuleRecord struct {
	Table            string                  `json:"table"`
	ActualDataNodes  []string                `json:"actual_datanodes"`
	DatabaseStrategy *DatabaseStrategyRecord `json:"database_strategy,omitempty"`
	TableStrategy    *TableStrategyRecord    `json:"table_strategy,omitempty"`
}

// ToRule converts the wire record into the engine's Rule type.
func (r RuleRecord) ToRule() *sharding.Rule {
	out := &sharding.Rule{Table: r.Table, ActualDataNodes: r.ActualDataNodes}
	if r.DatabaseStrategy != nil {
		out.DatabaseStrategy = &sharding.DatabaseStrategy{
			Column: r.DatabaseStrategy.Column, Algorithm: sharding.Algorithm(r.DatabaseStrategy.Algorithm),
		}
	}
	if r.TableStrategy != nil {
		out.TableStrategy = &sharding.TableStrategy{
			Column: r.TableStrategy.Column, Algorithm: sharding.Algorithm(r.TableStrategy.Algorithm),
			ShardingCount: r.TableStrategy.ShardingCount,
		}
	}
	return out
}

// RuleRecordFromRule converts an engine Rule back into its wire shape,
// the inverse of ToRule, used when persisting rules an admin created.
func RuleRecordFromRule(r *sharding.Rule) RuleRecord {
	out := RuleRecord{Table: r.Table, ActualDataNodes: r.ActualDataNodes}
	if r.DatabaseStrategy != nil {
		out.DatabaseStrategy = &DatabaseStrategyRecord{
			Column: r.DatabaseStrategy.Column, Algorithm: string(r.DatabaseStrategy.Algorithm),
		}
	}
	if r.TableStrategy != nil {
		out.TableStrategy = &TableStrategyRecord{
			Column: r.TableStrategy.Column, Algorithm: string(r.TableStrategy.Algorithm),
			ShardingCount: r.TableStrategy.ShardingCount,
		}
	}
	return out
}

// EndpointRecord mirrors sharding.Endpoint.
type EndpointRecord struct {
	Name     string `json:"name"`
	Addr     string `json:"addr"`
	User     string `json:"user"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

func (e EndpointRecord) ToEndpoint() *sharding.Endpoint {
	return &sharding.Endpoint{Name: e.Name, Addr: e.Addr, User: e.User, Password: e.Password, DB: e.DB}
}

func EndpointRecordFromEndpoint(e *sharding.Endpoint) EndpointRecord {
	return EndpointRecord{Name: e.Name, Addr: e.Addr, User: e.User, Password: e.Password, DB: e.DB}
}

// NodeGroupRecord mirrors sharding.NodeGroup.
type NodeGroupRecord struct {
	Name    string   `json:"name"`
	Primary string   `json:"primary"`
	Members []string `json:"members"`
}

func (g NodeGroupRecord) ToNodeGroup() *sharding.NodeGroup {
	return &sharding.NodeGroup{Name: g.Name, Primary: g.Primary, Members: g.Members}
}

func NodeGroupRecordFromNodeGroup(g *sharding.NodeGroup) NodeGroupRecord {
	return NodeGroupRecord{Name: g.Name, Primary: g.Primary, Members: g.Members}
}

// EndpointHealth is the last observed reachability of one configured
// backend endpoint.
type EndpointHealth struct {
	Endpoint  string    `json:"endpoint"`
	Up        bool      `json:"up"`
	LatencyMs float64   `json:"latency_ms"`
	LastCheck time.Time `json:"last_check"`
	Err       string    `json:"err,omitempty"`
}

// Snapshot is the full ruleset state at a point in time: every rule,
// endpoint and node group, tagged with the etcd revision it was read
// at so callers can detect staleness.
type Snapshot struct {
	Version    int64             `json:"version"`
	Rules      []RuleRecord      `json:"rules"`
	Endpoints  []EndpointRecord  `json:"endpoints"`
	NodeGroups []NodeGroupRecord `json:"node_groups"`
}
