// Package sharding implements the SQL sharding rewrite engine: the
// Shard Index Calculator, Metadata-driven Rule Matcher, Predicate
// Planner, Text Rewriter, Projection Augmenter, Insert Splitter, and
// Data-Source Binder. A call to Engine.Rewrite is a pure function of
// its rules, endpoints, and the statement passed in — it holds no
// shared mutable state and is safe to call concurrently from
// independent callers.
package sharding

import "github.com/shardkit/proxy/pkg/sqlast"

// Algorithm names a shard-index computation. Mod and CRC32Mod are the
// two algorithms a reference implementation must support; Murmur3Mod
// and XXHashMod are additive.
type Algorithm string

const (
	Mod        Algorithm = "Mod"
	CRC32Mod   Algorithm = "CRC32Mod"
	Murmur3Mod Algorithm = "Murmur3Mod"
	XXHashMod  Algorithm = "XXHashMod"
)

// DatabaseStrategy shards across a rule's data nodes directly.
type DatabaseStrategy struct {
	Column    string
	Algorithm Algorithm
}

// TableStrategy shards a single logical table into ShardingCount
// physical sub-tables on one data node.
type TableStrategy struct {
	Column        string
	Algorithm     Algorithm
	ShardingCount int
}

// Rule names a logical table and carries at most one active strategy.
type Rule struct {
	Table            string
	ActualDataNodes  []string
	DatabaseStrategy *DatabaseStrategy
	TableStrategy    *TableStrategy
}

// IsTableStrategy reports whether the rule shards by table rather than
// by database. Mixed strategies are not supported by one rule.
func (r *Rule) IsTableStrategy() bool {
	return r.TableStrategy != nil
}

// Endpoint is an addressable backend.
type Endpoint struct {
	Name     string
	Addr     string
	User     string
	Password string
	DB       string
}

// NodeGroup is a logical set of endpoints sharing a read-write split
// identity, named after its primary data node.
type NodeGroup struct {
	Name    string
	Primary string
	Members []string
}

// DataSourceKind tags a DataSource's variant.
type DataSourceKind int

const (
	DataSourceNone DataSourceKind = iota
	DataSourceEndpoint
	DataSourceNodeGroup
)

// DataSource is the tagged union Endpoint(e) | NodeGroup(name) | None.
type DataSource struct {
	Kind          DataSourceKind
	Endpoint      Endpoint
	NodeGroupName string
}

// ChangeKind tags a RewriteChange's variant.
type ChangeKind int

const (
	ChangeDatabase ChangeKind = iota
	ChangeAvg
	ChangeOrder
	ChangeGroup
)

// Change records one applied edit.
type Change struct {
	Kind ChangeKind

	// ChangeDatabase
	Span      sqlast.Span
	Target    string
	ShardIdx  int
	RuleTable string

	// ChangeAvg
	AvgField      string
	AvgCountAlias string
	AvgSumAlias   string

	// ChangeOrder / ChangeGroup
	OrderField  string
	OrderTarget string
	GroupField  string
	GroupTarget string
}

// Output is the rewriter's externally visible result for one target.
type Output struct {
	TargetSQL      string
	Changes        []Change
	DataSource     DataSource
	ShardingColumn string
	MinMaxFields   []sqlast.Field
}

// Topology bundles the endpoint/node-group configuration an Engine
// resolves data sources against.
type Topology struct {
	Endpoints      map[string]*Endpoint
	NodeGroups     map[string]*NodeGroup
	ReadWriteSplit bool
}
