package sharding

import (
	"github.com/shardkit/proxy/pkg/sqlast"
)

// Engine is the entry point for the rewrite pipeline: a fixed set of
// rules evaluated against a topology of endpoints and node groups.
type Engine struct {
	Rules    []*Rule
	Topology *Topology
}

// NewEngine builds an Engine from rules and a topology.
func NewEngine(rules []*Rule, topology *Topology) *Engine {
	return &Engine{Rules: rules, Topology: topology}
}

// Rewrite turns one parsed statement into the set of target
// statements it must fan out to. defaultDB is the session's current
// database, used to resolve unqualified table references and, for the
// table strategy, to qualify the rewritten schema.
//
// INSERT statements with a sharded target take the Insert Splitter
// path and never consult the Predicate Planner, since each row
// independently determines its own shard. Every other statement kind
// goes through rule matching, then predicate planning: if every
// candidate table is pinned to the same shard index by WHERE
// equalities on its sharding column, Rewrite emits exactly one output
// for that shard; otherwise it falls back to one output per data node
// (database strategy) or per sub-table (table strategy), leaving the WHERE clause unchanged so every
// node answers and the caller merges results itself.
func (e *Engine) Rewrite(rawSQL string, stmt *sqlast.Statement, defaultDB string) ([]Output, error) {
	candidates := e.Topology.MatchRules(stmt, e.Rules, defaultDB)
	if len(candidates) == 0 {
		return []Output{{TargetSQL: rawSQL}}, nil
	}

	if stmt.Kind == sqlast.KindInsert {
		return e.splitInsert(rawSQL, stmt, candidates[0].Rule, defaultDB)
	}

	rule := candidates[0].Rule
	var column string
	var algo Algorithm
	var n int
	if rule.IsTableStrategy() {
		column, algo, n = rule.TableStrategy.Column, rule.TableStrategy.Algorithm, rule.TableStrategy.ShardingCount
	} else {
		column, algo, n = rule.DatabaseStrategy.Column, rule.DatabaseStrategy.Algorithm, len(rule.ActualDataNodes)
	}

	preds, err := planPredicates(stmt, column, algo, n)
	if err != nil {
		return nil, err
	}

	if idx, ok := pointPlan(candidates, preds); ok {
		out, err := e.rewriteForShard(rawSQL, stmt, rule, column, defaultDB, idx, true)
		if err != nil {
			return nil, err
		}
		return []Output{out}, nil
	}

	nodeCount := len(rule.ActualDataNodes)
	if rule.IsTableStrategy() {
		nodeCount = rule.TableStrategy.ShardingCount
	}
	outputs := make([]Output, 0, nodeCount)
	for idx := 0; idx < nodeCount; idx++ {
		out, err := e.rewriteForShard(rawSQL, stmt, rule, column, defaultDB, idx, false)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// rewriteForShard produces the single target statement for shard idx.
// Every edit a table rename, an AVG rewrite, and an ORDER/GROUP
// projection rebuild can contribute is first collected in
// original-SQL coordinates, then applied in one pass in ascending
// span order (see applyEdits): this is what lets every edit share one
// running offset correctly no matter which component produced it or
// whether its span falls before or after another component's.
//
// pointPlan marks a single-shard call from the point-plan branch of
// Rewrite, as opposed to one iteration of the broadcast fan-out: under
// the database strategy with read-write split on, a point-plan output
// is bound to the rule's first data node's NodeGroup regardless of
// which shard idx actually answers, since the routing layer resolves
// the primary/replica choice itself.
func (e *Engine) rewriteForShard(rawSQL string, stmt *sqlast.Statement, rule *Rule, column, defaultDB string, idx int, pointPlan bool) (Output, error) {
	var edits []edit
	var changes []Change
	var dataSource DataSource
	var dsSet bool
	var minMaxFields []sqlast.Field

	for _, id := range stmt.ScopeIDs() {
		scope := stmt.Scopes[id]
		for _, ref := range scope.Tables {
			if ref.StrippedName() != rule.Table {
				continue
			}
			var text, node, bindNode string
			if rule.IsTableStrategy() {
				text = renderTableStrategyChange(ref, defaultDB, idx)
				node = rule.ActualDataNodes[0]
				bindNode = node
			} else {
				node = rule.ActualDataNodes[idx]
				actualDB, err := e.Topology.resolveDB(node)
				if err != nil {
					return Output{}, err
				}
				text = renderDatabaseChange(ref, actualDB)
				bindNode = node
				if pointPlan && e.Topology.ReadWriteSplit {
					bindNode = rule.ActualDataNodes[0]
				}
			}
			edits = append(edits, edit{span: ref.Span, text: text})
			changes = append(changes, Change{Kind: ChangeDatabase, Span: ref.Span, Target: text, ShardIdx: idx, RuleTable: rule.Table})
			if !dsSet {
				ds, err := e.Topology.Bind(bindNode)
				if err != nil {
					return Output{}, err
				}
				dataSource = ds
				dsSet = true
			}
		}
	}

	if scope1 := stmt.Scopes[1]; scope1 != nil {
		if avgEdit, avgChanges := buildAvgEdit(scope1, rule.Table, idx); avgEdit != nil {
			edits = append(edits, *avgEdit)
			changes = append(changes, avgChanges...)
		}
		if ogEdit, ogChanges := buildOrderGroupEdit(scope1, rule.Table, idx); ogEdit != nil {
			edits = append(edits, *ogEdit)
			changes = append(changes, ogChanges...)
		} else if ogChanges != nil {
			changes = append(changes, ogChanges...)
		}
		minMaxFields = findMinMaxFields(scope1)
	}

	return Output{
		TargetSQL:      applyEdits(rawSQL, edits),
		Changes:        changes,
		DataSource:     dataSource,
		ShardingColumn: column,
		MinMaxFields:   minMaxFields,
	}, nil
}
