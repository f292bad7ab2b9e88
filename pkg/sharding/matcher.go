package sharding

import "github.com/shardkit/proxy/pkg/sqlast"

// Candidate is one table reference the matcher judged reachable for
// rewriting: a sharded table occurring in a scope whose schema is
// either explicit or resolvable through the session's default
// database.
type Candidate struct {
	ScopeID int
	Rule    *Rule
	Table   sqlast.TableRef
}

func findRule(rules []*Rule, table string) *Rule {
	for _, r := range rules {
		if r.Table == table {
			return r
		}
	}
	return nil
}

// MatchRules walks every scope of stmt in ascending id order and
// collects the sharded table references reachable given defaultDB.
// A reference with an explicit schema is always reachable, since the
// qualifier already names a real data node or node group. An
// unqualified reference is reachable only when defaultDB resolves, via
// the rule's own data nodes, to an endpoint whose configured database
// matches defaultDB — an unqualified reference to a table whose rule
// nodes don't serve the session's database is left unrewritten.
func (t *Topology) MatchRules(stmt *sqlast.Statement, rules []*Rule, defaultDB string) []Candidate {
	var out []Candidate
	for _, id := range stmt.ScopeIDs() {
		scope := stmt.Scopes[id]
		for _, ref := range scope.Tables {
			rule := findRule(rules, ref.StrippedName())
			if rule == nil {
				continue
			}
			if ref.Schema != "" || t.reachableViaDefaultDB(rule, defaultDB) {
				out = append(out, Candidate{ScopeID: id, Rule: rule, Table: ref})
			}
		}
	}
	return out
}

func (t *Topology) reachableViaDefaultDB(rule *Rule, defaultDB string) bool {
	if defaultDB == "" {
		return false
	}
	for _, node := range rule.ActualDataNodes {
		if t.ReadWriteSplit {
			if ng, ok := t.NodeGroups[node]; ok {
				for _, member := range ng.Members {
					if ep, ok := t.Endpoints[member]; ok && ep.DB == defaultDB {
						return true
					}
				}
			}
			continue
		}
		if ep, ok := t.Endpoints[node]; ok && ep.DB == defaultDB {
			return true
		}
	}
	return false
}
