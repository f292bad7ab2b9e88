package sharding

import "github.com/shardkit/proxy/pkg/sqlast"

// predicate is one WHERE equality found to reference a rule's shard
// column, paired with the shard index it resolves to.
type predicate struct {
	ScopeID  int
	ShardIdx int
}

// planPredicates scans every scope of stmt for WHERE equalities on
// column and returns one predicate per match, in ascending scope-id
// then document order. A literal that fails to parse aborts the
// entire rewrite call rather than being silently skipped.
func planPredicates(stmt *sqlast.Statement, column string, algo Algorithm, n int) ([]predicate, error) {
	var out []predicate
	for _, id := range stmt.ScopeIDs() {
		scope := stmt.Scopes[id]
		for _, w := range scope.Wheres {
			if w.Column != column {
				continue
			}
			idx, err := Calc(w.Raw, w.Kind, algo, n)
			if err != nil {
				return nil, err
			}
			out = append(out, predicate{ScopeID: id, ShardIdx: idx})
		}
	}
	return out, nil
}

// pointPlan decides whether the collected predicates pin the whole
// statement to a single shard. Two conditions must both hold: every
// candidate's scope carries at least one matching predicate, and the
// first predicate's shard index times the predicate count equals the
// sum of all predicates' shard indices — an exact-coincidence check
// computed over the flat, cross-scope predicate list rather than
// grouped per table, preserved here because grouping it per table
// would change which statements qualify for a single-shard plan.
func pointPlan(candidates []Candidate, preds []predicate) (int, bool) {
	if len(preds) == 0 {
		return 0, false
	}
	withPred := make(map[int]bool, len(preds))
	for _, p := range preds {
		withPred[p.ScopeID] = true
	}
	for _, c := range candidates {
		if !withPred[c.ScopeID] {
			return 0, false
		}
	}
	s0 := preds[0].ShardIdx
	sum := 0
	for _, p := range preds {
		sum += p.ShardIdx
	}
	if s0*len(preds) != sum {
		return 0, false
	}
	return s0, true
}
