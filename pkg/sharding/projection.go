package sharding

import (
	"fmt"
	"strings"

	"github.com/shardkit/proxy/pkg/sqlast"
)

func renderFieldText(f sqlast.Field) string {
	switch f.Agg {
	case sqlast.AggAvg:
		return fmt.Sprintf("AVG(%s)", f.Name)
	case sqlast.AggSum:
		return fmt.Sprintf("SUM(%s)", f.Name)
	case sqlast.AggCount:
		return fmt.Sprintf("COUNT(%s)", f.Name)
	case sqlast.AggMin:
		return fmt.Sprintf("MIN(%s)", f.Name)
	case sqlast.AggMax:
		return fmt.Sprintf("MAX(%s)", f.Name)
	default:
		return f.Name
	}
}

// buildOrderGroupEdit ensures every ORDER BY / GROUP BY column the
// scope names is present in its projection list. A column already
// projected needs no edit and yields a no-op Change recording that
// fact; a missing column is appended to the field list under a
// derived alias built from the column name and shard index, and the
// Change records that alias so a caller can fold the derived column
// back out of the result set it receives from each shard.
//
// The returned edit's span is the original projection list's span;
// callers apply it alongside every other edit in ascending
// span-start order so it lands correctly regardless of how many
// edits precede it elsewhere in the statement.
func buildOrderGroupEdit(scope *sqlast.Scope, table string, shardIdx int) (*edit, []Change) {
	if len(scope.Orders) == 0 && len(scope.Groups) == 0 {
		return nil, nil
	}
	projected := make(map[string]bool, len(scope.Fields))
	for _, f := range scope.Fields {
		projected[f.Name] = true
	}

	var changes []Change
	var missingOrder []sqlast.OrderItem
	for _, o := range scope.Orders {
		if projected[o.Name] {
			changes = append(changes, Change{Kind: ChangeOrder, OrderField: o.Name, RuleTable: table})
			continue
		}
		missingOrder = append(missingOrder, o)
	}
	var missingGroup []sqlast.GroupItem
	for _, g := range scope.Groups {
		if projected[g.Name] {
			changes = append(changes, Change{Kind: ChangeGroup, GroupField: g.Name, RuleTable: table})
			continue
		}
		missingGroup = append(missingGroup, g)
	}
	if (len(missingOrder) == 0 && len(missingGroup) == 0) || len(scope.Fields) == 0 {
		return nil, changes
	}

	first := scope.Fields[0].Span
	last := scope.Fields[len(scope.Fields)-1].Span
	listSpan := sqlast.Span{Start: first.Start, Length: last.End() - first.Start}

	var b strings.Builder
	for i, f := range scope.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(renderFieldText(f))
	}
	for _, o := range missingOrder {
		alias := fmt.Sprintf("%s_ORDER_BY_DERIVED_%05d", strings.ToUpper(o.Name), shardIdx)
		fmt.Fprintf(&b, ", %s AS %s", o.Name, alias)
		changes = append(changes, Change{Kind: ChangeOrder, OrderField: o.Name, OrderTarget: alias, RuleTable: table})
	}
	for _, g := range missingGroup {
		alias := fmt.Sprintf("%s_GROUP_BY_DERIVED_%05d", strings.ToUpper(g.Name), shardIdx)
		fmt.Fprintf(&b, ", %s AS %s", g.Name, alias)
		changes = append(changes, Change{Kind: ChangeGroup, GroupField: g.Name, GroupTarget: alias, RuleTable: table})
	}

	return &edit{span: listSpan, text: b.String()}, changes
}

// findMinMaxFields returns every MIN/MAX projection field in scope,
// unchanged: the merge layer needs each field's original span, name
// and aggregation wrapper to fold per-shard extremes back into one
// result, so these are forwarded as-is rather than rewritten like AVG.
func findMinMaxFields(scope *sqlast.Scope) []sqlast.Field {
	var fields []sqlast.Field
	for _, f := range scope.Fields {
		if f.Agg == sqlast.AggMin || f.Agg == sqlast.AggMax {
			fields = append(fields, f)
		}
	}
	return fields
}

// buildAvgEdit rewrites every AVG(col) projection into COUNT(col) AS
// ..., SUM(col) AS ... so that averaging across shards is possible by
// summing counts and sums before dividing.
func buildAvgEdit(scope *sqlast.Scope, table string, shardIdx int) (*edit, []Change) {
	var avgFields []sqlast.Field
	for _, f := range scope.Fields {
		if f.Agg == sqlast.AggAvg {
			avgFields = append(avgFields, f)
		}
	}
	if len(avgFields) == 0 {
		return nil, nil
	}

	first := avgFields[0].Span
	last := avgFields[len(avgFields)-1].Span
	span := sqlast.Span{Start: first.Start, Length: last.End() - first.Start}

	var changes []Change
	var b strings.Builder
	for i, f := range avgFields {
		if i > 0 {
			b.WriteString(", ")
		}
		countAlias := fmt.Sprintf("%s_AVG_DERIVED_COUNT_%05d", strings.ToUpper(f.Name), shardIdx)
		sumAlias := fmt.Sprintf("%s_AVG_DERIVED_SUM_%05d", strings.ToUpper(f.Name), shardIdx)
		fmt.Fprintf(&b, "COUNT(%s) AS %s, SUM(%s) AS %s", f.Name, countAlias, f.Name, sumAlias)
		changes = append(changes, Change{
			Kind: ChangeAvg, AvgField: f.Name, AvgCountAlias: countAlias, AvgSumAlias: sumAlias,
			RuleTable: table,
		})
	}
	return &edit{span: span, text: b.String()}, changes
}
