package sharding

import (
	"strings"

	"github.com/shardkit/proxy/pkg/sqlast"
)

// splitInsert splits a multi-row INSERT into one output per shard
// that actually receives a row: rows are grouped by the shard index
// their sharding-column value resolves to, and each group becomes its
// own target statement with its own rewritten table reference and
// only its own rows in the VALUES list.
func (e *Engine) splitInsert(sql string, stmt *sqlast.Statement, rule *Rule, defaultDB string) ([]Output, error) {
	scope := stmt.Scopes[1]
	if len(scope.InsertColumns) == 0 || len(scope.Tables) == 0 {
		return nil, New(KindFieldsIsEmpty, rule.Table)
	}

	var column string
	var algo Algorithm
	var n int
	if rule.IsTableStrategy() {
		column, algo, n = rule.TableStrategy.Column, rule.TableStrategy.Algorithm, rule.TableStrategy.ShardingCount
	} else {
		column, algo, n = rule.DatabaseStrategy.Column, rule.DatabaseStrategy.Algorithm, len(rule.ActualDataNodes)
	}

	colIdx := -1
	for i, c := range scope.InsertColumns {
		if c == column {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return nil, New(KindShardingColumnNotFound, column)
	}

	type group struct {
		idx  int
		rows []sqlast.InsertRow
	}
	groups := map[int]*group{}
	var order []int
	for _, row := range scope.InsertRows {
		if colIdx >= len(row.Values) {
			continue
		}
		raw := row.Values[colIdx]
		idx, err := Calc(raw, classifyLiteral(raw), algo, n)
		if err != nil {
			return nil, err
		}
		g, ok := groups[idx]
		if !ok {
			g = &group{idx: idx}
			groups[idx] = g
			order = append(order, idx)
		}
		g.rows = append(g.rows, row)
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && order[j-1] > order[j]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}

	ref := scope.Tables[0]
	headEnd := scope.InsertRows[0].Span.Start
	head := sql[:headEnd]

	outputs := make([]Output, 0, len(order))
	for _, idx := range order {
		g := groups[idx]

		var tableText string
		var node string
		if rule.IsTableStrategy() {
			tableText = renderTableStrategyChange(ref, defaultDB, idx)
			node = rule.ActualDataNodes[0]
		} else {
			node = rule.ActualDataNodes[idx]
			actualDB, err := e.Topology.resolveDB(node)
			if err != nil {
				return nil, err
			}
			tableText = renderDatabaseChange(ref, actualDB)
		}
		rewrittenHead := head[:ref.Span.Start] + tableText + head[ref.Span.End():]

		var rows strings.Builder
		for i, row := range g.rows {
			if i > 0 {
				rows.WriteString(", ")
			}
			rows.WriteString(row.Span.Text(sql))
		}

		ds, err := e.Topology.Bind(node)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{
			TargetSQL:      rewrittenHead + rows.String(),
			DataSource:     ds,
			ShardingColumn: column,
		})
	}
	return outputs, nil
}
