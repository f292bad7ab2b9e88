package sharding_test

import (
	"testing"

	"github.com/shardkit/proxy/pkg/sharding"
	"github.com/shardkit/proxy/pkg/sqlparse"
)

func dbTopology() *sharding.Topology {
	return &sharding.Topology{
		Endpoints: map[string]*sharding.Endpoint{
			"ds0": {Name: "ds0", DB: "db0"},
			"ds1": {Name: "ds1", DB: "db1"},
		},
	}
}

func tableTopology() *sharding.Topology {
	return &sharding.Topology{
		Endpoints: map[string]*sharding.Endpoint{
			"ds001": {Name: "ds001", DB: "db"},
		},
	}
}

func rewrite(t *testing.T, engine *sharding.Engine, sql, defaultDB string) []sharding.Output {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		t.Fatalf("parse %q: %v", sql, err)
	}
	out, err := engine.Rewrite(sql, stmt, defaultDB)
	if err != nil {
		t.Fatalf("rewrite %q: %v", sql, err)
	}
	return out
}

func TestDatabaseStrategyPointPlan(t *testing.T) {
	rule := &sharding.Rule{
		Table:           "tshard",
		ActualDataNodes: []string{"ds0", "ds1"},
		DatabaseStrategy: &sharding.DatabaseStrategy{
			Column: "idx", Algorithm: sharding.Mod,
		},
	}
	engine := sharding.NewEngine([]*sharding.Rule{rule}, dbTopology())

	outs := rewrite(t, engine, "SELECT idx from `db`.tshard where idx = 3", "")
	if len(outs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(outs))
	}
	want := "SELECT idx from `db1`.tshard where idx = 3"
	if outs[0].TargetSQL != want {
		t.Errorf("target_sql = %q, want %q", outs[0].TargetSQL, want)
	}
	if outs[0].DataSource.Kind != sharding.DataSourceEndpoint || outs[0].DataSource.Endpoint.Name != "ds1" {
		t.Errorf("data_source = %+v, want endpoint ds1", outs[0].DataSource)
	}
}

func TestDatabaseStrategyBroadcastOnDisagreement(t *testing.T) {
	rule := &sharding.Rule{
		Table:           "tshard",
		ActualDataNodes: []string{"ds0", "ds1"},
		DatabaseStrategy: &sharding.DatabaseStrategy{
			Column: "idx", Algorithm: sharding.Mod,
		},
	}
	engine := sharding.NewEngine([]*sharding.Rule{rule}, dbTopology())

	sql := "SELECT idx from db.tshard where idx = 3 and idx = (SELECT idx from db.tshard where idx = 4)"
	outs := rewrite(t, engine, sql, "db")
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs (broadcast), got %d", len(outs))
	}
	want0 := "SELECT idx from db0.tshard where idx = 3 and idx = (SELECT idx from db0.tshard where idx = 4)"
	want1 := "SELECT idx from db1.tshard where idx = 3 and idx = (SELECT idx from db1.tshard where idx = 4)"
	if outs[0].TargetSQL != want0 {
		t.Errorf("output0 = %q, want %q", outs[0].TargetSQL, want0)
	}
	if outs[1].TargetSQL != want1 {
		t.Errorf("output1 = %q, want %q", outs[1].TargetSQL, want1)
	}
}

func tableRule() *sharding.Rule {
	return &sharding.Rule{
		Table:           "tshard",
		ActualDataNodes: []string{"ds001"},
		TableStrategy: &sharding.TableStrategy{
			Column: "idx", Algorithm: sharding.Mod, ShardingCount: 4,
		},
	}
}

func TestTableStrategyBroadcast(t *testing.T) {
	engine := sharding.NewEngine([]*sharding.Rule{tableRule()}, tableTopology())
	outs := rewrite(t, engine, "SELECT idx from db.tshard where idx > 3", "db")
	if len(outs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outs))
	}
	for i, out := range outs {
		want := "SELECT idx from `db`.tshard_" + padIdx(i) + " where idx > 3"
		if out.TargetSQL != want {
			t.Errorf("output %d = %q, want %q", i, out.TargetSQL, want)
		}
	}
}

func padIdx(i int) string {
	s := "00000"
	digits := []byte(s)
	j := len(digits) - 1
	for v := i; v > 0 && j >= 0; v /= 10 {
		digits[j] = byte('0' + v%10)
		j--
	}
	return string(digits)
}

func TestInsertSplitter(t *testing.T) {
	engine := sharding.NewEngine([]*sharding.Rule{tableRule()}, tableTopology())
	outs := rewrite(t, engine, "INSERT INTO db.tshard(idx) VALUES (12), (13), (16)", "db")
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outs))
	}
	want0 := "INSERT INTO `db`.tshard_00000(idx) VALUES (12), (16)"
	want1 := "INSERT INTO `db`.tshard_00001(idx) VALUES (13)"
	if outs[0].TargetSQL != want0 {
		t.Errorf("output0 = %q, want %q", outs[0].TargetSQL, want0)
	}
	if outs[1].TargetSQL != want1 {
		t.Errorf("output1 = %q, want %q", outs[1].TargetSQL, want1)
	}
}

func TestAvgProjectionAugmenter(t *testing.T) {
	engine := sharding.NewEngine([]*sharding.Rule{tableRule()}, tableTopology())
	outs := rewrite(t, engine, "SELECT AVG(price) FROM db.tshard WHERE idx > 3", "db")
	if len(outs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outs))
	}
	want := "SELECT COUNT(price) AS PRICE_AVG_DERIVED_COUNT_00000, SUM(price) AS PRICE_AVG_DERIVED_SUM_00000 FROM `db`.tshard_00000 WHERE idx > 3"
	if outs[0].TargetSQL != want {
		t.Errorf("output0 = %q, want %q", outs[0].TargetSQL, want)
	}
}

func TestOrderByProjectionAugmenter(t *testing.T) {
	engine := sharding.NewEngine([]*sharding.Rule{tableRule()}, tableTopology())
	outs := rewrite(t, engine, "SELECT order_id, order_item_id FROM db.tshard ORDER BY user_id", "db")
	if len(outs) != 4 {
		t.Fatalf("expected 4 outputs, got %d", len(outs))
	}
	want := "SELECT order_id, order_item_id, user_id AS USER_ID_ORDER_BY_DERIVED_00000 FROM `db`.tshard_00000 ORDER BY user_id"
	if outs[0].TargetSQL != want {
		t.Errorf("output0 = %q, want %q", outs[0].TargetSQL, want)
	}
}

func TestNoMatchingRuleReturnsEmptyChanges(t *testing.T) {
	engine := sharding.NewEngine([]*sharding.Rule{tableRule()}, tableTopology())
	outs := rewrite(t, engine, "SELECT 1 FROM unrelated", "db")
	if len(outs) != 1 || len(outs[0].Changes) != 0 {
		t.Fatalf("expected single unchanged fallback output, got %+v", outs)
	}
	if outs[0].TargetSQL != "SELECT 1 FROM unrelated" {
		t.Errorf("fallback output mutated SQL: %q", outs[0].TargetSQL)
	}
}
