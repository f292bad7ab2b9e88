package ruleset_test

import (
	"testing"

	"github.com/shardkit/proxy/pkg/models"
	"github.com/shardkit/proxy/pkg/ruleset"
	"github.com/shardkit/proxy/pkg/sharding"
)

func TestToEngineInputsBuildsRulesAndTopology(t *testing.T) {
	snap := models.Snapshot{
		Version: 3,
		Rules: []models.RuleRecord{
			{
				Table:           "tshard",
				ActualDataNodes: []string{"ds0", "ds1"},
				DatabaseStrategy: &models.DatabaseStrategyRecord{
					Column: "idx", Algorithm: "Mod",
				},
			},
		},
		Endpoints: []models.EndpointRecord{
			{Name: "ds0", Addr: "127.0.0.1:3306", DB: "db0"},
			{Name: "ds1", Addr: "127.0.0.1:3307", DB: "db1"},
		},
		NodeGroups: []models.NodeGroupRecord{
			{Name: "ds0", Primary: "ds0", Members: []string{"ds0", "ds0-replica"}},
		},
	}

	rules, topo := ruleset.ToEngineInputs(snap, true)

	if len(rules) != 1 || rules[0].Table != "tshard" {
		t.Fatalf("rules = %+v, want one rule for tshard", rules)
	}
	if rules[0].DatabaseStrategy == nil || rules[0].DatabaseStrategy.Algorithm != sharding.Mod {
		t.Fatalf("database strategy not converted: %+v", rules[0].DatabaseStrategy)
	}
	if !topo.ReadWriteSplit {
		t.Error("expected ReadWriteSplit true to carry through")
	}
	if ep, ok := topo.Endpoints["ds1"]; !ok || ep.DB != "db1" {
		t.Fatalf("topo.Endpoints[ds1] = %+v, %v, want db1/true", ep, ok)
	}
	if ng, ok := topo.NodeGroups["ds0"]; !ok || ng.Primary != "ds0" {
		t.Fatalf("topo.NodeGroups[ds0] = %+v, %v, want primary ds0/true", ng, ok)
	}
}

func TestRuleRecordRoundTrip(t *testing.T) {
	rule := &sharding.Rule{
		Table:           "orders",
		ActualDataNodes: []string{"ds0"},
		TableStrategy: &sharding.TableStrategy{
			Column: "order_id", Algorithm: sharding.CRC32Mod, ShardingCount: 4,
		},
	}
	record := models.RuleRecordFromRule(rule)
	back := record.ToRule()

	if back.Table != rule.Table {
		t.Errorf("Table = %q, want %q", back.Table, rule.Table)
	}
	if back.TableStrategy == nil || back.TableStrategy.ShardingCount != 4 {
		t.Fatalf("TableStrategy not round-tripped: %+v", back.TableStrategy)
	}
	if back.TableStrategy.Algorithm != sharding.CRC32Mod {
		t.Errorf("Algorithm = %v, want CRC32Mod", back.TableStrategy.Algorithm)
	}
}
