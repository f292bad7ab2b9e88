// Command rewrite is a standalone CLI for trying a rule file against a
// single SQL statement without standing up the full proxy: it parses
// the statement, runs it through the same engine the admin API uses,
// and prints every target the statement fans out to.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shardkit/proxy/pkg/config"
	"github.com/shardkit/proxy/pkg/sharding"
	"github.com/shardkit/proxy/pkg/sqlparse"
)

func main() {
	configPath := flag.String("config", "configs/proxy.json", "path to a proxy config file containing rules and endpoints")
	sqlText := flag.String("sql", "", "SQL statement to rewrite")
	defaultDB := flag.String("db", "", "default database for unqualified table references")
	flag.Parse()

	if *sqlText == "" {
		fmt.Fprintln(os.Stderr, "usage: rewrite -config configs/proxy.json -sql \"SELECT * FROM orders WHERE user_id = 42\"")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	engine := sharding.NewEngine(cfg.ToRules(), cfg.ToTopology())

	stmt, err := sqlparse.Parse(*sqlText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse statement: %v\n", err)
		os.Exit(1)
	}

	outputs, err := engine.Rewrite(*sqlText, stmt, *defaultDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rewrite: %v\n", err)
		os.Exit(1)
	}

	type target struct {
		SQL            string `json:"sql"`
		DataSourceKind string `json:"data_source_kind"`
		DataSource     string `json:"data_source"`
		ShardingColumn string `json:"sharding_column,omitempty"`
	}

	targets := make([]target, 0, len(outputs))
	for _, out := range outputs {
		var kind, name string
		switch out.DataSource.Kind {
		case sharding.DataSourceEndpoint:
			kind, name = "endpoint", out.DataSource.Endpoint.Name
		case sharding.DataSourceNodeGroup:
			kind, name = "node_group", out.DataSource.NodeGroupName
		}
		targets = append(targets, target{
			SQL:            out.TargetSQL,
			DataSourceKind: kind,
			DataSource:     name,
			ShardingColumn: out.ShardingColumn,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(targets); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
}
