// Package config loads the proxy's JSON configuration: the admin
// server, the etcd-backed rule store connection, the sharding rules
// and topology used to seed that store on first boot, and the JWT/
// observability settings the admin API and executor need.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shardkit/proxy/pkg/sharding"
)

// Config holds the application configuration.
type Config struct {
	Server        ServerConfig        `json:"server"`
	RuleStore     RuleStoreConfig     `json:"rule_store"`
	Sharding      ShardingRuntimeConfig `json:"sharding"`
	Rules         []ShardingRuleConfig `json:"rules"`
	Endpoints     []EndpointConfig    `json:"endpoints"`
	NodeGroups    []NodeGroupConfig   `json:"node_groups"`
	Security      SecurityConfig      `json:"security"`
	Observability ObservabilityConfig `json:"observability"`
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ReadTimeoutStr  string `json:"read_timeout"`
	WriteTimeoutStr string `json:"write_timeout"`
	IdleTimeoutStr  string `json:"idle_timeout"`

	ReadTimeout  time.Duration `json:"-"`
	WriteTimeout time.Duration `json:"-"`
	IdleTimeout  time.Duration `json:"-"`
}

// RuleStoreConfig points at the etcd cluster backing pkg/ruleset.
type RuleStoreConfig struct {
	Endpoints  []string `json:"endpoints"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Prefix     string   `json:"prefix"`
	TimeoutStr string   `json:"timeout"`
	Timeout    time.Duration `json:"-"`
}

// ShardingRuntimeConfig configures the executor's connection pooling
// and the periodic rule-resync schedule.
type ShardingRuntimeConfig struct {
	ReadWriteSplit   bool   `json:"read_write_split"`
	MaxConnections   int    `json:"max_connections"`
	ConnectionTTLStr string `json:"connection_ttl"`
	ResyncCron       string `json:"resync_cron"`

	ConnectionTTL time.Duration `json:"-"`
}

// DatabaseStrategyConfig mirrors sharding.DatabaseStrategy for JSON.
type DatabaseStrategyConfig struct {
	Column    string `json:"column"`
	Algorithm string `json:"algorithm"`
}

// TableStrategyConfig mirrors sharding.TableStrategy for JSON.
type TableStrategyConfig struct {
	Column        string `json:"column"`
	Algorithm     string `json:"algorithm"`
	ShardingCount int    `json:"sharding_count"`
}

// ShardingRuleConfig mirrors sharding.Rule for JSON.
type ShardingRuleConfig struct {
	Table            string                  `json:"table"`
	ActualDataNodes  []string                `json:"actual_datanodes"`
	DatabaseStrategy *DatabaseStrategyConfig `json:"database_strategy,omitempty"`
	TableStrategy    *TableStrategyConfig    `json:"table_strategy,omitempty"`
}

// ToRule converts the JSON shape into the engine's Rule type.
func (c ShardingRuleConfig) ToRule() *sharding.Rule {
	r := &sharding.Rule{Table: c.Table, ActualDataNodes: c.ActualDataNodes}
	if c.DatabaseStrategy != nil {
		r.DatabaseStrategy = &sharding.DatabaseStrategy{
			Column: c.DatabaseStrategy.Column, Algorithm: sharding.Algorithm(c.DatabaseStrategy.Algorithm),
		}
	}
	if c.TableStrategy != nil {
		r.TableStrategy = &sharding.TableStrategy{
			Column: c.TableStrategy.Column, Algorithm: sharding.Algorithm(c.TableStrategy.Algorithm),
			ShardingCount: c.TableStrategy.ShardingCount,
		}
	}
	return r
}

// EndpointConfig mirrors sharding.Endpoint for JSON.
type EndpointConfig struct {
	Name     string `json:"name"`
	Addr     string `json:"addr"`
	User     string `json:"user"`
	Password string `json:"password"`
	DB       string `json:"db"`
}

func (c EndpointConfig) ToEndpoint() *sharding.Endpoint {
	return &sharding.Endpoint{Name: c.Name, Addr: c.Addr, User: c.User, Password: c.Password, DB: c.DB}
}

// NodeGroupConfig mirrors sharding.NodeGroup for JSON.
type NodeGroupConfig struct {
	Name    string   `json:"name"`
	Primary string   `json:"primary"`
	Members []string `json:"members"`
}

func (c NodeGroupConfig) ToNodeGroup() *sharding.NodeGroup {
	return &sharding.NodeGroup{Name: c.Name, Primary: c.Primary, Members: c.Members}
}

// SecurityConfig holds the admin API's auth configuration.
type SecurityConfig struct {
	JWTSecret    string `json:"jwt_secret"`
	JWTIssuer    string `json:"jwt_issuer"`
	TokenTTLStr  string `json:"token_ttl"`
	TokenTTL     time.Duration `json:"-"`
}

// ObservabilityConfig holds logging/metrics configuration.
type ObservabilityConfig struct {
	MetricsPort int    `json:"metrics_port"`
	LogLevel    string `json:"log_level"`
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := parseDurations(&config); err != nil {
		return nil, fmt.Errorf("failed to parse durations: %w", err)
	}
	setDefaults(&config)

	return &config, nil
}

func parseDurations(c *Config) error {
	var err error
	if c.Server.ReadTimeoutStr != "" {
		if c.Server.ReadTimeout, err = time.ParseDuration(c.Server.ReadTimeoutStr); err != nil {
			return fmt.Errorf("invalid read_timeout: %w", err)
		}
	}
	if c.Server.WriteTimeoutStr != "" {
		if c.Server.WriteTimeout, err = time.ParseDuration(c.Server.WriteTimeoutStr); err != nil {
			return fmt.Errorf("invalid write_timeout: %w", err)
		}
	}
	if c.Server.IdleTimeoutStr != "" {
		if c.Server.IdleTimeout, err = time.ParseDuration(c.Server.IdleTimeoutStr); err != nil {
			return fmt.Errorf("invalid idle_timeout: %w", err)
		}
	}
	if c.RuleStore.TimeoutStr != "" {
		if c.RuleStore.Timeout, err = time.ParseDuration(c.RuleStore.TimeoutStr); err != nil {
			return fmt.Errorf("invalid rule_store timeout: %w", err)
		}
	}
	if c.Sharding.ConnectionTTLStr != "" {
		if c.Sharding.ConnectionTTL, err = time.ParseDuration(c.Sharding.ConnectionTTLStr); err != nil {
			return fmt.Errorf("invalid connection_ttl: %w", err)
		}
	}
	if c.Security.TokenTTLStr != "" {
		if c.Security.TokenTTL, err = time.ParseDuration(c.Security.TokenTTLStr); err != nil {
			return fmt.Errorf("invalid token_ttl: %w", err)
		}
	}
	return nil
}

func setDefaults(c *Config) {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.RuleStore.Prefix == "" {
		c.RuleStore.Prefix = "/shardkit/rules/"
	}
	if c.RuleStore.Timeout == 0 {
		c.RuleStore.Timeout = 5 * time.Second
	}
	if c.Sharding.MaxConnections == 0 {
		c.Sharding.MaxConnections = 10
	}
	if c.Sharding.ConnectionTTL == 0 {
		c.Sharding.ConnectionTTL = 30 * time.Minute
	}
	if c.Sharding.ResyncCron == "" {
		c.Sharding.ResyncCron = "@every 30s"
	}
	if c.Observability.MetricsPort == 0 {
		c.Observability.MetricsPort = 9090
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Security.TokenTTL == 0 {
		c.Security.TokenTTL = time.Hour
	}
}

// ToRules converts the configured rule list into engine Rules.
func (c *Config) ToRules() []*sharding.Rule {
	out := make([]*sharding.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, r.ToRule())
	}
	return out
}

// ToTopology converts the configured endpoints/node-groups into a
// sharding.Topology.
func (c *Config) ToTopology() *sharding.Topology {
	endpoints := make(map[string]*sharding.Endpoint, len(c.Endpoints))
	for _, e := range c.Endpoints {
		endpoints[e.Name] = e.ToEndpoint()
	}
	nodeGroups := make(map[string]*sharding.NodeGroup, len(c.NodeGroups))
	for _, g := range c.NodeGroups {
		nodeGroups[g.Name] = g.ToNodeGroup()
	}
	return &sharding.Topology{Endpoints: endpoints, NodeGroups: nodeGroups, ReadWriteSplit: c.Sharding.ReadWriteSplit}
}
