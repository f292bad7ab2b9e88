// Package executor is a demonstrative fan-out executor for rewrite
// outputs: it is not part of the rewrite engine itself, but shows how
// a caller dispatches a sharding.Output list to real MySQL backends
// and collects the per-shard result sets; it does not merge or
// aggregate them across shards. Production callers are free
// to replace this with their own dispatch/merge layer; the rewrite
// engine's contract does not depend on it.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/observability"
	"github.com/shardkit/proxy/pkg/sharding"
)

// Row is one result row, keyed by column name.
type Row map[string]interface{}

// ShardResult is one target's outcome: either rows or an error, never
// both.
type ShardResult struct {
	Endpoint  string
	Rows      []Row
	Columns   []string
	LatencyMs float64
	Err       error
}

// Executor dispatches rewrite outputs to live MySQL connections,
// pooling one *sql.DB per endpoint.
type Executor struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	pools    map[string]*sql.DB
	maxConns int
	connTTL  time.Duration
}

// New returns an Executor with no pools yet opened; pools are created
// lazily on first use and cached for the Executor's lifetime.
func New(logger *zap.Logger, maxConns int, connTTL time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	if connTTL <= 0 {
		connTTL = 30 * time.Minute
	}
	return &Executor{logger: logger, pools: make(map[string]*sql.DB), maxConns: maxConns, connTTL: connTTL}
}

// Dispatch sends every output's target SQL to its bound data source
// concurrently and returns one ShardResult per output, in the same
// order Rewrite produced them. An output bound to a NodeGroup is sent
// to the group's primary member; resolving read-write split to a
// replica for read-only traffic is left to a routing layer the
// rewrite engine does not own.
func (e *Executor) Dispatch(ctx context.Context, outputs []sharding.Output, endpoints map[string]*sharding.Endpoint, nodeGroups map[string]*sharding.NodeGroup) []ShardResult {
	results := make([]ShardResult, len(outputs))
	var wg sync.WaitGroup
	for i, out := range outputs {
		i, out := i, out
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.dispatchOne(ctx, out, endpoints, nodeGroups)
		}()
	}
	wg.Wait()
	return results
}

func (e *Executor) dispatchOne(ctx context.Context, out sharding.Output, endpoints map[string]*sharding.Endpoint, nodeGroups map[string]*sharding.NodeGroup) ShardResult {
	ep, err := resolveEndpoint(out.DataSource, endpoints, nodeGroups)
	if err != nil {
		return ShardResult{Err: err}
	}

	start := time.Now()
	db, err := e.pool(ep)
	if err != nil {
		observability.DispatchTotal.WithLabelValues(ep.Name, "pool_error").Inc()
		return ShardResult{Endpoint: ep.Name, Err: fmt.Errorf("acquire pool for %s: %w", ep.Name, err)}
	}

	rows, err := db.QueryContext(ctx, out.TargetSQL)
	if err != nil {
		observability.DispatchDuration.WithLabelValues(ep.Name).Observe(time.Since(start).Seconds())
		observability.DispatchTotal.WithLabelValues(ep.Name, "query_error").Inc()
		return ShardResult{Endpoint: ep.Name, Err: fmt.Errorf("query %s: %w", ep.Name, err)}
	}
	defer rows.Close()

	result, err := scanRows(rows)
	latency := time.Since(start)
	observability.DispatchDuration.WithLabelValues(ep.Name).Observe(latency.Seconds())
	if err != nil {
		observability.DispatchTotal.WithLabelValues(ep.Name, "scan_error").Inc()
		return ShardResult{Endpoint: ep.Name, Err: err, LatencyMs: msSince(latency)}
	}

	observability.DispatchTotal.WithLabelValues(ep.Name, "ok").Inc()
	e.logger.Debug("shard query executed",
		zap.String("endpoint", ep.Name),
		zap.Duration("latency", latency),
		zap.Int("row_count", len(result)),
	)

	return ShardResult{Endpoint: ep.Name, Rows: result, LatencyMs: msSince(latency)}
}

func msSince(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func resolveEndpoint(ds sharding.DataSource, endpoints map[string]*sharding.Endpoint, nodeGroups map[string]*sharding.NodeGroup) (*sharding.Endpoint, error) {
	switch ds.Kind {
	case sharding.DataSourceEndpoint:
		ep := ds.Endpoint
		return &ep, nil
	case sharding.DataSourceNodeGroup:
		ng, ok := nodeGroups[ds.NodeGroupName]
		if !ok {
			return nil, sharding.Wrap(sharding.KindEndpointNotFound, ds.NodeGroupName, nil)
		}
		ep, ok := endpoints[ng.Primary]
		if !ok {
			return nil, sharding.Wrap(sharding.KindEndpointNotFound, ng.Primary, nil)
		}
		return ep, nil
	default:
		return nil, sharding.New(sharding.KindEndpointNotFound, "output carries no data source")
	}
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// pool returns the cached *sql.DB for ep, opening and verifying one on
// first use.
func (e *Executor) pool(ep *sharding.Endpoint) (*sql.DB, error) {
	e.mu.RLock()
	db, ok := e.pools[ep.Name]
	e.mu.RUnlock()
	if ok {
		return db, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if db, ok := e.pools[ep.Name]; ok {
		return db, nil
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s", ep.User, ep.Password, ep.Addr, ep.DB)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(e.maxConns)
	db.SetMaxIdleConns(e.maxConns / 2)
	db.SetConnMaxLifetime(e.connTTL)

	e.pools[ep.Name] = db
	observability.ConnectionPoolSize.WithLabelValues(ep.Name).Set(float64(e.maxConns))
	return db, nil
}

// Close closes every pooled connection.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for name, db := range e.pools {
		if err := db.Close(); err != nil {
			e.logger.Error("failed to close pool", zap.String("endpoint", name), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
