// Package health periodically pings every configured backend endpoint
// and node group member, publishing the last-observed reachability for
// the admin API's /api/v1/metrics/endpoint route.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/pkg/models"
	"github.com/shardkit/proxy/pkg/observability"
	"github.com/shardkit/proxy/pkg/sharding"
)

// Controller monitors endpoint reachability.
type Controller struct {
	topology      *sharding.Topology
	logger        *zap.Logger
	status        map[string]*models.EndpointHealth
	mu            sync.RWMutex
	checkInterval time.Duration
}

// NewController creates a new health controller over topology. The
// controller keeps the *Topology it is given and checks that value's
// endpoints on every tick; a Topology built later and stored elsewhere
// is not seen by it.
func NewController(topology *sharding.Topology, logger *zap.Logger, checkInterval time.Duration) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}
	return &Controller{
		topology:      topology,
		logger:        logger,
		status:        make(map[string]*models.EndpointHealth),
		checkInterval: checkInterval,
	}
}

// Start runs the health-check loop until ctx is canceled.
func (c *Controller) Start(ctx context.Context) {
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()

	c.checkAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAll(ctx)
		}
	}
}

func (c *Controller) checkAll(ctx context.Context) {
	if c.topology == nil {
		return
	}
	for _, ep := range c.topology.Endpoints {
		c.checkEndpoint(ctx, ep)
	}
}

func (c *Controller) checkEndpoint(ctx context.Context, ep *sharding.Endpoint) {
	start := time.Now()
	up, err := ping(ctx, ep)
	latency := time.Since(start)

	health := &models.EndpointHealth{
		Endpoint:  ep.Name,
		Up:        up,
		LatencyMs: float64(latency.Nanoseconds()) / 1e6,
		LastCheck: time.Now(),
	}
	if err != nil {
		health.Err = err.Error()
		c.logger.Warn("endpoint health check failed", zap.String("endpoint", ep.Name), zap.Error(err))
	}

	c.mu.Lock()
	c.status[ep.Name] = health
	c.mu.Unlock()

	if up {
		observability.EndpointUp.WithLabelValues(ep.Name).Set(1)
	} else {
		observability.EndpointUp.WithLabelValues(ep.Name).Set(0)
	}
	observability.EndpointLatency.WithLabelValues(ep.Name).Set(health.LatencyMs)
}

func ping(ctx context.Context, ep *sharding.Endpoint) (bool, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s", ep.User, ep.Password, ep.Addr, ep.DB)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return false, err
	}
	defer db.Close()

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(cctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetHealth returns the last observed health for one endpoint.
func (c *Controller) GetHealth(endpoint string) (*models.EndpointHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	health, exists := c.status[endpoint]
	if !exists {
		return nil, fmt.Errorf("health status not found for endpoint %s", endpoint)
	}
	return health, nil
}

// GetAllHealth returns the last observed health for every endpoint
// checked so far.
func (c *Controller) GetAllHealth() map[string]*models.EndpointHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*models.EndpointHealth, len(c.status))
	for k, v := range c.status {
		result[k] = v
	}
	return result
}
