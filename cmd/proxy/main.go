package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/internal/server"
	"github.com/shardkit/proxy/pkg/config"
	"github.com/shardkit/proxy/pkg/health"
	"github.com/shardkit/proxy/pkg/ruleset"
	"github.com/shardkit/proxy/pkg/security"
	"github.com/shardkit/proxy/pkg/sharding"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/proxy.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	store, err := ruleset.New(ruleset.Config{
		Endpoints: cfg.RuleStore.Endpoints,
		Username:  cfg.RuleStore.Username,
		Password:  cfg.RuleStore.Password,
		Prefix:    cfg.RuleStore.Prefix,
		Timeout:   cfg.RuleStore.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to rule store", zap.Error(err))
	}

	engine := &atomic.Pointer[sharding.Engine]{}
	var topology atomic.Pointer[sharding.Topology]

	seedEngine(context.Background(), store, cfg, engine, &topology, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchCh, err := store.Watch(ctx)
	if err != nil {
		logger.Fatal("failed to start rule store watch", zap.Error(err))
	}
	go func() {
		for snap := range watchCh {
			rules, topo := ruleset.ToEngineInputs(snap, cfg.Sharding.ReadWriteSplit)
			engine.Store(sharding.NewEngine(rules, topo))
			topology.Store(topo)
			logger.Info("rule set reloaded from watch", zap.Int64("version", snap.Version))
		}
	}()

	hotReloader, err := config.NewHotReloader(logger, config.HotReloaderConfig{
		ConfigPath:    configPath,
		CheckInterval: 10 * time.Second,
	})
	if err != nil {
		logger.Fatal("failed to start config hot reloader", zap.Error(err))
	}
	hotReloader.OnReload(func(old, newCfg *config.Config) error {
		engine.Store(sharding.NewEngine(newCfg.ToRules(), newCfg.ToTopology()))
		logger.Info("engine reseeded from config file change",
			zap.Int("rule_count", len(newCfg.Rules)),
			zap.Int("endpoint_count", len(newCfg.Endpoints)),
		)
		return nil
	})
	go hotReloader.Start(ctx)
	defer hotReloader.Stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Sharding.ResyncCron, func() {
		snap, err := store.Snapshot(ctx)
		if err != nil {
			logger.Warn("periodic resync snapshot failed", zap.Error(err))
			return
		}
		rules, topo := ruleset.ToEngineInputs(snap, cfg.Sharding.ReadWriteSplit)
		engine.Store(sharding.NewEngine(rules, topo))
		topology.Store(topo)
		logger.Debug("rule set resynced on schedule", zap.Int64("version", snap.Version))
	}); err != nil {
		logger.Fatal("failed to schedule rule resync", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	healthCtl := health.NewController(topology.Load(), logger, 30*time.Second)
	go healthCtl.Start(ctx)

	probeMgr := health.NewProbeManager(logger, health.ProbeManagerConfig{CheckInterval: 15 * time.Second})
	probeMgr.RegisterProbe(health.NewRuleStoreProbe("ruleset_store", func(ctx context.Context) (bool, error) {
		_, err := store.Snapshot(ctx)
		return err == nil, err
	}), true, true, true)
	go probeMgr.Start(ctx)

	authManager := security.NewAuthManager(cfg.Security.JWTSecret)

	adminServer, err := server.NewAdminServer(cfg, store, engine, healthCtl, probeMgr, authManager, logger)
	if err != nil {
		logger.Fatal("failed to build admin server", zap.Error(err))
	}
	adminServer.StartAsync()

	logger.Info("shardkit proxy started",
		zap.String("address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.Strings("etcd_endpoints", cfg.RuleStore.Endpoints),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", zap.Error(err))
	}
}

// seedEngine builds the first Engine from whatever is already in the
// rule store, or from the config file's seed rules/endpoints instead
// when the store cannot be read or holds no rules while the config
// does, so the proxy can serve rewrite requests before its first watch
// event arrives.
func seedEngine(
	ctx context.Context,
	store ruleset.Store,
	cfg *config.Config,
	engine *atomic.Pointer[sharding.Engine],
	topology *atomic.Pointer[sharding.Topology],
	logger *zap.Logger,
) {
	snap, err := store.Snapshot(ctx)
	if err != nil || (len(snap.Rules) == 0 && len(cfg.Rules) > 0) {
		if err != nil {
			logger.Warn("failed to read rule store snapshot, seeding from config", zap.Error(err))
		}
		engine.Store(sharding.NewEngine(cfg.ToRules(), cfg.ToTopology()))
		topology.Store(cfg.ToTopology())
		return
	}
	rules, topo := ruleset.ToEngineInputs(snap, cfg.Sharding.ReadWriteSplit)
	engine.Store(sharding.NewEngine(rules, topo))
	topology.Store(topo)
}
