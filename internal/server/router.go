package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/shardkit/proxy/internal/api"
	"github.com/shardkit/proxy/internal/middleware"
	"github.com/shardkit/proxy/pkg/config"
	"github.com/shardkit/proxy/pkg/health"
	"github.com/shardkit/proxy/pkg/ruleset"
	"github.com/shardkit/proxy/pkg/security"
	"github.com/shardkit/proxy/pkg/sharding"
)

// rewriteAPIDoc is a hand-maintained OpenAPI 2.0 document describing
// the admin API's surface, served at /swagger/doc.json for the
// http-swagger UI. It is not generated by swag init; wiring a
// generated docs package is out of scope without running that tool.
const rewriteAPIDoc = `{
  "swagger": "2.0",
  "info": {"title": "shardkit proxy admin API", "version": "1.0"},
  "basePath": "/api/v1",
  "paths": {
    "/rewrite": {"post": {"summary": "Rewrite a SQL statement against the current rule set"}},
    "/rules": {"get": {"summary": "List sharding rules"}},
    "/rules/{table}": {
      "put": {"summary": "Create or update a rule"},
      "delete": {"summary": "Delete a rule"}
    },
    "/endpoints": {"get": {"summary": "List backend endpoints"}},
    "/endpoints/{name}": {"put": {"summary": "Create or update an endpoint"}},
    "/node-groups": {"get": {"summary": "List node groups"}},
    "/node-groups/{name}": {"put": {"summary": "Create or update a node group"}},
    "/snapshot": {"get": {"summary": "Return the full current rule set snapshot"}},
    "/auth/login": {"post": {"summary": "Authenticate and receive a JWT"}},
    "/metrics/endpoint": {"get": {"summary": "List last-observed endpoint health"}}
  }
}`

// The /healthz, /healthz/live, /healthz/ready and /healthz/startup
// probe endpoints sit outside basePath and are intentionally left off
// the document above, which only describes the /api/v1 surface.

// AdminServer is the admin/control-plane HTTP server: rule and
// endpoint CRUD, ad hoc rewrite, auth, and health/metrics surfaces.
type AdminServer struct {
	server *http.Server
	logger *zap.Logger
}

// NewAdminServer wires every admin API handler onto a gorilla/mux
// router and builds the underlying http.Server. engine is a
// hot-swappable pointer the caller updates whenever the ruleset
// store's watch loop delivers a new snapshot.
func NewAdminServer(
	cfg *config.Config,
	store ruleset.Store,
	engine *atomic.Pointer[sharding.Engine],
	healthCtl *health.Controller,
	probeMgr *health.ProbeManager,
	authManager *security.AuthManager,
	logger *zap.Logger,
) (*AdminServer, error) {
	authHandler, err := api.NewAuthHandler(authManager, logger)
	if err != nil {
		return nil, fmt.Errorf("build auth handler: %w", err)
	}
	rulesHandler := api.NewRulesHandler(store, logger)
	rewriteHandler := api.NewRewriteHandler(engine, logger)
	metricsHandler := api.NewMetricsHandler(healthCtl, logger)

	muxRouter := mux.NewRouter()

	// CORS must run first so every response, including errors, carries
	// the right headers.
	muxRouter.Use(middleware.CORS)
	muxRouter.Use(middleware.Recovery(logger))
	muxRouter.Use(middleware.Logging(logger))
	muxRouter.Use(middleware.AuthMiddleware(authManager))

	api.SetupRewriteRoutes(muxRouter, rewriteHandler)
	api.SetupRulesRoutes(muxRouter, rulesHandler)
	api.SetupAuthRoutes(muxRouter, authHandler)
	metricsHandler.RegisterRoutes(muxRouter)

	muxRouter.Handle("/metrics", promhttp.Handler()).Methods("GET", "OPTIONS")

	muxRouter.HandleFunc("/healthz/live", probeMgr.LivenessHandler()).Methods("GET", "OPTIONS")
	muxRouter.HandleFunc("/healthz/ready", probeMgr.ReadinessHandler()).Methods("GET", "OPTIONS")
	muxRouter.HandleFunc("/healthz/startup", probeMgr.StartupHandler()).Methods("GET", "OPTIONS")
	muxRouter.HandleFunc("/healthz", probeMgr.HealthHandler()).Methods("GET", "OPTIONS")

	muxRouter.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(rewriteAPIDoc))
	}).Methods("GET")
	muxRouter.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s:%d/swagger/doc.json", cfg.Server.Host, cfg.Server.Port)),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      muxRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &AdminServer{server: srv, logger: logger}, nil
}

// Start runs the HTTP server until it is shut down.
func (s *AdminServer) Start() error {
	s.logger.Info("starting admin server", zap.String("address", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	return s.server.Shutdown(ctx)
}

// StartAsync starts the server in a goroutine, logging a fatal error
// if it exits unexpectedly.
func (s *AdminServer) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Fatal("admin server failed", zap.Error(err))
		}
	}()
}
