package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/apim-console/pkg/api"
	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/config"
	"github.com/platinummonkey/apim-console/pkg/httputil"
	"github.com/platinummonkey/apim-console/pkg/middleware"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

var (
	bootstrapAdmin = flag.String("bootstrap-admin", "", "Grant MANAGEMENT:ADMIN on the default environment to this subject at startup")
	migrateOnly    = flag.Bool("migrate-only", false, "Run migrations and role seeding, then exit")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("Console stopped with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Membership)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := rbac.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	store := rbac.NewSQLStore(db)
	if err := seedRoles(ctx, store, cfg.Membership.RolesFile, logger); err != nil {
		return err
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	redisClient, resolver, err := newResolver(cfg.Membership, store, logger, metrics)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	if *bootstrapAdmin != "" {
		if err := grantBootstrapAdmin(ctx, store, resolver, *bootstrapAdmin, logger); err != nil {
			return err
		}
	}

	if *migrateOnly {
		logger.Info("Migrations complete")
		return nil
	}

	verifier, err := newVerifier(ctx, cfg.Security)
	if err != nil {
		return err
	}

	authn := middleware.NewAuthMiddleware(
		auth.NewCredentialExtractor(cfg.Security.HeaderName, cfg.Security.CookieName, cfg.Security.Scheme, logger),
		verifier,
		resolver,
		auth.NewCookieGenerator(cfg.Security.CookieName, cfg.Security.CookiePath, cfg.Security.CookieDomain, cfg.Security.CookieSecure),
		logger,
		metrics,
	)
	checker := rbac.NewPermissionChecker(rbac.NewStoreEvaluator(store, logger), logger, metrics)

	var cacheClient redis.UniversalClient
	if redisClient != nil {
		cacheClient = redisClient
	}
	health := observability.NewHealthChecker(db, cacheClient, cfg.Observability.OTelServiceVersion)
	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = observability.MetricsHandler(registry)
	}

	server := api.NewServer(api.NewResource(checker), authn.Handler, health, metricsHandler,
		api.WithRoleDefinitions(store))

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(cfg.Server.AllowedOrigins))
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	handler := otelhttp.NewHandler(httputil.Chain(middlewares...)(server), "apim-console")

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:           opsRouter(health, metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(opsServer.Shutdown)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	if metrics != nil {
		go reportDBStats(statsCtx, db, metrics)
	}

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{httpServer, opsServer} {
		go func(srv *http.Server) {
			logger.WithField("addr", srv.Addr).Info("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("server %s failed: %w", srv.Addr, err)
			}
		}(srv)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serveErr; err != nil {
			logger.WithError(err).Error("Server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(waitCtx)
}

func openDatabase(ctx context.Context, cfg config.MembershipConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func seedRoles(ctx context.Context, store *rbac.SQLStore, path string, logger *observability.Logger) error {
	defs := rbac.DefaultRoleDefinitions()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open roles file: %w", err)
		}
		defer f.Close()

		defs, err = rbac.LoadRoleDefinitions(f)
		if err != nil {
			return fmt.Errorf("failed to load roles file %s: %w", path, err)
		}
	}

	if err := rbac.SeedRoleDefinitions(ctx, store, defs); err != nil {
		return err
	}
	logger.WithField("roles", len(defs)).Info("Role definitions seeded")
	return nil
}

// grantBootstrapAdmin makes subject a management admin on the default
// environment and drops any roles a shared cache still holds for it.
func grantBootstrapAdmin(ctx context.Context, store *rbac.SQLStore, resolver rbac.Resolver, subject string, logger *observability.Logger) error {
	admin := rbac.Role{Scope: rbac.ScopeManagement, Name: rbac.RoleAdmin}
	if err := store.AddMembership(ctx, subject, rbac.ReferenceManagement, rbac.DefaultReferenceID, admin); err != nil {
		return fmt.Errorf("failed to grant bootstrap admin: %w", err)
	}
	if err := rbac.InvalidateRoles(ctx, resolver, subject); err != nil {
		logger.WithError(err).Warn("Failed to invalidate cached roles of bootstrap admin")
	}
	logger.WithField("subject", subject).Info("Granted MANAGEMENT:ADMIN")
	return nil
}

func newVerifier(ctx context.Context, cfg config.SecurityConfig) (auth.TokenVerifier, error) {
	switch cfg.Type {
	case config.SecurityTypeOIDC:
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		v.SetScheme(cfg.Scheme)
		return v, nil
	default:
		opts := []auth.JWTVerifierOption{auth.WithScheme(cfg.Scheme), auth.WithLeeway(cfg.JWTLeeway)}
		if cfg.JWTIssuer != "" {
			opts = append(opts, auth.WithIssuer(cfg.JWTIssuer))
		}
		return auth.NewJWTVerifier(cfg.JWTSecret, opts...), nil
	}
}

// newResolver stacks the optional caches over the store resolver. Redis takes
// precedence over the in-process cache when both are configured.
func newResolver(cfg config.MembershipConfig, store rbac.MembershipStore, logger *observability.Logger, metrics *observability.Metrics) (*redis.Client, rbac.Resolver, error) {
	base := rbac.NewRoleResolver(store, metrics)
	if cfg.RoleCacheTTL <= 0 {
		return nil, base, nil
	}

	if cfg.RedisURL != "" {
		client, err := rbac.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return client, rbac.NewRedisRoleCache(base, client, cfg.RoleCacheTTL, logger, metrics), nil
	}

	return nil, rbac.NewCachingResolver(base, cfg.RoleCacheSize, cfg.RoleCacheTTL, metrics), nil
}

func opsRouter(health *observability.HealthChecker, metrics http.Handler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/health/live", health.Liveness).Methods("GET")
	router.HandleFunc("/health/ready", health.Readiness).Methods("GET")
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}
	return router
}

func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}
