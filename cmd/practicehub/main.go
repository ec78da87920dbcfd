package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/practicehub/practicehub/pkg/analytics"
	"github.com/practicehub/practicehub/pkg/audit"
	"github.com/practicehub/practicehub/pkg/config"
	"github.com/practicehub/practicehub/pkg/httputil"
	"github.com/practicehub/practicehub/pkg/maintenance"
	"github.com/practicehub/practicehub/pkg/middleware"
	"github.com/practicehub/practicehub/pkg/observability"
	"github.com/practicehub/practicehub/pkg/orgs"
	"github.com/practicehub/practicehub/pkg/rbac"
	"github.com/practicehub/practicehub/pkg/storage/postgres"
	"github.com/practicehub/practicehub/pkg/workitems"
)

// maxRequestBody caps request bodies on the API surface.
const maxRequestBody = 1 << 20

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx := context.Background()

	var providers *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		providers, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize OpenTelemetry")
			os.Exit(1)
		}
	}

	connManager, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.PrimaryURL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	defer connManager.Close()

	if err := rbac.RunMigrations(ctx, connManager.Primary()); err != nil {
		logger.WithError(err).Error("Migrations failed")
		os.Exit(1)
	}

	rbacStore := rbac.NewStore(connManager.Primary())
	if err := rbac.InitializeBuiltInRoles(ctx, rbacStore); err != nil {
		logger.WithError(err).Error("Failed to seed built-in roles")
		os.Exit(1)
	}

	auditLog, err := audit.NewDBLogger(connManager.Primary())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit logger")
		os.Exit(1)
	}

	orgStore := orgs.NewStore(connManager.Primary())
	hierarchyCache := orgs.NewHierarchyCache(orgStore.ListOrganizations, logger, func(w orgs.Warning) {
		event := audit.NewEvent(context.Background(), audit.EventTypeHierarchyWarning, audit.DecisionError)
		event.OrganizationID = w.OrganizationID
		event.Message = w.Detail
		event.Metadata = map[string]interface{}{"kind": string(w.Kind)}
		if logErr := auditLog.Log(context.Background(), event); logErr != nil {
			logger.WithError(logErr).Warn("Failed to record hierarchy warning")
		}
	})
	if err := hierarchyCache.Refresh(ctx); err != nil {
		logger.WithError(err).Error("Failed to load organization hierarchy")
		os.Exit(1)
	}

	var redisClient *redis.Client
	var mapper analytics.Mapper = analytics.NewPostgresMapper(connManager.Replica())
	if cfg.Redis.Enabled {
		redisClient, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		mapper = analytics.NewCachedMapper(mapper, redisClient, cfg.Redis.MappingTTL, metrics)
	}

	contextBuilder := rbac.NewContextBuilder(rbacStore, logger, metrics)
	authz := rbac.NewMiddleware(contextBuilder, hierarchyCache, logger, metrics)
	resolver := analytics.NewResolver(mapper, logger, metrics)
	workItems := workitems.NewService(workitems.NewStore(connManager.Primary()), auditLog, logger)

	// Rate limiting keys on the authenticated user, so it sits between
	// identity extraction and the heavier user context build.
	var rateLimit mux.MiddlewareFunc
	if redisClient != nil {
		rateLimit = middleware.NewDistributedRateLimiter(redisClient, nil, logger).Handler
	} else {
		limiter := middleware.NewRateLimiter(nil)
		limiter.StartCleanup(ctx)
		rateLimit = limiter.Handler
	}

	router := mux.NewRouter()
	router.Use(httputil.Recovery(logger), authz.RequestID, authz.Identity, rateLimit, authz.UserContext, httputil.MaxBytes(maxRequestBody))

	rbac.NewHandlers(rbacStore, authz, auditLog).RegisterRoutes(router)
	workitems.NewHandlers(workItems, authz).RegisterRoutes(router)
	analytics.NewHandlers(resolver, authz).RegisterRoutes(router)

	// Organization administration and the audit trail are gated at the
	// route level; the org handlers additionally resolve each caller's
	// administration reach so organization-scoped admins stay inside
	// their subtree.
	orgRoutes := router.NewRoute().Subrouter()
	orgRoutes.Use(authz.RequireAnyPermission(
		"organizations:manage:all",
		"organizations:manage:organization",
	))
	orgs.NewHandlers(orgStore, hierarchyCache, auditLog, authz.OrganizationAdminAccess).RegisterRoutes(orgRoutes)

	auditRoutes := router.NewRoute().Subrouter()
	auditRoutes.Use(authz.RequirePermission("security:read:all"))
	audit.NewHandlers(auditLog).RegisterRoutes(auditRoutes)

	var apiHandler http.Handler = router
	if cfg.Observability.OTelEnabled {
		apiHandler = otelhttp.NewHandler(router, "practicehub")
	}

	healthChecker := observability.NewHealthChecker(connManager.Primary(), redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	var runner *maintenance.Runner
	if cfg.Maintenance.Enabled {
		runner = maintenance.NewRunner(maintenance.Config{
			HierarchyRefreshSchedule: cfg.Maintenance.HierarchyRefreshSchedule,
			AssignmentPruneSchedule:  cfg.Maintenance.AssignmentPruneSchedule,
			AuditPurgeSchedule:       cfg.Maintenance.AuditPurgeSchedule,
			AssignmentGrace:          cfg.Maintenance.AssignmentGrace,
			AuditRetention:           cfg.Maintenance.AuditRetention,
		}, rbacStore, hierarchyCache, auditLog, logrus.New())
		if err := runner.Start(); err != nil {
			logger.WithError(err).Error("Failed to start maintenance runner")
			os.Exit(1)
		}
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterServer(apiServer)
	shutdown.RegisterServer(healthServer)
	if runner != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			runner.Stop()
			return nil
		})
	}
	if providers != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(shutdown.WaitForShutdown)

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}
