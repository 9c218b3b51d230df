package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/breaker"
	"github.com/2beens/planbuilder/internal/cache"
	"github.com/2beens/planbuilder/internal/clients"
	"github.com/2beens/planbuilder/internal/config"
	"github.com/2beens/planbuilder/internal/db"
	"github.com/2beens/planbuilder/internal/dedup"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/middleware"
	"github.com/2beens/planbuilder/internal/planapi"
	"github.com/2beens/planbuilder/internal/planner"
	"github.com/2beens/planbuilder/internal/retry"
	"github.com/2beens/planbuilder/internal/rowstore"
	"github.com/2beens/planbuilder/internal/telemetry/metrics"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"
	"github.com/2beens/planbuilder/internal/templates"
	"github.com/2beens/planbuilder/pkg"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

const (
	defaultClientCacheSizeMB = 16
	defaultClientCacheTTL    = 5 * time.Minute
	defaultRateLimitPerMin   = 600
	maxDrainBytes            = 64 << 10
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	rateLimiter middleware.RequestRateLimiter

	planManager *planner.Manager
	templates   *templates.Repo
	clients     *clients.Repo

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	DBPassword              string
	HoneycombTracingEnabled bool
}

// serverDeps are the outside systems the server talks to.
type serverDeps struct {
	store          rowstore.Store
	flags          breaker.FlagStore
	rateLimiter    middleware.RequestRateLimiter
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         cfg.PostgresHost,
		DBPort:         cfg.PostgresPort,
		DBName:         cfg.PostgresDBName,
		DBUser:         cfg.PostgresUser,
		DBPassword:     params.DBPassword,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	} else if cfg.EnsureSchema {
		if err := db.EnsureSchema(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": cfg.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(params.VersionInfo, pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "planbuilder", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "planbuilder", rdb)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	s := newServer(cfg, params.VersionInfo, serverDeps{
		store:          rowstore.NewPostgresStore(dbPool),
		flags:          breaker.NewRedisFlagStore(rdb, cfg.BreakerFlagTTL.Or(breaker.DefaultCooldown)),
		rateLimiter:    redis_rate.NewLimiter(rdb),
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
	})
	s.dbPool = dbPool
	s.redisClient = rdb
	s.otelShutdown = otelShutdown

	return s, nil
}

func newServer(cfg *config.Config, versionInfo string, deps serverDeps) *Server {
	metricsManager := deps.metricsManager

	group := dedup.New(dedup.WithOnDuplicate(func(key string) {
		metricsManager.CounterDedupCollapsed.WithLabelValues(dedup.OpOf(key)).Inc()
	}))

	cacheSizeMB := cfg.ClientCacheSizeMB
	if cacheSizeMB <= 0 {
		cacheSizeMB = defaultClientCacheSizeMB
	}
	retryPolicy := retry.DefaultPolicy
	if cfg.ClientLoadRetryAttempts > 0 {
		retryPolicy.MaxAttempts = cfg.ClientLoadRetryAttempts
	}
	clientsRepo := clients.NewRepo(
		deps.store,
		cache.NewTTLCache("clients", cacheSizeMB, cfg.ClientCacheTTL.Or(defaultClientCacheTTL), metricsManager),
		group,
		retryPolicy,
	)

	planGateway := gateway.New(deps.store)
	planManager := planner.NewManager(planner.NewManagerParams{
		Gateway:  planGateway,
		Resolver: approval.NewResolver(planGateway, metricsManager),
		Clients:  clientsRepo,
		Group:    group,
		Breaker: breaker.New(
			deps.flags,
			metricsManager,
			breaker.WithCooldown(
				cfg.BreakerCooldown.Or(breaker.DefaultCooldown),
				cfg.BreakerDelay.Or(breaker.DefaultDelay),
			),
		),
		Metrics: metricsManager,
		Config:  plannerConfig(cfg),
	})

	return &Server{
		config:         cfg,
		versionInfo:    versionInfo,
		rateLimiter:    deps.rateLimiter,
		planManager:    planManager,
		templates:      templates.NewRepo(deps.store),
		clients:        clientsRepo,
		metricsManager: metricsManager,
		promRegistry:   deps.promRegistry,
		otelShutdown:   func() {},
	}
}

func plannerConfig(cfg *config.Config) planner.Config {
	defaults := planner.DefaultConfig()
	return planner.Config{
		FetchTimeout:           cfg.FetchTimeout.Or(defaults.FetchTimeout),
		SaveTimeout:            cfg.SaveTimeout.Or(defaults.SaveTimeout),
		ApproveTimeout:         cfg.ApproveTimeout.Or(defaults.ApproveTimeout),
		ResolveTimeout:         cfg.ResolveTimeout.Or(defaults.ResolveTimeout),
		BreakerDelay:           cfg.BreakerDelay.Or(defaults.BreakerDelay),
		WeeklyRefreshCooldown:  cfg.WeeklyRefreshCooldown.Or(defaults.WeeklyRefreshCooldown),
		MonthlyRefreshCooldown: cfg.MonthlyRefreshCooldown.Or(defaults.MonthlyRefreshCooldown),
		RetryBackoff:           defaults.RetryBackoff,
		SessionIdleTTL:         cfg.SessionIdleTTL.Or(defaults.SessionIdleTTL),
	}
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("planbuilder-router"))

	planHandler := planapi.NewHandler(s.planManager, s.templates)
	planHandler.SetupRoutes(r)

	r.HandleFunc("/health", s.handleHealth).Methods("GET", "OPTIONS").Name("health")

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteJSONError(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path), http.StatusNotFound)
	}).Name("unknown")

	rateLimitPerMin := s.config.RateLimitAllowedPerMin
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = defaultRateLimitPerMin
	}

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(middleware.RateLimit(s.rateLimiter, s.metricsManager, "planbuilder-api", rateLimitPerMin))
	r.Use(middleware.DrainAndCloseRequest(maxDrainBytes))

	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, healthResponse{Status: "ok", Version: s.versionInfo}, http.StatusOK)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler: router,
		Addr:    ipAndPort,
		// approve may legitimately take its full timeout plus the breaker delay
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{Registry: s.promRegistry},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	// stop taking requests first, in flight saves still need the db
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	s.planManager.Shutdown()
	log.Debugln("background status checks stopped")

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
