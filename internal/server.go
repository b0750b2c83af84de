package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/lunaugust/plantracker/internal/auth"
	"github.com/lunaugust/plantracker/internal/config"
	"github.com/lunaugust/plantracker/internal/db"
	"github.com/lunaugust/plantracker/internal/docstore"
	"github.com/lunaugust/plantracker/internal/kvcache"
	"github.com/lunaugust/plantracker/internal/middleware"
	"github.com/lunaugust/plantracker/internal/misc"
	"github.com/lunaugust/plantracker/internal/settings"
	"github.com/lunaugust/plantracker/internal/telemetry/metrics"
	"github.com/lunaugust/plantracker/internal/telemetry/tracing"
	"github.com/lunaugust/plantracker/internal/training/generator"
	"github.com/lunaugust/plantracker/internal/training/multiplan"
	"github.com/lunaugust/plantracker/internal/training/store"

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

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config  *config.Config
	dbPool  *pgxpool.Pool
	docs    *docstore.Store
	cache   *kvcache.Store
	repo    *store.Repository
	plans   *multiplan.Registry
	planGen *generator.Service
	prefs   *settings.Service

	redisClient  *redis.Client
	loginChecker *auth.LoginChecker
	authService  *auth.Service

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config        *config.Config
	VersionInfo   string
	RedisPassword string
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.Config.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	docs := docstore.NewStore(dbPool)

	authService := auth.NewService(docs, auth.DefaultTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	otelShutdown, err := tracing.Setup(ctx, params.Config.TracingEnabled, "plantracker-backend")
	if err != nil {
		return nil, err
	}

	cache := kvcache.NewStore(rdb)
	repo := store.NewRepository(docs, cache, metricsManager)

	planGen := generator.NewService(nil, metricsManager)
	if params.Config.AIPlannerBaseURL != "" {
		aiClient := generator.NewAIClient(
			params.Config.AIPlannerBaseURL,
			time.Duration(params.Config.AIPlannerTimeoutSecs)*time.Second,
		)
		planGen = generator.NewService(aiClient, metricsManager)
	}

	s := &Server{
		config:      params.Config,
		dbPool:      dbPool,
		docs:        docs,
		cache:       cache,
		repo:        repo,
		plans:       multiplan.NewRegistry(repo, metricsManager),
		planGen:     planGen,
		prefs:       settings.NewService(cache, params.Config.DefaultPlanLanguage),
		versionInfo: params.VersionInfo,

		redisClient:  rdb,
		authService:  authService,
		loginChecker: auth.NewLoginChecker(auth.DefaultTTL, rdb),

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}

	return s, nil
}

func (s *Server) routerSetup() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	miscHandler := misc.NewHandler(s.versionInfo, s.authService)
	miscHandler.SetupRoutes(r, reqRateLimiter, s.config.LoginRateLimitAllowedPerMin, s.metricsManager)

	logsHandler := store.NewHandler(s.repo, s.metricsManager)
	r.HandleFunc("/logs", logsHandler.HandleGetLogs).Methods("GET", "OPTIONS").Name("get-logs")
	r.HandleFunc("/logs", logsHandler.HandleSaveLogs).Methods("PUT", "OPTIONS").Name("save-logs")
	r.HandleFunc("/logs/{exerciseId}", logsHandler.HandleAddLogEntry).Methods("POST", "OPTIONS").Name("add-log-entry")
	r.HandleFunc("/logs/{exerciseId}/{index}", logsHandler.HandleDeleteLogEntry).Methods("DELETE", "OPTIONS").Name("delete-log-entry")
	r.HandleFunc("/logs/{exerciseId}/stats", logsHandler.HandleExerciseStats).Methods("GET", "OPTIONS").Name("exercise-stats")
	r.HandleFunc("/plan", logsHandler.HandleGetLegacyPlan).Methods("GET", "OPTIONS").Name("get-plan")
	r.HandleFunc("/plan", logsHandler.HandleSaveLegacyPlan).Methods("PUT", "OPTIONS").Name("save-plan")

	plansHandler := multiplan.NewHandler(s.plans, s.planGen, s.prefs)
	r.HandleFunc("/plans", plansHandler.HandleState).Methods("GET", "OPTIONS").Name("plans-state")
	r.HandleFunc("/plans", plansHandler.HandleCreate).Methods("POST", "OPTIONS").Name("create-plan")
	r.HandleFunc("/plans/active", plansHandler.HandleGetActive).Methods("GET", "OPTIONS").Name("get-active-plan")
	r.HandleFunc("/plans/active", plansHandler.HandleUpdateActive).Methods("PUT", "OPTIONS").Name("update-active-plan")
	r.HandleFunc("/plans/active/share", plansHandler.HandleShareActive).Methods("POST", "OPTIONS").Name("share-active-plan")
	r.HandleFunc("/plans/generate", plansHandler.HandleGenerate).Methods("POST", "OPTIONS").Name("generate-plan")
	r.HandleFunc("/plans/{id}/activate", plansHandler.HandleActivate).Methods("POST", "OPTIONS").Name("activate-plan")
	r.HandleFunc("/plans/{id}/name", plansHandler.HandleRename).Methods("PUT", "OPTIONS").Name("rename-plan")
	r.HandleFunc("/plans/{id}/copy", plansHandler.HandleCopy).Methods("POST", "OPTIONS").Name("copy-plan")
	r.HandleFunc("/plans/{id}", plansHandler.HandleRemove).Methods("DELETE", "OPTIONS").Name("remove-plan")

	settingsHandler := settings.NewHandler(s.prefs)
	r.HandleFunc("/settings/language", settingsHandler.HandleGetLanguage).Methods("GET", "OPTIONS").Name("get-language")
	r.HandleFunc("/settings/language", settingsHandler.HandleSetLanguage).Methods("PUT", "OPTIONS").Name("set-language")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.loginChecker)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r, nil
}

func (s *Server) Serve(ctx context.Context, host string, port int) {
	router, err := s.routerSetup()
	if err != nil {
		log.Fatalf("failed to setup router: %s", err)
	}

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
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

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
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
