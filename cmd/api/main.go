package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/coopcarga/backend-carga/internal/audit"
	"github.com/coopcarga/backend-carga/internal/auth"
	"github.com/coopcarga/backend-carga/internal/common"
	"github.com/coopcarga/backend-carga/internal/config"
	"github.com/coopcarga/backend-carga/internal/dispatch"
	"github.com/coopcarga/backend-carga/internal/events"
	"github.com/coopcarga/backend-carga/internal/expense"
	"github.com/coopcarga/backend-carga/internal/fleet"
	"github.com/coopcarga/backend-carga/internal/health"
	"github.com/coopcarga/backend-carga/internal/lock"
	"github.com/coopcarga/backend-carga/internal/obs"
	"github.com/coopcarga/backend-carga/internal/security"
	"github.com/coopcarga/backend-carga/internal/settlement"
	"github.com/coopcarga/backend-carga/internal/shipment"
	"github.com/coopcarga/backend-carga/internal/store"
	"github.com/coopcarga/backend-carga/internal/visibility"
)

// backend is the full persistence surface of the API. Both store
// implementations satisfy it.
type backend interface {
	shipment.Store
	dispatch.Store
	settlement.Store
	fleet.Store
	expense.Store
	audit.Store
	events.Store
	health.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "carga")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var st backend
	if cfg.DatabaseURL != "" {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse database config")
		}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "carga-api"
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("ping database")
		}
		st = store.NewPostgres(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store")
		st = store.NewMemory()
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	} else {
		logger.Warn().Msg("REDIS_URL not set, idempotency keys disabled")
	}

	validate := validator.New()
	bus := &events.Bus{Store: st, Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}}}
	auditSvc := audit.Service{Store: st, Logger: logger, Enabled: cfg.AuditEnabled}

	fleetSvc := &fleet.Service{Store: st}
	shipmentSvc := &shipment.Service{Store: st, Vehicles: fleetSvc, Rates: cfg.Rates, Events: bus}
	dispatchSvc := &dispatch.Service{Store: st, Vehicles: fleetSvc, Events: bus}
	settlementSvc := &settlement.Service{Store: st, Vehicles: fleetSvc, Rates: cfg.Rates, Events: bus}
	if redisClient != nil {
		settlementSvc.Lock = lock.Locker{Client: redisClient}
	}
	expenseSvc := &expense.Service{Store: st}

	visibleShipments := func(r *http.Request, actor common.Actor, shipments []shipment.Shipment) ([]shipment.Shipment, error) {
		manifests, err := dispatchSvc.List(r.Context())
		if err != nil {
			return nil, err
		}
		return visibility.Shipments(actor, shipments, manifests), nil
	}

	shipmentHandler := shipment.NewHandler(shipment.HandlerConfig{
		Service:  shipmentSvc,
		Validate: validate,
		Audit:    &auditSvc,
		Filter:   visibleShipments,
	})
	dispatchHandler := dispatch.NewHandler(dispatch.HandlerConfig{
		Service:  dispatchSvc,
		Validate: validate,
		Audit:    &auditSvc,
		Filter: func(r *http.Request, actor common.Actor, manifests []dispatch.Manifest) ([]dispatch.Manifest, error) {
			return visibility.Manifests(actor, manifests), nil
		},
	})
	settlementHandler := settlement.NewHandler(settlement.HandlerConfig{
		Service:  settlementSvc,
		Validate: validate,
		Audit:    &auditSvc,
		Filter: func(r *http.Request, actor common.Actor, settlements []settlement.Settlement) ([]settlement.Settlement, error) {
			all, err := shipmentSvc.List(r.Context())
			if err != nil {
				return nil, err
			}
			visible, err := visibleShipments(r, actor, all)
			if err != nil {
				return nil, err
			}
			return visibility.Settlements(actor, settlements, visible), nil
		},
	})
	fleetHandler := fleet.NewHandler(fleet.HandlerConfig{Service: fleetSvc, Validate: validate})
	expenseHandler := expense.NewHandler(expense.HandlerConfig{
		Service:  expenseSvc,
		Validate: validate,
		Filter: func(r *http.Request, actor common.Actor, expenses []expense.Expense) ([]expense.Expense, error) {
			return visibility.Expenses(actor, expenses), nil
		},
	})
	auditHandler := audit.Handler{Service: auditSvc}

	authService, err := auth.NewService(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth")
	}
	authMiddleware := auth.Middleware{Service: authService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse rate limit")
	}
	var limiterStore limiter.Store
	if redisClient != nil {
		limiterStore, err = limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "carga:ratelimit"})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limiter store")
		}
	} else {
		limiterStore = memorystore.NewStore()
	}
	rateLimit := mhttp.NewMiddleware(limiter.New(limiterStore, rate))

	buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, buckets, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true, EnableHSTS: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{Store: st, Redis: redisClient}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(rateLimit.Handler)
		v.Use(authMiddleware.RequireAuth)

		v.Route("/shipments", func(s chi.Router) {
			s.Get("/", shipmentHandler.List)
			s.Post("/", shipmentHandler.Create)
			s.Route("/{id}", func(child chi.Router) {
				child.Get("/", shipmentHandler.Get)
				child.Put("/guide", shipmentHandler.UpdateGuide)
				child.Patch("/status", shipmentHandler.UpdateStatuses)
				child.Post("/vehicle", shipmentHandler.AssignVehicle)
				child.With(auth.RequireCapability(common.CapVoidShipments)).Post("/void", shipmentHandler.Void)
			})
		})

		v.Get("/inventory", shipmentHandler.Inventory)

		v.Route("/manifests", func(m chi.Router) {
			m.Get("/", dispatchHandler.List)
			m.With(auth.RequireCapability(common.CapCreateDispatch), idem.Middleware).Post("/", dispatchHandler.Create)
			m.Route("/{id}", func(child chi.Router) {
				child.Get("/", dispatchHandler.Get)
				child.With(auth.RequireCapability(common.CapReceiveDispatch), idem.Middleware).Post("/receive", dispatchHandler.Receive)
				child.With(auth.RequireCapability(common.CapVoidDispatch)).Post("/void", dispatchHandler.Void)
			})
		})

		v.Route("/settlements", func(s chi.Router) {
			s.Get("/", settlementHandler.List)
			s.Post("/preview", settlementHandler.Preview)
			s.With(auth.RequireCapability(common.CapCreateSettlement), idem.Middleware).Post("/", settlementHandler.Create)
			s.Get("/{id}", settlementHandler.Get)
		})

		v.Route("/vehicles", func(veh chi.Router) {
			veh.Get("/", fleetHandler.ListVehicles)
			veh.Post("/", fleetHandler.CreateVehicle)
			veh.Route("/{id}", func(child chi.Router) {
				child.Get("/", fleetHandler.GetVehicle)
				child.Put("/", fleetHandler.UpdateVehicle)
				child.Get("/load", shipmentHandler.VehicleLoad)
			})
		})

		v.Route("/associates", func(a chi.Router) {
			a.Get("/", fleetHandler.ListAssociates)
			a.Post("/", fleetHandler.CreateAssociate)
		})

		v.Route("/expenses", func(e chi.Router) {
			e.Get("/", expenseHandler.List)
			e.Post("/", expenseHandler.Create)
		})

		v.Get("/audit", auditHandler.List)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
