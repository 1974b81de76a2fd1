package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-segar/internal/config"
	"github.com/noah-isme/backend-segar/internal/dateutil"
	"github.com/noah-isme/backend-segar/internal/health"
	"github.com/noah-isme/backend-segar/internal/inventory"
	"github.com/noah-isme/backend-segar/internal/obs"
	"github.com/noah-isme/backend-segar/internal/pricing"
	"github.com/noah-isme/backend-segar/internal/promo"
	"github.com/noah-isme/backend-segar/internal/reconcile"
	"github.com/noah-isme/backend-segar/internal/resilience"
	"github.com/noah-isme/backend-segar/internal/session"
	"github.com/noah-isme/backend-segar/internal/slot"
	"github.com/noah-isme/backend-segar/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "segar")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	cal := dateutil.NewCalendar(cfg.ReferenceTimezone, nil)

	slotClient := upstream.SlotClient{Client: collaborator(cfg, logger, "slot-api", cfg.SlotAPIBaseURL)}
	restrictionClient := upstream.RestrictionClient{Client: collaborator(cfg, logger, "restriction-api", cfg.RestrictionBaseURL)}
	inventoryClient := upstream.InventoryClient{Client: collaborator(cfg, logger, "inventory-api", cfg.InventoryBaseURL)}
	promoClient := upstream.PromoClient{Client: collaborator(cfg, logger, "promo-api", cfg.PromoBaseURL)}

	store := &session.Store{R: redisClient, TTL: cfg.SessionTTL}

	catalog := &slot.Catalog{Source: slotClient, Log: logger}
	restrictions := &slot.Restrictions{Source: restrictionClient, Log: logger}
	resolver := &slot.Resolver{
		Catalog:      catalog,
		Restrictions: restrictions,
		Cal:          cal,
		HorizonDays:  cfg.SlotHorizonDays,
		Log:          logger,
	}

	inventorySource := &inventory.CachedSource{
		Inner: inventoryClient,
		R:     redisClient,
		TTL:   cfg.SnapshotCacheTTL,
		Log:   logger,
	}
	reconciler := &reconcile.Reconciler{Inventory: inventorySource, Resolver: resolver, Log: logger}
	promoSvc := &promo.Service{Backend: promoClient, Log: logger}

	sessionHandler := &session.Handler{Store: store, Log: logger}
	slotHandler := &slot.Handler{Resolver: resolver, Store: store, Log: logger}
	reconcileHandler := &reconcile.Handler{Reconciler: reconciler, Store: store, Log: logger}
	pricingHandler := &pricing.Handler{Store: store, Cfg: cfg, Log: logger}
	promoHandler := &promo.Handler{Service: promoSvc, Store: store, Log: logger}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimiter(cfg, redisClient, logger))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker: health.Probes{
			Redis: redisClient,
			SlotProbe: func(ctx context.Context) error {
				_, err := slotClient.SlotAvailability(ctx, cal.Today())
				return err
			},
		},
		RedisTimeout:    envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		UpstreamTimeout: envDurationMillis("HEALTH_READY_UPSTREAM_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/slots", slotHandler.List)

		v.Route("/sessions", func(s chi.Router) {
			s.Post("/", sessionHandler.Create)
			s.Route("/{id}", func(one chi.Router) {
				one.Get("/", sessionHandler.Get)

				one.Post("/items", sessionHandler.AddItem)
				one.Patch("/items/{cartKey}", sessionHandler.UpdateItem)
				one.Delete("/items/{cartKey}", sessionHandler.RemoveItem)

				one.Post("/slots/eligible", slotHandler.Eligible)
				one.Post("/slots/next", slotHandler.Next)
				one.Post("/slots/select", slotHandler.Select)
				one.Delete("/slots/select", slotHandler.ClearSelection)

				one.Post("/reconcile", reconcileHandler.Reconcile)
				one.Post("/price", pricingHandler.Price)

				one.Post("/promo", promoHandler.Apply)
				one.Delete("/promo", promoHandler.Remove)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer drainCancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

// collaborator builds the resilient client for one upstream dependency. Each
// collaborator gets its own breaker so an outage in one API cannot trip the
// others.
func collaborator(cfg *config.Config, logger zerolog.Logger, target, baseURL string) upstream.Client {
	breaker := resilience.NewBreaker(
		envInt("BREAKER_FAILURE_THRESHOLD", 5),
		envDurationMillis("BREAKER_OPEN_MS", 30000),
	).WithTarget(target).WithLogger(logger)
	return upstream.Client{
		BaseURL: baseURL,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{},
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: cfg.UpstreamRetries + 1,
			Jitter:      0.2,
			Timeout:     cfg.UpstreamTimeout,
		},
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) func(http.Handler) http.Handler {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Warn().Err(err).Str("value", cfg.RateLimit).Msg("invalid rate limit format, using 120-M")
		rate = limiter.Rate{Period: time.Minute, Limit: 120}
	}
	store, err := redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
	if err != nil {
		logger.Warn().Err(err).Msg("redis rate limit store unavailable, using in-memory store")
		store = memorystore.NewStore()
	}
	return limitermw.NewMiddleware(limiter.New(store, rate)).Handler
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
