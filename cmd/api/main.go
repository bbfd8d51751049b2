package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/app"
	"github.com/noah-isme/backend-partyshop/internal/auth"
	"github.com/noah-isme/backend-partyshop/internal/cache"
	"github.com/noah-isme/backend-partyshop/internal/catalog"
	"github.com/noah-isme/backend-partyshop/internal/checkout"
	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/config"
	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/events"
	"github.com/noah-isme/backend-partyshop/internal/grouporder"
	"github.com/noah-isme/backend-partyshop/internal/health"
	tenantguard "github.com/noah-isme/backend-partyshop/internal/http/middleware"
	"github.com/noah-isme/backend-partyshop/internal/jobs"
	"github.com/noah-isme/backend-partyshop/internal/lock"
	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/ratelimit"
	"github.com/noah-isme/backend-partyshop/internal/repo"
	"github.com/noah-isme/backend-partyshop/internal/resilience"
	"github.com/noah-isme/backend-partyshop/internal/security"
	"github.com/noah-isme/backend-partyshop/internal/session"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

const (
	serviceName    = "partyshop-api"
	settleLockTTL  = 10 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

type handlers struct {
	health     health.Handler
	catalog    *catalog.Handler
	checkout   *checkout.Handler
	vouchers   *voucher.Handler
	delivery   *delivery.Handler
	groups     *grouporder.Handler
	admin      *auth.Middleware
	idem       common.Idem
	voucherRL  ratelimit.Handler
	checkoutRL ratelimit.Handler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api exited")
	}
}

// run owns every resource it opens so deferred cleanup happens before main
// decides the exit code.
func run(cfg *config.Config, logger zerolog.Logger) error {
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := app.InitTracing(ctx, cfg, serviceName, logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	if cfg.MigrateOnStart {
		if err := repo.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := app.OpenPostgres(startCtx, cfg, serviceName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpt, err := app.AsynqRedis(cfg)
	if err != nil {
		return fmt.Errorf("configure task queue: %w", err)
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	sessions := session.NewRedisStore(redisClient, cfg.SessionTTL)
	reconciler := &delivery.Reconciler{Location: cfg.StoreTimezone, Logger: logger}
	validate := validator.New(validator.WithRequiredStructEnabled())

	vouchers := repo.Vouchers{DB: pool}
	voucherSvc := &voucher.Service{
		Store:   vouchers,
		Locker:  lock.Locker{R: redisClient, RetryBackoff: lockRetryDelay},
		LockTTL: settleLockTTL,
		Logger:  logger,
	}

	bus := &events.Bus{Store: repo.Events{DB: pool}}
	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error().Err(err).Msg("close kafka writer")
			}
		}()
		breaker := resilience.NewBreaker("kafka", 5, 0.5, 30*time.Second)
		breaker.Logger = logger
		bus.Notifiers = append(bus.Notifiers, events.GuardedNotifier{
			Next:    events.KafkaNotifier{Writer: writer, Topics: events.DefaultTopics()},
			Breaker: breaker,
			Timeout: 2 * time.Second,
		})
	}

	groupSvc := &grouporder.Service{
		Store:      repo.Orders{DB: pool},
		Cache:      cache.NewJSON(redisClient, cfg.GroupOrderCacheTTL),
		Reconciler: reconciler,
		Logger:     logger,
	}
	checkoutSvc := &checkout.Service{
		Orders:      repo.Orders{DB: pool},
		Vouchers:    voucherSvc,
		Settlements: jobs.Client{C: taskClient, Queue: cfg.SettleQueue, MaxRetry: cfg.SettleMaxRetry},
		Events:      bus,
		Groups:      groupSvc,
		Reconciler:  reconciler,
		Policy:      &cfg.Pricing,
		Logger:      logger,
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Source: repo.Products{DB: pool},
		Cache:  cache.NewJSON(redisClient, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("initialise catalog service: %w", err)
	}

	var adminMW *auth.Middleware
	if cfg.AdminEnabled() {
		admin, err := auth.NewAdmin(auth.AdminConfig{
			Secret:     cfg.AdminJWTSecret,
			Issuer:     cfg.AdminJWTIssuer,
			Audience:   cfg.AdminJWTAudience,
			ClockSkew:  30 * time.Second,
			APIKeyHash: cfg.AdminAPIKeyHash,
		})
		if err != nil {
			return fmt.Errorf("initialise admin auth: %w", err)
		}
		adminMW = &auth.Middleware{Admin: admin, Logger: logger}
	} else {
		logger.Warn().Msg("admin credentials not configured; admin routes disabled")
		adminMW = &auth.Middleware{Logger: logger}
	}

	voucherLimiter, err := ratelimit.NewFixedWindow(redisClient, "rl:voucher", cfg.RateLimitVoucherRate)
	if err != nil {
		return fmt.Errorf("configure voucher rate limit: %w", err)
	}
	onLimitError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }

	h := handlers{
		health:   health.Handler{Probes: []health.Probe{health.DBProbe(pool), health.RedisProbe(redisClient)}},
		catalog:  catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc}),
		checkout: &checkout.Handler{Svc: checkoutSvc, Sessions: sessions, Validator: validate},
		vouchers: &voucher.Handler{Svc: voucherSvc, Admin: vouchers, Validator: validate, Logger: logger},
		delivery: &delivery.Handler{Reconciler: reconciler},
		groups:   &grouporder.Handler{Svc: groupSvc, Sessions: sessions},
		admin:    adminMW,
		idem:     common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL},
		voucherRL: ratelimit.Handler{
			Policy:  voucherLimiter,
			Key:     ratelimit.ClientKey("voucher"),
			OnError: onLimitError,
		},
		checkoutRL: ratelimit.Handler{
			Policy: ratelimit.SlidingWindow{
				Client: redisClient,
				Prefix: "rl:checkout",
				Window: cfg.RateLimitCheckoutWindow,
				Max:    cfg.RateLimitCheckoutMax,
			},
			Key:     ratelimit.ClientKey("checkout"),
			OnError: onLimitError,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, logger, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Config, logger zerolog.Logger, h handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	if cfg.OTELExporter != "none" {
		r.Use(obs.TracingMiddleware)
	}
	httpMetrics := obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeader, common.IdempotencyHeader, auth.APIKeyHeader},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(tenant.NewResolver(cfg.TenantHeader, cfg.TenantRootDomain, cfg.DefaultTenant).Middleware)

	r.Get("/health/live", h.health.Live)
	r.Get("/health/ready", h.health.Ready)
	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(tenantguard.RequireTenant)

		v.Get("/products", h.catalog.Products)
		v.Post("/pricing/quote", h.checkout.QuoteItems)
		v.With(h.voucherRL.Middleware).Post("/vouchers/validate", h.vouchers.Validate)
		v.Get("/delivery/expired", h.delivery.Expired)
		v.Get("/group-orders/{token}", h.groups.Get)
		v.Post("/orders/{orderID}/share", h.groups.Share)

		v.Post("/sessions", h.checkout.CreateSession)
		v.Route("/sessions/{sessionID}", func(s chi.Router) {
			s.Get("/", h.checkout.GetSession)

			s.Post("/cart/items", h.checkout.AddItem)
			s.Patch("/cart/items/{itemID}", h.checkout.UpdateItem)
			s.Delete("/cart/items/{itemID}", h.checkout.RemoveItem)
			s.Delete("/cart", h.checkout.ClearCart)

			s.Get("/quote", h.checkout.Quote)
			s.Post("/discount", h.checkout.ApplyDiscount)
			s.Delete("/discount", h.checkout.RemoveDiscount)

			s.Get("/delivery", h.checkout.GetDelivery)
			s.Put("/delivery", h.checkout.PutDelivery)

			s.Post("/group-order/join", h.groups.Join)
			s.Post("/group-order/decline", h.groups.Decline)
			s.Delete("/group-order", h.groups.Leave)

			s.With(h.checkoutRL.Middleware, h.idem.Middleware).Post("/checkout", h.checkout.Checkout)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(h.admin.RequireAdmin)
			admin.Post("/vouchers", h.vouchers.Create)
			admin.Put("/vouchers/{code}", h.vouchers.Update)
			admin.Get("/affiliates/{id}/commissions", h.vouchers.Commissions)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

// protectPprof requires basic auth when a user is configured.
func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
