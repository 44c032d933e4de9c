package server

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"refpay/internal/domain/audit"
	"refpay/internal/domain/auth"
	"refpay/internal/domain/matching"
	"refpay/internal/domain/payroll"
	"refpay/internal/domain/referees"
	"refpay/internal/platform/config"
	"refpay/internal/platform/db"
	"refpay/internal/platform/jobs"
	"refpay/internal/platform/metrics"
	"refpay/internal/platform/storage"
	"refpay/internal/transport/http/api"
	audithandler "refpay/internal/transport/http/handlers/audit"
	authhandler "refpay/internal/transport/http/handlers/auth"
	matchinghandler "refpay/internal/transport/http/handlers/matching"
	payrollhandler "refpay/internal/transport/http/handlers/payroll"
	refereehandler "refpay/internal/transport/http/handlers/referees"
	settingshandler "refpay/internal/transport/http/handlers/settings"
	"refpay/internal/transport/http/middleware"
)

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type routerDeps struct {
	Config    config.Config
	Auth      *auth.Service
	Metrics   *metrics.Collector
	Ready     func(ctx context.Context) error
	Public    []routeRegistrar
	Protected []routeRegistrar
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	refereeService := referees.NewService(referees.NewStore(pool), referees.NewExemptionSet(cfg.AdminFeeExempt))
	if err := seedRegistry(ctx, refereeService, cfg.RegistrySeedFile); err != nil {
		log.Fatalf("registry seed failed: %v", err)
	}
	matchingService := matching.NewService(matching.NewStore(pool), refereeService)
	payrollService := payroll.NewService(payroll.NewStore(pool), refereeService, matchingService, payroll.GlobalSettings{
		HaciendaTaxRate: cfg.HaciendaTaxRate,
		DepositFee:      cfg.DepositFee,
		AdminFeePerGame: cfg.AdminFeePerGame,
	})

	archive, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatalf("report storage failed: %v", err)
	}
	if archive != nil {
		payrollService.WithArchive(archive)
	}

	jobService := jobs.New(pool, cfg, matchingService)
	if err := jobService.Start(ctx); err != nil {
		log.Fatalf("job scheduler failed: %v", err)
	}
	defer jobService.Stop()

	collector := metrics.New()
	auditService := audit.New(pool)
	authService := auth.NewService(cfg.OperatorEmail, cfg.OperatorPasswordHash, cfg.JWTSecret, auth.DefaultTokenTTL)
	router := newRouter(routerDeps{
		Config:  cfg,
		Auth:    authService,
		Metrics: collector,
		Ready:   pool.Ping,
		Public:  []routeRegistrar{authhandler.NewHandler(authService)},
		Protected: []routeRegistrar{
			refereehandler.NewHandler(refereeService, auditService),
			settingshandler.NewHandler(payrollService),
			matchinghandler.NewHandler(matchingService, jobService, collector, auditService),
			payrollhandler.NewHandler(payrollService, middleware.NewIdempotencyStore(pool), collector, auditService),
			audithandler.NewHandler(auditService),
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	if !authService.Enabled() {
		slog.Warn("operator login not configured; API is open")
	}
	log.Printf("referee payroll server listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func newRouter(deps routerDeps) http.Handler {
	cfg := deps.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.Auth(deps.Auth))
	router.Use(middleware.Logger(deps.Metrics))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if deps.Ready != nil {
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.With(middleware.RequireOperator(deps.Auth.Enabled())).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		for _, handler := range deps.Public {
			handler.RegisterRoutes(r)
		}
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(deps.Auth.Enabled()))
			for _, handler := range deps.Protected {
				handler.RegisterRoutes(r)
			}
		})
	})

	return router
}

func seedRegistry(ctx context.Context, svc *referees.Service, path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	batch, err := referees.ParseRegistryCSV(file)
	if err != nil {
		return err
	}
	_, err = svc.Import(ctx, batch)
	return err
}
