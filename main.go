package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	alertapp "playtrack/internal/alerts/application"
	alertrepo "playtrack/internal/alerts/infrastructure/postgres"
	alerthttp "playtrack/internal/alerts/interfaces/http"
	"playtrack/internal/audit"
	"playtrack/internal/auth"
	masterdatarepo "playtrack/internal/masterdata/infrastructure/postgres"
	masterdatahttp "playtrack/internal/masterdata/interfaces/http"
	"playtrack/internal/observability/metrics"
	"playtrack/internal/storage"
	"playtrack/internal/sweep"
	timerapp "playtrack/internal/timers/application"
	timerrepo "playtrack/internal/timers/infrastructure/postgres"
	timerhttp "playtrack/internal/timers/interfaces/http"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, driver, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := storage.Migrate(db, driver); err != nil {
		logger.Fatalf("db migrate error: %v", err)
	}

	metrics.Init(db, logger)
	locationChecker := auth.NewLocationChecker(db)
	auditRepo := audit.NewRepository(db)

	timerRepo := timerrepo.NewTimerRepository(db)
	alertRepo := alertrepo.NewAlertRepository(db)
	locationRepo := masterdatarepo.NewLocationRepository(db)

	sweepCfg, err := sweep.LoadConfig()
	if err != nil {
		logger.Fatalf("sweep config error: %v", err)
	}

	alertService, err := alertapp.NewService(alertRepo, cfg.TenantID)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	timerService, err := timerapp.NewService(timerRepo, alertService, cfg.TenantID, logger)
	if err != nil {
		logger.Fatalf("timer service error: %v", err)
	}
	snapshotService, err := timerapp.NewSnapshotService(timerRepo, cfg.TenantID)
	if err != nil {
		logger.Fatalf("snapshot service error: %v", err)
	}
	detector, err := alertapp.NewDetector(timerRepo, alertRepo, sweepCfg.ThresholdMinutes, sweepCfg.WindowWidth, logger)
	if err != nil {
		logger.Fatalf("detector error: %v", err)
	}

	timerHandler, err := timerhttp.NewHandler(timerService, snapshotService, locationChecker, auditRepo)
	if err != nil {
		logger.Fatalf("timer handler error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService, locationChecker, auditRepo)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	locationHandler, err := masterdatahttp.NewHandler(locationRepo, cfg.TenantID)
	if err != nil {
		logger.Fatalf("location handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware, err := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if err != nil {
		logger.Fatalf("auth middleware error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/timers", timerHandler)
	mux.Handle("/api/v1/timers/", timerHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/locations", locationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if sweepCfg.Enabled {
		sweeper := sweep.NewSweeper(detector, sweepCfg.TickInterval, logger)
		group.Go(func() error {
			sweeper.Start(ctx)
			return nil
		})
		group.Go(func() error {
			runEvery(ctx, sweepCfg.PromoteInterval, func(now time.Time) {
				if _, err := timerService.Promote(ctx, now); err != nil {
					logger.Printf("promote tick error: %v", err)
				}
			})
			return nil
		})
		group.Go(func() error {
			runEvery(ctx, sweepCfg.ArchiveInterval, func(time.Time) {
				if archived, err := timerService.Archive(ctx, sweepCfg.ArchiveAfter); err != nil {
					logger.Printf("archive tick error: %v", err)
				} else if archived > 0 {
					logger.Printf("archived %d timers", archived)
				}
			})
			return nil
		})
	} else {
		logger.Printf("sweep disabled: serving reads only")
	}

	if err := group.Wait(); err != nil {
		logger.Fatalf("shutdown error: %v", err)
	}
}

func runEvery(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			fn(now.UTC())
		}
	}
}

type config struct {
	DatabaseURL string
	HTTPAddr    string
	TenantID    string
	JWTSecret   string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:    getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:   getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
