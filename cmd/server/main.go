package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/training-tracker/auth"
	"github.com/diewo77/training-tracker/internal/config"
	"github.com/diewo77/training-tracker/internal/db"
	"github.com/diewo77/training-tracker/internal/directory"
	"github.com/diewo77/training-tracker/internal/housekeeping"
	"github.com/diewo77/training-tracker/internal/logging"
	"github.com/diewo77/training-tracker/internal/lookup"
	"github.com/diewo77/training-tracker/internal/policy"
	"github.com/diewo77/training-tracker/internal/services"
	"github.com/diewo77/training-tracker/internal/storage"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	cfg := config.Load()

	logger, closer, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to open log: %v", err)
	}
	defer closer.Close()

	dbConn, err := db.Open(cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg, logger); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn, cfg.App.DefaultAdmins); err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Println("Seeding completed successfully")
		return
	}

	if err := db.Migrate(dbConn, cfg, logger); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	// Default admins from DEFAULT_ADMINS.
	if err := db.Seed(dbConn, cfg.App.DefaultAdmins); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open attachment store: %v", err)
	}
	cache, err := lookup.NewBackend(ctx, cfg.Cache)
	if err != nil {
		log.Fatalf("Failed to open lookup cache: %v", err)
	}

	auth.SetSecret(cfg.App.SessionSecret)
	routerCfg := policy.NewRouterConfig(policy.Deps{
		Config: cfg,
		DB:     dbConn,
		Store:  store,
		Cache:  cache,
		Log:    logger,
	})
	// A session must refer to a user that still exists.
	auth.SetUserVerifier(routerCfg.Users.Exists)

	var scheduler *housekeeping.Scheduler
	if cfg.Housekeeping.Enabled {
		runner := newRunner(ctx, cfg, dbConn, routerCfg, store, logger)
		scheduler, err = housekeeping.NewScheduler(runner, cfg.Housekeeping.Schedule)
		if err != nil {
			log.Fatalf("Housekeeping schedule: %v", err)
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      withLogging(withRecover(NewApp(routerCfg), logger)),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s (env=%s)", srv.Addr, cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// newRunner builds the housekeeping runner. The employee refresh is only
// wired when Graph credentials are configured.
func newRunner(ctx context.Context, cfg *config.Config, dbConn *gorm.DB, rc *policy.RouterConfig, store storage.Store, logger logging.Logger) *housekeeping.Runner {
	r := &housekeeping.Runner{
		DB:         dbConn,
		Database:   cfg.Database,
		Config:     cfg.Housekeeping,
		Production: cfg.IsProduction(),
		Forms:      rc.Forms,
		Store:      store,
		Employees:  services.NewEmployeeService(dbConn),
		Cache:      rc.Lookups,
		CSVPath:    cfg.Graph.CSVPath,
		Log:        logger,
	}
	graph, err := directory.NewGraphClient(ctx, cfg.Graph)
	if err != nil {
		logger.Warn("employee refresh disabled", err)
		return r
	}
	r.Graph = graph
	return r
}

// withLogging tags each request with an id and logs it.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		lw := &loggingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lw, r)
		log.Printf("%s %s %s %d %s", id, r.Method, r.URL.Path, lw.status, time.Since(start))
	})
}

type loggingWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// withRecover turns a panic into a 500 and logs the stack.
func withRecover(next http.Handler, logger logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic serving request", map[string]interface{}{
					"panic":  rec,
					"method": r.Method,
					"path":   r.URL.Path,
					"stack":  string(debug.Stack()),
				})
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
