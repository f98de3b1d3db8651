package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/repository"
	"taskboard/internal/repository/jsonfile"
	"taskboard/internal/repository/postgres"
	"taskboard/internal/repository/sqlite"
	"taskboard/internal/service/auth"
	"taskboard/internal/service/scheduler"
	"taskboard/internal/service/task"
	"taskboard/internal/session"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	"taskboard/pkg/otel"
	"taskboard/pkg/outbox"
	redisclient "taskboard/pkg/redis"
)

var version = "dev"

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.Load(configDir())
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting taskboard-api...",
		zap.String("version", version),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("port", cfg.Server.Port),
	)

	tracing, err := otel.Init(cfg.OTel, version, log)
	if err != nil {
		log.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer tracing.Shutdown()

	// Store
	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()
	log.Info("Store ready", zap.String("backend", store.Backend()))

	// Session registry: Redis when configured, otherwise in-process with a
	// periodic sweep of expired entries
	sched := scheduler.New(time.Local, log)
	var registry session.Registry
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to init Redis", zap.Error(err))
		}
		defer rdb.Close()
		registry = session.NewRedisRegistry(rdb)
		log.Info("Using Redis session registry", zap.String("addr", cfg.Redis.Addr))
	} else {
		mem := session.NewMemoryRegistry()
		if err := sched.ScheduleSessionSweep(mem, cfg.Scheduler.SessionSweepInterval); err != nil {
			log.Fatal("Failed to schedule session sweep", zap.Error(err))
		}
		registry = mem
		log.Info("Using in-memory session registry")
	}

	// Events are optional. With the outbox they are committed with the task
	// write and delivered by the dispatcher.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		publisher task.Publisher
		txEvents  repository.TransactionalTaskRepository
	)
	if cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			log.Fatal("Failed to init publisher", zap.Error(err))
		}
		defer p.Close()
		publisher = p

		if pg, ok := store.(*postgres.Store); ok && cfg.MQ.Outbox {
			ob := outbox.NewRepository(pg.Pool())
			if err := ob.EnsureSchema(ctx); err != nil {
				log.Fatal("Failed to init outbox", zap.Error(err))
			}
			go outbox.NewDispatcher(ob, p, log).Start(ctx)
			if _, err := sched.Every("outbox-purge", time.Hour, func() {
				if n, err := ob.PurgeSent(ctx, 24*time.Hour); err != nil {
					log.Warn("Failed to purge outbox", zap.Error(err))
				} else if n > 0 {
					log.Info("Outbox purged", zap.Int64("count", n))
				}
			}); err != nil {
				log.Fatal("Failed to schedule outbox purge", zap.Error(err))
			}
			// task writes enqueue their event in the same transaction
			txEvents = pg.TaskRepository()
		}
		log.Info("Publishing task events",
			zap.String("exchange", mq.ExchangeName),
			zap.Bool("outbox", cfg.MQ.Outbox),
		)
	}

	sched.Start()
	defer sched.Stop()

	// Services
	authService := auth.NewService(store.Users(), registry, cfg.Session.Secret, cfg.Session.TTL, log)
	taskService := task.NewService(store.Tasks(), publisher, log)
	if txEvents != nil {
		taskService.WithTransactionalEvents(txEvents)
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authService, handler.CookieOptions{
		Secure: cfg.Server.CookieSecure,
		TTL:    cfg.Session.TTL,
	}, log)
	taskHandler := handler.NewTaskHandler(taskService, log)

	router := httpserver.NewRouter(authHandler, taskHandler, authService, store, log)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down taskboard-api gracefully...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("taskboard-api shutdown complete")
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

// openStore opens the backend named by storage.driver. Relational backends
// create their tables on open.
func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := postgres.Open(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Storage.SQLiteDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := jsonfile.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}
