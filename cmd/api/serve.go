package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/auth"
	"github.com/Tomlord1122/task-backend/internal/config"
	"github.com/Tomlord1122/task-backend/internal/database"
	"github.com/Tomlord1122/task-backend/internal/logger"
	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/repository"
	"github.com/Tomlord1122/task-backend/internal/server"
	"github.com/Tomlord1122/task-backend/internal/service"
)

type serveOptions struct {
	port    int
	memory  bool
	migrate bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 0, "Listen port (overrides PORT)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Keep data in process memory instead of PostgreSQL")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func runServe(opts serveOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.port != 0 {
		cfg.Port = opts.port
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	log, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var (
		dbService database.Service
		tasks     repository.TaskRepository
		users     repository.UserRepository
	)
	if opts.memory {
		log.Warn("using in-memory store, data is lost on exit")
		store := repository.NewMemoryStore()
		tasks, users = store.Tasks(), store.Users()
	} else {
		dsn := cfg.Database.DSN()
		if opts.migrate {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			err := database.Migrate(ctx, dsn, false, log)
			cancel()
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		dbService, err = database.New(dsn, log)
		if err != nil {
			return err
		}
		gormDB := dbService.GetDB()
		tasks = repository.NewGormTaskRepository(gormDB)
		users = repository.NewGormUserRepository(gormDB)
	}

	hub := realtime.NewHub(cfg.BroadcastScope == config.ScopeOwner, cfg.RelayClientEvents, log.Named("realtime"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	codec := auth.NewTokenCodec([]byte(cfg.JWTSecret))
	apiServer := server.NewServer(cfg, server.Dependencies{
		Tasks:    service.NewTaskService(tasks, hub, log.Named("tasks")),
		Auth:     service.NewAuthService(users, codec, log.Named("auth")),
		Verifier: codec,
		Hub:      hub,
		DB:       dbService,
		Log:      log,
	})

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, stopHub, hub, dbService, log, done)

	log.Info("starting server",
		zap.String("addr", apiServer.Addr),
		zap.String("env", cfg.Env),
		zap.String("broadcast_scope", cfg.BroadcastScope),
		zap.Bool("memory", opts.memory),
	)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	<-done
	log.Info("graceful shutdown complete")
	return nil
}

// gracefulShutdown waits for SIGINT/SIGTERM, drains HTTP requests, then
// disconnects socket clients and closes the database pool.
func gracefulShutdown(apiServer *http.Server, stopHub context.CancelFunc, hub *realtime.Hub, dbService database.Service, log *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopHub()
	select {
	case <-hub.Done():
	case <-ctxTimeout.Done():
		log.Warn("realtime hub did not stop in time")
	}

	if dbService != nil {
		if err := dbService.Close(); err != nil {
			log.Error("close database pool", zap.Error(err))
		} else {
			log.Info("database connection pool closed")
		}
	}

	done <- true
}
