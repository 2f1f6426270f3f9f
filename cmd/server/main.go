package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-sync/internal/config"
	"github.com/BuzzLyutic/todo-sync/internal/handler"
	"github.com/BuzzLyutic/todo-sync/internal/notify"
	"github.com/BuzzLyutic/todo-sync/internal/repo"
	"github.com/BuzzLyutic/todo-sync/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	store, closeStore, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer closeStore()

	hub := notify.NewHub(logger, cfg.AllowedOrigins)
	todoHandler := handler.NewTodoHandler(service.NewTodoService(store), logger, hub)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	todoHandler.Routes(r, hub)

	if cfg.StaticDir != "" { // браузерный фронтенд, если он собран рядом
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// WriteTimeout is left unset: it would cut long-lived websocket subscribers.
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Shutting down server...")
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
		return
	}
	logger.Info("Server stopped successfully")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TodoRepository, func(), error) {
	switch cfg.Store {
	case "memory":
		return repo.NewMemoryRepo(), func() {}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping: %w", err)
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Successfully connected to the Database!")
		return repo.NewTodoRepo(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
