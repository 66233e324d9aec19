package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/api/rest"
	"github.com/clintrovert/praxis/internal/catalog"
	"github.com/clintrovert/praxis/internal/config"
	"github.com/clintrovert/praxis/internal/metrics"
	"github.com/clintrovert/praxis/internal/pool"
	"github.com/clintrovert/praxis/internal/store"
	"github.com/clintrovert/praxis/internal/temporal"
	"github.com/clintrovert/praxis/internal/webhook"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the shared store
	st, err := store.Connect(ctx, env.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	// Workspace pool, backed by the store so the mutual-exclusion
	// invariant holds across instances
	workspacePool, err := buildPool(ctx, env, st, logger)
	if err != nil {
		logger.Fatal("failed to build workspace pool", zap.Error(err))
	}

	// Temporal client for the grading pipeline
	temporalClient, err := temporal.NewClient(env.Address, env.Namespace, env.TaskQueue, logger)
	if err != nil {
		logger.Fatal("failed to create temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	// Task catalog sources
	sources, err := buildSources(env, logger)
	if err != nil {
		logger.Fatal("failed to build catalog sources", zap.Error(err))
	}
	cat := catalog.New(sources, st, logger)

	collector := metrics.New()

	restHandler := rest.NewHandler(cat, st, workspacePool, collector, logger)
	intake := webhook.NewIntake(env.WebhookSecret, st, temporalClient, collector, env.WebhookTimeout, logger)

	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
	})
	router.Route("/webhooks", func(r chi.Router) {
		intake.RegisterRoutes(r)
	})
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", collector.Handler())

	addr := fmt.Sprintf(":%s", env.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("starting API server", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
	defer shutdownCancel()

	server.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

func buildPool(ctx context.Context, env *config.Env, st *store.Store, logger *zap.Logger) (pool.Pool, error) {
	if env.RosterFile == "" {
		return nil, fmt.Errorf("PRAXIS_WORKSPACE_ROSTER_FILE is required")
	}
	roster, err := config.LoadRoster(env.RosterFile)
	if err != nil {
		return nil, err
	}
	return pool.NewStorePool(ctx, st, roster, logger)
}

func buildSources(env *config.Env, logger *zap.Logger) ([]catalog.Source, error) {
	var sources []catalog.Source

	for _, path := range env.SourceFiles {
		src, err := catalog.NewFileSource(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if env.BaseURL != "" {
		for _, key := range env.ProjectKeys {
			src, err := catalog.NewJiraSource(catalog.JiraOptions{
				BaseURL:       env.BaseURL,
				Username:      env.Username,
				APIToken:      env.JiraEnv.Token,
				ProjectKey:    key,
				DurationField: env.DurationField,
				Rules:         catalog.DefaultBandingRules(),
			}, logger)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no catalog sources configured")
	}
	return sources, nil
}
