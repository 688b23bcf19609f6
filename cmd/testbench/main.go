package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/campusops/testbench/internal/adapter/canvas"
	"github.com/campusops/testbench/internal/adapter/fsm"
	"github.com/campusops/testbench/internal/adapter/lti"
	"github.com/campusops/testbench/internal/adapter/otel"
	"github.com/campusops/testbench/internal/adapter/river"
	"github.com/campusops/testbench/internal/adapter/sqlite"
	"github.com/campusops/testbench/internal/app"
	"github.com/campusops/testbench/internal/config"
	"github.com/campusops/testbench/internal/domain"

	handler "github.com/campusops/testbench/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx := context.Background()

	// --- Telemetry ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	riverClient, err := river.Setup(ctx, repo.DB())
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Error("river stop", "error", err)
		}
	}()

	publisher := otel.NewTracingPublisher(river.NewPublisher(riverClient))

	provisioners := make(map[string]domain.Provisioner, len(cfg.Environments))
	for name, baseURL := range cfg.Environments {
		provisioners[name] = otel.NewTracingProvisioner(canvas.New(baseURL, cfg.CanvasToken), name)
	}

	// --- Application ---
	svc := app.NewRequestService(
		otel.NewTracingRepository(repo),
		provisioners,
		publisher,
		fsm.New(),
		cfg.RootAccountID,
	)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("testbench", otelchi.WithChiRoutes(router)))

	router.Group(func(r chi.Router) {
		r.Use(handler.BasicAuth(cfg.Credentials()))
		api := humachi.New(r, huma.DefaultConfig("testbench", "0.1.0"))
		handler.Register(api, svc)
	})

	if cfg.LTI.Enabled() {
		keys, err := lti.LoadOrGenerateKey(cfg.LTI.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("lti keys: %w", err)
		}
		lti.NewHandler(lti.Config{
			ClientID:       cfg.LTI.ClientID,
			DeploymentID:   cfg.LTI.DeploymentID,
			PlatformIssuer: cfg.LTI.PlatformIssuer,
			AuthLoginURL:   cfg.LTI.AuthLoginURL,
			KeySetURL:      cfg.LTI.KeySetURL,
			BaseURL:        cfg.BaseURL,
		}, keys).Routes(router)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("testbench listening", "addr", cfg.Addr(), "environments", len(cfg.Environments))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}
