package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/expenso/internal/app"
	"github.com/MrJamesThe3rd/expenso/internal/config"
	apihttp "github.com/MrJamesThe3rd/expenso/internal/http"
	"github.com/MrJamesThe3rd/expenso/internal/http/auth"
	"github.com/MrJamesThe3rd/expenso/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCloser, err := logging.Setup(logging.Options(cfg.Log))
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, slog.Default(), app.Options{})
	if err != nil {
		return fmt.Errorf("opening app: %w", err)
	}
	defer a.Close()

	if cfg.App.JWTSecret == "" {
		slog.Warn("JWT_SECRET not set, all requests act as the default user", "user_id", cfg.App.UserID)
	}

	router := apihttp.New(apihttp.Options{
		Verifier:       auth.NewVerifier(cfg.App.JWTSecret, cfg.App.UserID),
		Sessions:       a.Sessions,
		AllowedOrigins: cfg.App.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "port", server.Addr, "storage", cfg.Storage.Driver)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
