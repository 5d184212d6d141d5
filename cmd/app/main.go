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

	"docpipe/cmd/app/core/middleware"
	"docpipe/cmd/app/types"
	v1 "docpipe/cmd/app/v1"
	"docpipe/internal/notify"
	"docpipe/internal/orchestrator"
	"docpipe/internal/service"
	"docpipe/internal/session"

	"github.com/go-chi/chi/v5"
)

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	slog.Info("startup", "status", "initializing API")
	defer slog.Info("shutdown complete")

	cfg, err := types.LoadConfig(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := service.New(ctx, cfg.Pipeline, logger)
	if err != nil {
		slog.Error("failed to initialize services", "error", err.Error())
		return err
	}
	defer services.Close()

	notifier := notify.NewLogger(logger)
	sessions := session.NewManager(services.NewSession, notifier, logger)
	defer sessions.Close()

	rc := types.RouteConfig{
		APIConfig:    *cfg,
		Sessions:     sessions,
		Orchestrator: orchestrator.NewOrchestrator(services.NewSession, notifier),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestTrace)
	r.Mount("/api/v1", v1.Routes(rc))

	server := &http.Server{Addr: cfg.Addr, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "address", cfg.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err.Error())
			slog.Info("shutdown complete with errors")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	sessions.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err.Error())
		return err
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
