package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/david/issue-hunter/internal/api"
	"github.com/david/issue-hunter/internal/app"
	"github.com/david/issue-hunter/internal/auth"
	"github.com/david/issue-hunter/internal/config"
	"github.com/david/issue-hunter/internal/logger"
	"github.com/david/issue-hunter/internal/scheduler"
)

func main() {
	cfgFile := flag.String("config", "", "config file")
	flag.Parse()

	if err := run(*cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	authn, err := auth.New(cfg.Server.AdminSecret, cfg.Server.JWTSecret, log)
	if err != nil {
		return err
	}

	opts := api.Options{
		Runner:      deps.Agent,
		Assessor:    deps.Assessor,
		Quoter:      deps.Quoter,
		Gate:        deps.Gate,
		Tracker:     deps.Tracker,
		Auth:        authn,
		CORSOrigins: strings.Split(os.Getenv("CORS_ORIGINS"), ","),
		Log:         log.With(logger.String("component", "api")),
	}
	if deps.Store != nil {
		opts.History = deps.Store
	}
	srv, err := api.NewServer(opts)
	if err != nil {
		return err
	}

	if cfg.Server.Schedule != "" {
		sched, err := scheduler.New(cfg.Server.Schedule, deps.Agent, log.With(logger.String("component", "scheduler")))
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", logger.String("port", cfg.Server.Port), logger.Bool("dry_run", cfg.Agent.DryRun))
		if err := srv.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
