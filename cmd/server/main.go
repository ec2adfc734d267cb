package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"klok/internal/app"
	"klok/internal/platform/config"
	"klok/internal/platform/httpserver"
	"klok/internal/platform/logger"
)

// main wires the services, serves the router and runs the background
// workers until SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := httpserver.New(cfg.Addr, a.Router())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting klok", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Reconciliation.Enabled {
		g.Go(func() error {
			log.Info("reconciliation worker started", "interval", cfg.Reconciliation.Interval)
			return ignoreCancel(a.Reconciler.Run(gctx))
		})
	}
	if a.Relay != nil {
		g.Go(func() error {
			log.Info("audit relay started", "topic", cfg.Kafka.AuditTopic)
			return ignoreCancel(a.RunRelay(gctx))
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("klok stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}
	log.Info("klok stopped")
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
