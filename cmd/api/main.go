package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/config"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/logging"
	"github.com/ClaudioCeppi83/albion-parchis/internal/platform/otel"
	"github.com/ClaudioCeppi83/albion-parchis/internal/server"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout covers saving every game and notifying the players.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to set up tracing")
	}

	srv, err := server.NewServer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
	httpServer := srv.HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, press Ctrl+C again to force")
		stop()
		return gracefulShutdown(log, srv, httpServer, shutdownTracing)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
	log.Info("graceful shutdown complete")
}

func gracefulShutdown(log logrus.FieldLogger, srv *server.Server, httpServer *http.Server, shutdownTracing func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop accepting connections before the game sockets are closed.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server forced to shut down")
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during server shutdown")
	}
	if err := shutdownTracing(ctx); err != nil {
		log.WithError(err).Warn("failed to flush traces")
	}
	return nil
}
