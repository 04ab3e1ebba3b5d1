package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apihttp "solarfarm-cloud/internal/api/http"
	"solarfarm-cloud/internal/config"
	"solarfarm-cloud/internal/feed"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the farm simulation and HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	broker := feed.NewBroker(cfg.StreamBuffer)
	publisher, err := feed.NewPublisher(app.analytics, feed.NewComposer(app.rng), broker, logger)
	if err != nil {
		return err
	}
	app.evolution.OnTick(publisher.Publish)

	router, err := apihttp.NewRouter(apihttp.Deps{
		Store:     app.store,
		Analytics: app.analytics,
		Cleaning:  app.cleaning,
		Sensors:   app.sensors,
		Alerts:    app.alerts,
		Audit:     app.audit,
		Publisher: publisher,
		Logger:    logger,
	}, apihttp.Options{
		AreaSizeKm:     cfg.Farm.AreaSizeKm,
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Printf("auth: disabled: no jwt secret configured")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.evolution.Run(gctx, cfg.TickPeriod)
	})
	g.Go(func() error {
		app.snapshotter.Start(gctx, cfg.SnapshotInterval)
		return nil
	})
	if app.autoCleaner != nil {
		g.Go(func() error {
			app.autoCleaner.Start(gctx, cfg.AutoClean.Interval)
			return nil
		})
	}
	g.Go(func() error {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutdown: stopping http server")
		broker.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Printf("shutdown: complete")
	return nil
}
