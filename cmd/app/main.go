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

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"orderflow/cmd"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configs, err := cmd.LoadConfig(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: configs.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cmd.NewCompositionRoot(ctx, configs, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	if err = run(ctx, app, configs, logger); err != nil {
		logger.Error("Stopped with error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or a component fails, then shuts down in
// order: HTTP server, jobs, consumers, event log.
func run(ctx context.Context, app *cmd.CompositionRoot, configs cmd.Config, logger *slog.Logger) error {
	e := echo.New()
	e.HideBanner = true
	if err := app.RegisterRoutes(e); err != nil {
		return errors.Join(err, app.Close())
	}

	consumers, err := app.CreateConsumers()
	if err != nil {
		return errors.Join(err, app.Close())
	}

	jobManager := app.CreateJobManager()
	if err = jobManager.StartAll(); err != nil {
		return errors.Join(err, app.Close())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server started", "port", configs.HTTPPort, "services", configs.Services)
		if err := e.Start(fmt.Sprintf("0.0.0.0:%s", configs.HTTPPort)); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return consumers.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		jobManager.StopAll()
		return err
	})

	err = g.Wait()
	return errors.Join(err, app.Close())
}
