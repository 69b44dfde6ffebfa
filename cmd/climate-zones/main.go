package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/climate-zones/internal/api/http"
	"github.com/i474232898/climate-zones/internal/bootstrap"
	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/plot"
	"github.com/i474232898/climate-zones/internal/scheduler"
)

func main() {
	bootstrap.Main("climate-zones", run)
}

func run(app *bootstrap.App) int {
	cfg := app.Config
	slogger := app.Logger

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SQLite when configured, in-memory otherwise.
	st, err := app.Store()
	if err != nil {
		slogger.Error("failed to open store", "error", err)
		return 1
	}

	deps := climate.Deps{
		Archive:  app.Archive(),
		Store:    st,
		Sinks:    bootstrap.Sinks(app.CSV(), app.Influx(ctx)),
		Progress: app.Progress(ctx),
		Logger:   slogger,
	}

	// Statistics are optional in server mode: without credentials only the archive flow runs.
	stats, creds, err := app.Statistics()
	if err != nil {
		slogger.Warn("satellite statistics disabled", "file", cfg.CredentialsFile, "error", err)
	} else {
		deps.Statistics = stats
		deps.Credentials = creds
	}

	service := climate.NewService(deps)
	if stats != nil {
		bootstrap.ReportRetries(stats, service)
	}

	study := cfg.Study
	start, end, err := study.ArchiveRange()
	if err != nil {
		slogger.Error("invalid archive window", "error", err)
		return 1
	}

	// Scheduler that periodically refreshes both flows.
	sched := scheduler.New(scheduler.Job{
		Zones:        study.Zones,
		Years:        study.Years(),
		ArchiveStart: start,
		ArchiveEnd:   end,
		Monthly:      deps.Statistics != nil,
	}, cfg.FetchInterval, service, slogger)
	if err := sched.Start(ctx); err != nil {
		slogger.Error("failed to start scheduler", "error", err)
		return 1
	}
	defer sched.Stop()

	// Basic app configuration
	server := fiber.New(fiber.Config{
		AppName:               "climate-zones",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	// Basic health endpoint
	server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "climate-zones",
		})
	})
	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes.
	httpapi.RegisterRoutes(server, service, study.Zones, plot.HighlightYears(study.Highlights...))

	go func() {
		slogger.Info("listening", "port", cfg.Port)
		if err := server.Listen(":" + cfg.Port); err != nil {
			slogger.Error("fiber server stopped", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slogger.Error("error during shutdown", "error", err)
		return 1
	}
	return 0
}
