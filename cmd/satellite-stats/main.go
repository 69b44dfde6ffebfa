package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/i474232898/climate-zones/internal/bootstrap"
	"github.com/i474232898/climate-zones/internal/climate"
)

func main() {
	bootstrap.Main("satellite-stats", run)
}

func run(app *bootstrap.App) int {
	logger := app.Logger

	stats, creds, err := app.Statistics()
	if err != nil {
		logger.Error("cannot load credentials", "file", app.Config.CredentialsFile, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := climate.NewService(climate.Deps{
		Statistics:  stats,
		Credentials: creds,
		Sinks:       bootstrap.Sinks(app.CSV(), app.Influx(ctx)),
		Progress:    app.Progress(ctx),
		Logger:      logger,
	})
	bootstrap.ReportRetries(stats, service)

	study := app.Config.Study
	report, err := service.RunMonthly(ctx, study.Zones, study.Years())
	if err != nil {
		logger.Error("monthly run failed", "run", report.RunID, "rows", report.Rows, "error", err)
		return 1
	}

	switch {
	case report.Interrupted:
		logger.Warn("stopped by user; buffered rows were not written", "run", report.RunID)
	case report.Rows == 0:
		logger.Warn("no valid data found", "run", report.RunID, "skipped", report.Skipped)
	default:
		logger.Info("monthly statistics saved", "run", report.RunID, "rows", report.Rows,
			"skipped", report.Skipped, "path", app.Config.MonthlyCSVPath())
	}
	return 0
}
