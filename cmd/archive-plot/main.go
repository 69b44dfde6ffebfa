package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/i474232898/climate-zones/internal/bootstrap"
	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/plot"
)

func main() {
	bootstrap.Main("archive-plot", run)
}

func run(app *bootstrap.App) int {
	logger := app.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	study := app.Config.Study
	start, end, err := study.ArchiveRange()
	if err != nil {
		logger.Error("invalid archive window", "error", err)
		return 1
	}

	service := climate.NewService(climate.Deps{
		Archive:  app.Archive(),
		Sinks:    bootstrap.Sinks(app.CSV(), app.Influx(ctx)),
		Progress: app.Progress(ctx),
		Logger:   logger,
	})

	series, err := service.RunArchive(ctx, study.Zones, start, end)
	if err != nil {
		logger.Error("archive run failed", "error", err)
		return 1
	}

	highlights := plot.HighlightYears(study.Highlights...)
	for _, s := range series {
		if ctx.Err() != nil {
			break
		}
		path, err := plot.WriteZoneOverlay(app.Config.OutputDir, s, highlights)
		if err != nil {
			logger.Error("failed to render plot", "zone", s.Zone.Label, "error", err)
			continue
		}
		logger.Info("plot saved", "zone", s.Zone.Label, "path", path)
	}
	return 0
}
