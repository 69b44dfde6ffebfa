package main

import (
	"fmt"

	"github.com/i474232898/climate-zones/internal/bootstrap"
	"github.com/i474232898/climate-zones/internal/phenology"
)

func main() {
	bootstrap.Main("phenology-ttest", run)
}

func run(app *bootstrap.App) int {
	logger := app.Logger

	q := phenology.DefaultQuery()
	obs, err := phenology.ReadObservations(app.Config.BirdsCSV, q.Column)
	if err != nil {
		logger.Error("failed to read dataset", "path", app.Config.BirdsCSV, "error", err)
		return 1
	}

	res, err := phenology.Compare(obs, q)
	if err != nil {
		logger.Error("t-test failed", "species", q.Species, "error", err)
		return 1
	}

	logger.Debug("t-test", "t", res.T, "df", res.DF, "n_a", res.NA, "n_b", res.NB, "mean_a", res.MeanA, "mean_b", res.MeanB)
	fmt.Println(res)
	return 0
}
