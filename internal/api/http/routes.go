package httpapi

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/plot"
	"github.com/i474232898/climate-zones/internal/store"
)

var validate = validator.New()

var (
	minTime = time.Time{}
	maxTime = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *climate.Service, zones []climate.Zone, highlights []plot.Highlight) {
	v1 := app.Group("/api/v1")

	v1.Get("/zones", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"zones": zones})
	})

	v1.Get("/zones/:label/daily", func(c *fiber.Ctx) error {
		zone, err := lookupZone(c, zones)
		if err != nil {
			return err
		}

		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		samples, err := service.GetDaily(c.UserContext(), zone.Label, req.From, req.To)
		if err != nil {
			return storeError(err, "no daily data for requested range")
		}

		return c.JSON(fiber.Map{
			"zone":    zone,
			"from":    req.From,
			"to":      req.To,
			"samples": dailyJSON(samples),
		})
	})

	v1.Get("/zones/:label/monthly", func(c *fiber.Ctx) error {
		zone, err := lookupZone(c, zones)
		if err != nil {
			return err
		}

		var req monthlyQuery
		if s := c.Query("year"); s != "" {
			y, err := strconv.Atoi(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "year must be an integer")
			}
			req.Year = y
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rows, err := service.GetMonthly(c.UserContext(), zone.Label, req.Year)
		if err != nil {
			return storeError(err, "no monthly data for requested zone")
		}

		return c.JSON(fiber.Map{
			"zone": zone,
			"year": req.Year,
			"rows": rows,
		})
	})

	v1.Get("/zones/:label/plot.png", func(c *fiber.Ctx) error {
		zone, err := lookupZone(c, zones)
		if err != nil {
			return err
		}

		hl := highlights
		if s := c.Query("highlight"); s != "" {
			years, err := parseYears(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			hl = plot.HighlightYears(years...)
		}

		samples, err := service.GetDaily(c.UserContext(), zone.Label, minTime, maxTime)
		if err != nil {
			return storeError(err, "no daily data for requested zone")
		}

		var buf bytes.Buffer
		if err := plot.RenderOverlay(&buf, samples, hl); err != nil {
			if errors.Is(err, plot.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "not enough data to plot")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render chart")
		}

		c.Type("png")
		c.Set(fiber.HeaderContentDisposition, `inline; filename="`+plot.FileName(zone.Label, hl)+`"`)
		return c.Send(buf.Bytes())
	})
}

func lookupZone(c *fiber.Ctx, zones []climate.Zone) (climate.Zone, error) {
	label := c.Params("label")
	for _, z := range zones {
		if z.Label == label {
			return z, nil
		}
	}
	return climate.Zone{}, fiber.NewError(fiber.StatusNotFound, "unknown zone "+strconv.Quote(label))
}

func storeError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read climate data")
}

type dailyPoint struct {
	Date         string   `json:"date"`
	TemperatureC *float64 `json:"temperatureC"`
}

// dailyJSON keeps missing days as null; encoding/json rejects NaN.
func dailyJSON(samples []climate.DailySample) []dailyPoint {
	out := make([]dailyPoint, len(samples))
	for i, s := range samples {
		out[i].Date = s.Date.Format(climate.DateLayout)
		if s.Valid() {
			v := s.TemperatureC
			out[i].TemperatureC = &v
		}
	}
	return out
}

// rangeQuery holds query parameters for the daily endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (r *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	r.From = from
	r.To = to
	return nil
}

type monthlyQuery struct {
	Year int `validate:"omitempty,gte=1940,lte=2100"`
}

// parseTime tries to parse a calendar date, RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(climate.DateLayout, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use YYYY-MM-DD, RFC3339 or unix seconds")
}

func parseYears(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		y, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.New("highlight must be a comma-separated list of years")
		}
		years = append(years, y)
	}
	return years, nil
}
