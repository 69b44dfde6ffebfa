package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/climate-zones/internal/auth"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadStudyDefaultsWhenMissing(t *testing.T) {
	study, err := LoadStudy(filepath.Join(t.TempDir(), "zones.yaml"))
	if err != nil {
		t.Fatalf("LoadStudy: %v", err)
	}
	if len(study.Zones) != 4 || study.Zones[0].Label != "Worse_Zone_1" || study.Zones[0].Latitude != 56.0 {
		t.Fatalf("unexpected default zones %+v", study.Zones)
	}
	years := study.Years()
	if len(years) != 9 || years[0] != 2016 || years[8] != 2024 {
		t.Fatalf("unexpected years %v", years)
	}
	start, end, err := study.ArchiveRange()
	if err != nil {
		t.Fatalf("ArchiveRange: %v", err)
	}
	if !start.Equal(time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestLoadStudyFromYAML(t *testing.T) {
	path := writeFile(t, "zones.yaml", `
zones:
  - label: Better_Zone_2
    latitude: 57.2
    longitude: 17.0
first_year: 2020
last_year: 2021
highlights: [2020]
`)
	study, err := LoadStudy(path)
	if err != nil {
		t.Fatalf("LoadStudy: %v", err)
	}
	if len(study.Zones) != 1 || study.Zones[0].Label != "Better_Zone_2" {
		t.Fatalf("unexpected zones %+v", study.Zones)
	}
	if got := study.Years(); len(got) != 2 || got[1] != 2021 {
		t.Fatalf("unexpected years %v", got)
	}
	// Unset keys keep defaults.
	if study.ArchiveStart != "2016-01-01" {
		t.Fatalf("expected default archive start, got %q", study.ArchiveStart)
	}
	if _, ok := study.Zone("Better_Zone_2"); !ok {
		t.Fatal("zone lookup failed")
	}
}

func TestLoadStudyValidation(t *testing.T) {
	cases := map[string]string{
		"duplicate label": `
zones:
  - {label: A, latitude: 1, longitude: 1}
  - {label: A, latitude: 2, longitude: 2}
`,
		"latitude out of range": `
zones:
  - {label: A, latitude: 91, longitude: 1}
`,
		"missing label": `
zones:
  - {latitude: 1, longitude: 1}
`,
		"years reversed": `
first_year: 2024
last_year: 2016
`,
		"bad date": `
archive_start: 2016/01/01
`,
		"window reversed": `
archive_start: "2024-01-01"
archive_end: "2016-01-01"
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadStudy(writeFile(t, "zones.yaml", content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadCredentials(t *testing.T) {
	path := writeFile(t, "log.json", `{"client_id":"id","client_secret":"secret"}`)
	cred, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if cred.ClientID != "id" || cred.ClientSecret != "secret" {
		t.Fatalf("unexpected credential %+v", cred)
	}

	if _, err := LoadCredentials(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	path = writeFile(t, "log.json", `{"client_id":"id"}`)
	if _, err := LoadCredentials(path); !errors.Is(err, auth.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ZONES_FILE", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("STATS_MAX_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OUTPUT_DIR", "out")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.Backoff.MaxAttempts != 3 || cfg.Backoff.BaseDelay != 2*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("unexpected level %v", cfg.LogLevel)
	}
	if cfg.MonthlyCSVPath() != filepath.Join("out", "s3_monthly_temperature.csv") {
		t.Fatalf("unexpected monthly path %q", cfg.MonthlyCSVPath())
	}

	t.Setenv("STATS_MAX_ATTEMPTS", "40")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "STATS_MAX_ATTEMPTS") {
		t.Fatalf("expected STATS_MAX_ATTEMPTS error, got %v", err)
	}
	t.Setenv("STATS_MAX_ATTEMPTS", "3")

	t.Setenv("FETCH_INTERVAL", "soon")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FETCH_INTERVAL") {
		t.Fatalf("expected FETCH_INTERVAL error, got %v", err)
	}
}
