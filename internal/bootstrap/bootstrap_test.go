package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/i474232898/climate-zones/internal/progress"
	"github.com/i474232898/climate-zones/internal/store"
)

func initTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ZONES_FILE", filepath.Join(dir, "zones.yaml"))
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("CREDENTIALS_FILE", filepath.Join(dir, "log.json"))
	t.Setenv("APP_ENV", "test")

	app, err := Init("test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(app.Close)
	return app
}

func TestOptionalBackendsDisabledByDefault(t *testing.T) {
	app := initTestApp(t)

	if sink := app.Influx(context.Background()); sink != nil {
		t.Fatalf("expected no influx sink, got %T", sink)
	}
	multi, ok := app.Progress(context.Background()).(progress.Multi)
	if !ok || len(multi) != 1 {
		t.Fatalf("expected log sink only, got %#v", multi)
	}
	st, err := app.Store()
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, ok := st.(*store.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", st)
	}
	if app.HTTP.Timeout != app.Config.HTTPTimeout || app.HTTP.Timeout == 0 {
		t.Fatalf("http client timeout not applied: %v", app.HTTP.Timeout)
	}
}

func TestStoreUsesSQLiteWhenConfigured(t *testing.T) {
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "climate.db"))
	app := initTestApp(t)

	st, err := app.Store()
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, ok := st.(*store.SQLiteStore); !ok {
		t.Fatalf("expected sqlite store, got %T", st)
	}
}

func TestStatisticsRequiresCredentials(t *testing.T) {
	app := initTestApp(t)
	if _, _, err := app.Statistics(); err == nil {
		t.Fatal("expected error for missing credentials file")
	}
}

func TestSinksDropsNil(t *testing.T) {
	csv := store.NewCSVStore(t.TempDir(), "monthly.csv")
	got := Sinks(csv, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 sink, got %d", len(got))
	}
}

func TestExecuteClosesBackendsOnFailure(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZONES_FILE", filepath.Join(dir, "zones.yaml"))
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "climate.db"))
	t.Setenv("APP_ENV", "test")

	var order []string
	code := execute("test", func(app *App) int {
		if _, err := app.Store(); err != nil {
			t.Fatalf("Store: %v", err)
		}
		app.OnClose(func() { order = append(order, "first") })
		app.OnClose(func() { order = append(order, "second") })
		return 1
	})

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("expected closers to run last-first, got %v", order)
	}
}

func TestExecuteReportsInitFailure(t *testing.T) {
	t.Setenv("ZONES_FILE", filepath.Join(t.TempDir(), "zones.yaml"))
	t.Setenv("LOG_LEVEL", "chatty")

	called := false
	code := execute("test", func(*App) int {
		called = true
		return 0
	})
	if code != 1 || called {
		t.Fatalf("expected init failure to exit 1 without running, got code=%d called=%v", code, called)
	}
}
