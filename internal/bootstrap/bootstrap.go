// Package bootstrap builds the shared pieces every command wires together.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/i474232898/climate-zones/internal/auth"
	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/climate/providers"
	"github.com/i474232898/climate-zones/internal/config"
	"github.com/i474232898/climate-zones/internal/logging"
	"github.com/i474232898/climate-zones/internal/progress"
	"github.com/i474232898/climate-zones/internal/store"
)

// App holds configuration, the logger and the shared HTTP client.
type App struct {
	Config *config.AppConfig
	Logger *slog.Logger
	HTTP   *http.Client

	closers []func()
}

// Init loads configuration and sets up logging.
func Init(appName string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel, appName)
	slog.SetDefault(logger)

	return &App{
		Config: cfg,
		Logger: logger,
		// Shared HTTP client for outbound calls.
		HTTP: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// Main initializes the App, calls run and exits with its code once every
// backend has been closed.
func Main(appName string, run func(app *App) int) {
	os.Exit(execute(appName, run))
}

func execute(appName string, run func(app *App) int) int {
	app, err := Init(appName)
	if err != nil {
		slog.Error("startup failed", "app", appName, "error", err)
		return 1
	}
	defer app.Close()
	return run(app)
}

// OnClose registers fn to run when the App is closed.
func (a *App) OnClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases every optional backend opened through the App, last opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Archive returns the Open-Meteo archive client.
func (a *App) Archive() *providers.OpenMeteoArchive {
	return providers.NewOpenMeteoArchive(a.HTTP, a.Config.ArchiveURL)
}

// Statistics loads the credential file and returns the statistics client with
// its credential provider. A missing file or key is returned as an error.
func (a *App) Statistics() (*providers.StatisticsClient, *auth.ClientCredentials, error) {
	cred, err := config.LoadCredentials(a.Config.CredentialsFile)
	if err != nil {
		return nil, nil, err
	}

	creds, err := auth.NewClientCredentials(cred, a.Config.TokenURL, a.HTTP)
	if err != nil {
		return nil, nil, err
	}

	client := providers.NewStatisticsClient(providers.HTTPClientConfig{
		Client:  a.HTTP,
		Backoff: a.Config.Backoff,
	}, a.Config.StatisticsURL, creds, a.Logger)
	return client, creds, nil
}

// Progress returns the log sink, fanned out to Redis when REDIS_ADDR is set
// and reachable.
func (a *App) Progress(ctx context.Context) progress.Sink {
	sinks := progress.Multi{progress.NewLogSink(a.Logger)}

	rc := a.Config.Redis
	if rc.Addr == "" {
		return sinks
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.Logger.Warn("redis unavailable; progress stream disabled", "addr", rc.Addr, "error", err)
		_ = client.Close()
		return sinks
	}

	a.OnClose(func() { _ = client.Close() })
	a.Logger.Info("publishing progress to redis", "addr", rc.Addr, "stream", rc.Stream)
	return append(sinks, progress.NewRedisSink(client, rc.Stream, a.Logger))
}

// CSV returns the CSV output store rooted at OUTPUT_DIR.
func (a *App) CSV() *store.CSVStore {
	return store.NewCSVStore(a.Config.OutputDir, a.Config.MonthlyCSVPath())
}

// Influx returns the InfluxDB export sink when INFLUX_URL is set, or nil.
func (a *App) Influx(ctx context.Context) climate.Sink {
	ic := a.Config.Influx
	if ic.URL == "" {
		return nil
	}

	sink, err := store.NewInfluxSink(ctx, ic)
	if err != nil {
		a.Logger.Warn("influx unavailable; export disabled", "url", ic.URL, "error", err)
		return nil
	}
	a.OnClose(sink.Close)
	return sink
}

// Store returns the queryable store: SQLite when SQLITE_PATH is set, memory otherwise.
func (a *App) Store() (climate.Store, error) {
	if a.Config.SQLitePath == "" {
		return store.NewMemoryStore(0), nil
	}

	db, err := store.OpenSQLite(a.Config.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.OnClose(func() {
		if err := db.Close(); err != nil {
			a.Logger.Error("close sqlite", "error", err)
		}
	})
	return db, nil
}

// Sinks collects the non-nil sinks.
func Sinks(sinks ...climate.Sink) []climate.Sink {
	out := make([]climate.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// ReportRetries forwards statistics retries to the service's progress sink.
func ReportRetries(client *providers.StatisticsClient, svc *climate.Service) {
	client.OnRetry(func(info providers.RetryInfo) {
		svc.ReportRetry(info.Zone, info.Year, info.Attempt, info.Outcome, info.Wait, info.Err)
	})
}
