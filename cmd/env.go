package main

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/config"
	"github.com/sells-group/farecast/internal/fetcher"
	"github.com/sells-group/farecast/internal/ingest"
	"github.com/sells-group/farecast/internal/report"
	"github.com/sells-group/farecast/internal/store"
	"github.com/sells-group/farecast/pkg/travelpayouts"
)

// appEnv holds the components a command needs.
type appEnv struct {
	Store     store.Store
	Client    travelpayouts.Client
	Refresher *ingest.Refresher
	Collector *ingest.Collector
	Analyzer  *report.Analyzer
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode and wires the store, API client and
// pipelines. The API client is only built when a token is configured.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	var collector report.Collector
	if cfg.Travelpayouts.Token != "" {
		env.Client = initClient(cfg.Travelpayouts)
		env.Refresher = ingest.NewRefresher(ingest.NewReferenceFetcher(env.Client, mtr), st, mtr)
		env.Collector = ingest.NewCollector(ingest.NewFlightFetcher(env.Client, mtr), st, mtr)
		collector = env.Collector
	}
	env.Analyzer = report.NewAnalyzer(st, collector, mtr, analyzerOptions(cfg.Forecast, cfg.Travelpayouts.Currency))

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.EnsureSchema(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initClient(tc config.TravelpayoutsConfig) travelpayouts.Client {
	limits := map[string]rate.Limit{}
	if u, err := url.Parse(tc.BaseURL); err == nil && u.Host != "" && tc.RequestsPerSecond > 0 {
		limits[u.Host] = rate.Limit(tc.RequestsPerSecond)
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    time.Duration(tc.TimeoutSecs) * time.Second,
		MaxRetries: tc.MaxRetries,
		RateLimits: limits,
	})
	return travelpayouts.NewClient(tc.Token,
		travelpayouts.WithBaseURL(tc.BaseURL),
		travelpayouts.WithCurrency(tc.Currency),
		travelpayouts.WithFetcher(f),
	)
}

func analyzerOptions(fc config.ForecastConfig, currency string) report.Options {
	return report.Options{
		Forecast: analysis.ForecastOptions{
			Horizon:      fc.HorizonDays,
			MinHistory:   fc.MinHistory,
			Degree:       fc.Degree,
			TestFraction: fc.TestFraction,
			Seed:         fc.Seed,
		},
		SeasonalPeriod: fc.SeasonalPeriod,
		FetchOnMiss:    fc.FetchOnMiss,
		Currency:       currency,
	}
}
