package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/chart"
	"github.com/sells-group/farecast/internal/metrics"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/store"
)

// Collector fetches and persists quotes for one departure date.
type Collector interface {
	Collect(ctx context.Context, origin, destination string, date time.Time) (int64, error)
}

// Options tunes the analyzer.
type Options struct {
	Forecast       analysis.ForecastOptions
	SeasonalPeriod int
	// FetchOnMiss collects quotes for the start date when the store has none.
	FetchOnMiss bool
	// Currency labels prices in messages and charts.
	Currency string
}

// DefaultOptions returns the standard 30-day setup with on-demand fetching.
func DefaultOptions() Options {
	return Options{
		Forecast:       analysis.DefaultForecastOptions(),
		SeasonalPeriod: analysis.DefaultPeriod,
		FetchOnMiss:    true,
		Currency:       "rub",
	}
}

// Analyzer builds reports from the store.
type Analyzer struct {
	store     store.Store
	collector Collector
	metrics   *metrics.Metrics
	opts      Options
}

// NewAnalyzer creates an Analyzer. collector may be nil, which disables
// on-demand fetching.
func NewAnalyzer(st store.Store, collector Collector, m *metrics.Metrics, opts Options) *Analyzer {
	return &Analyzer{store: st, collector: collector, metrics: m, opts: opts}
}

// Analyze runs query → decomposition → forecast → charts. It never fails:
// store, analysis and rendering problems are logged and reflected in the
// report's outcome or missing parts.
func (a *Analyzer) Analyze(ctx context.Context, q model.RouteQuery) *Report {
	log := zap.L().With(zap.String("component", "report"), zap.String("route", q.String()))

	series := a.query(ctx, q)
	fetched := false
	if series.Len() == 0 && a.opts.FetchOnMiss && a.collector != nil {
		log.Info("no stored prices, fetching from API")
		n, err := a.collector.Collect(ctx, q.Origin, q.Destination, q.Start)
		if err != nil {
			log.Error("on-demand fetch failed", zap.Error(err))
		}
		if n > 0 {
			fetched = true
			series = a.query(ctx, q)
		}
	}

	r := a.AnalyzeSeries(q, series)
	r.FetchedOnDemand = fetched
	return r
}

// AnalyzeSeries builds a report from an already loaded series without
// touching the store. A series that is not strictly ascending by date gets
// OutcomeFailed.
func (a *Analyzer) AnalyzeSeries(q model.RouteQuery, series model.PriceSeries) *Report {
	log := zap.L().With(zap.String("component", "report"), zap.String("route", q.String()))
	r := &Report{
		Query:      q,
		Series:     series,
		MinHistory: a.opts.Forecast.MinHistory,
		Period:     a.opts.SeasonalPeriod,
		Currency:   a.opts.Currency,
	}
	defer func() { a.metrics.Report(string(r.Outcome)) }()

	if r.Series.Len() == 0 {
		r.Outcome = OutcomeNoData
		return r
	}
	if !r.Series.Ordered() {
		log.Error("price history is not strictly ascending by date", zap.Int("points", r.Series.Len()))
		r.Outcome = OutcomeFailed
		r.Failure = "price history dates must be unique and ascending"
		return r
	}

	if c, err := chart.History(q, r.Series, a.opts.Currency); err != nil {
		log.Error("history chart failed", zap.Error(err))
	} else {
		r.Charts = append(r.Charts, c)
	}

	start := time.Now()
	d, err := analysis.Decompose(r.Series, a.opts.SeasonalPeriod)
	a.metrics.ObserveStage("decompose", start)
	switch {
	case errors.Is(err, analysis.ErrSeriesTooShort):
		log.Info("skipping seasonal decomposition", zap.Int("days", r.Series.Len()))
		r.DecompositionSkipped = true
	case err != nil:
		log.Error("seasonal decomposition failed", zap.Error(err))
		r.DecompositionSkipped = true
	default:
		r.Decomposition = d
		if c, err := chart.Decomposition(q, d); err != nil {
			log.Error("decomposition chart failed", zap.Error(err))
		} else {
			r.Charts = append(r.Charts, c)
		}
	}

	start = time.Now()
	fc, err := analysis.FitForecast(r.Series, a.opts.Forecast)
	a.metrics.ObserveStage("forecast", start)
	if err != nil {
		if errors.Is(err, analysis.ErrInsufficientData) {
			log.Info("not enough history to forecast", zap.Int("days", r.Series.Len()))
			r.Outcome = OutcomeInsufficient
			return r
		}
		log.Error("forecast failed", zap.Error(err))
		r.Outcome = OutcomeFailed
		r.Failure = "the price model could not be fitted"
		return r
	}
	r.Forecast = fc
	r.Outcome = OutcomeOK

	if c, err := chart.Forecast(q, r.Series, fc, a.opts.Currency); err != nil {
		log.Error("forecast chart failed", zap.Error(err))
	} else {
		r.Charts = append(r.Charts, c)
	}

	log.Info("report ready",
		zap.Int("days", r.Series.Len()),
		zap.Int("charts", len(r.Charts)),
		zap.Float64("holdout_rmse", fc.HoldoutRMSE),
	)
	return r
}

func (a *Analyzer) query(ctx context.Context, q model.RouteQuery) model.PriceSeries {
	start := time.Now()
	defer a.metrics.ObserveStage("query", start)

	series, err := a.store.MinPriceByDate(ctx, q)
	if err != nil {
		zap.L().Error("price history query failed",
			zap.String("component", "report"),
			zap.String("route", q.String()),
			zap.Error(err),
		)
		return nil
	}
	return series
}
