package report

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farecast/internal/chart"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/store"
)

var start = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func flightsFor(days int) []model.FlightPrice {
	var out []model.FlightPrice
	for i := range days {
		d := start.AddDate(0, 0, i)
		price := 5000 + 15*float64(i) + 250*math.Sin(2*math.Pi*float64(i)/30)
		for _, extra := range []float64{0, 300} {
			out = append(out, model.FlightPrice{
				OriginIATA:        "LED",
				DestinationIATA:   "MOW",
				DepartureDatetime: d.Add(8 * time.Hour),
				DepartureDate:     d.Format(model.DateLayout),
				PriceRub:          price + extra,
				ExtractedAt:       start,
			})
		}
	}
	return out
}

func seed(t *testing.T, st *store.SQLiteStore, days int) {
	t.Helper()
	_, err := st.InsertFlights(context.Background(), flightsFor(days))
	require.NoError(t, err)
}

func query(t *testing.T, end string) model.RouteQuery {
	t.Helper()
	q, err := model.ParseRouteQuery("LED", "MOW", "2024-07-01", end)
	require.NoError(t, err)
	return q
}

type fakeCollector struct {
	st    *store.SQLiteStore
	days  int
	err   error
	calls int
}

func (f *fakeCollector) Collect(ctx context.Context, origin, destination string, date time.Time) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.st.InsertFlights(ctx, flightsFor(f.days))
}

type brokenStore struct {
	store.Store
}

func (brokenStore) MinPriceByDate(context.Context, model.RouteQuery) (model.PriceSeries, error) {
	return nil, errors.New("database is locked")
}

func TestAnalyze_NoData(t *testing.T) {
	st := newTestStore(t)

	r := NewAnalyzer(st, nil, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, OutcomeNoData, r.Outcome)
	assert.Empty(t, r.Charts)
	assert.Nil(t, r.Forecast)
	assert.Contains(t, r.Message(), "No price data")
	assert.Contains(t, r.Message(), "LED -> MOW")
}

func TestAnalyze_FetchOnMiss(t *testing.T) {
	st := newTestStore(t)
	c := &fakeCollector{st: st, days: 12}

	r := NewAnalyzer(st, c, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, 1, c.calls)
	assert.True(t, r.FetchedOnDemand)
	assert.Equal(t, OutcomeOK, r.Outcome)
	assert.Equal(t, 12, r.Series.Len())
	assert.True(t, r.DecompositionSkipped)
	assert.NotNil(t, r.Chart(chart.KindHistory))
	assert.Nil(t, r.Chart(chart.KindDecomposition))
	assert.NotNil(t, r.Chart(chart.KindForecast))
	assert.Contains(t, r.Message(), "Seasonal analysis skipped")
}

func TestAnalyze_FetchOnMissDisabledOrFailing(t *testing.T) {
	st := newTestStore(t)

	opts := DefaultOptions()
	opts.FetchOnMiss = false
	c := &fakeCollector{st: st, days: 12}
	r := NewAnalyzer(st, c, nil, opts).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, OutcomeNoData, r.Outcome)
	assert.Zero(t, c.calls)

	failing := &fakeCollector{st: st, err: errors.New("api down")}
	r = NewAnalyzer(st, failing, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, OutcomeNoData, r.Outcome)
	assert.False(t, r.FetchedOnDemand)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, 5)

	r := NewAnalyzer(st, nil, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, OutcomeInsufficient, r.Outcome)
	assert.Equal(t, 5, r.Series.Len())
	assert.Nil(t, r.Forecast)
	assert.NotNil(t, r.Chart(chart.KindHistory), "history is still rendered")
	assert.Nil(t, r.Chart(chart.KindForecast))
	assert.Contains(t, r.Message(), "Not enough price history")
	assert.Contains(t, r.Message(), "5 days found, at least 10 needed")
}

func TestAnalyze_FullReport(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, 70)

	r := NewAnalyzer(st, nil, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-09-30"))
	require.Equal(t, OutcomeOK, r.Outcome)
	assert.Equal(t, 70, r.Series.Len())
	assert.InDelta(t, 5000, r.Series[0].MinPrice, 1e-9, "minimum per date")
	assert.False(t, r.DecompositionSkipped)
	require.NotNil(t, r.Decomposition)
	require.NotNil(t, r.Forecast)
	assert.Len(t, r.Forecast.Points, 30)
	assert.Len(t, r.Charts, 3)

	msg := r.Message()
	assert.Contains(t, msg, "Price forecast:")
	assert.Contains(t, msg, "Best expected price")
	assert.NotContains(t, msg, "skipped")

	s, ok := r.Stats()
	require.True(t, ok)
	assert.Equal(t, 70, s.Days)
	assert.LessOrEqual(t, s.Min, s.Mean)
	assert.LessOrEqual(t, s.Mean, s.Max)
}

func TestAnalyze_StoreErrorDegradesToNoData(t *testing.T) {
	r := NewAnalyzer(brokenStore{}, nil, nil, DefaultOptions()).Analyze(context.Background(), query(t, "2024-07-30"))
	assert.Equal(t, OutcomeNoData, r.Outcome)
}

func TestReport_MessagesAreDistinct(t *testing.T) {
	q := query(t, "2024-07-30")
	series := model.PriceSeries{{Date: start, MinPrice: 100}}

	noData := (&Report{Query: q, Outcome: OutcomeNoData}).Message()
	insufficient := (&Report{Query: q, Outcome: OutcomeInsufficient, Series: series, MinHistory: 10}).Message()
	failed := (&Report{Query: q, Outcome: OutcomeFailed, Series: series, Failure: "boom"}).Message()
	ok := (&Report{Query: q, Outcome: OutcomeOK, Series: series}).Message()

	msgs := map[string]bool{noData: true, insufficient: true, failed: true, ok: true}
	assert.Len(t, msgs, 4)
	assert.Contains(t, failed, "boom")
	assert.NotContains(t, failed, "days found")
}

func TestReport_BestForecast(t *testing.T) {
	_, ok := (&Report{}).BestForecast()
	assert.False(t, ok)
}

func TestAnalyzeSeries_WithoutStore(t *testing.T) {
	var series model.PriceSeries
	for i := range 15 {
		series = append(series, model.PricePoint{Date: start.AddDate(0, 0, i), MinPrice: 4000 + 10*float64(i)})
	}

	r := NewAnalyzer(nil, nil, nil, DefaultOptions()).AnalyzeSeries(query(t, "2024-07-15"), series)
	require.Equal(t, OutcomeOK, r.Outcome)
	assert.True(t, r.DecompositionSkipped, "15 days is shorter than two seasonal cycles")
	require.NotNil(t, r.Forecast)
	assert.NotNil(t, r.Chart(chart.KindHistory))
	assert.NotNil(t, r.Chart(chart.KindForecast))
	assert.Nil(t, r.Chart(chart.KindDecomposition))
	assert.Contains(t, r.Message(), "Seasonal analysis skipped")
}

func TestAnalyzeSeries_Empty(t *testing.T) {
	r := NewAnalyzer(nil, nil, nil, DefaultOptions()).AnalyzeSeries(query(t, "2024-07-15"), nil)
	assert.Equal(t, OutcomeNoData, r.Outcome)
	assert.Empty(t, r.Charts)
}

func TestAnalyzeSeries_DuplicateDatesFail(t *testing.T) {
	series := make(model.PriceSeries, 12)
	for i := range series {
		series[i] = model.PricePoint{Date: start, MinPrice: 5000}
	}

	r := NewAnalyzer(nil, nil, nil, DefaultOptions()).AnalyzeSeries(query(t, "2024-07-15"), series)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Nil(t, r.Forecast)
	assert.Nil(t, r.Decomposition)
	assert.Empty(t, r.Charts)
	assert.Contains(t, r.Message(), "unique and ascending")
	assert.NotContains(t, r.Message(), "Best expected price")
}

func TestAnalyzeSeries_UnsortedFails(t *testing.T) {
	var series model.PriceSeries
	for i := 11; i >= 0; i-- {
		series = append(series, model.PricePoint{Date: start.AddDate(0, 0, i), MinPrice: 4000 + 10*float64(i)})
	}

	r := NewAnalyzer(nil, nil, nil, DefaultOptions()).AnalyzeSeries(query(t, "2024-07-15"), series)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.Nil(t, r.Forecast)
}

func TestAnalyzeSeries_FitErrorIsNotInsufficientData(t *testing.T) {
	var series model.PriceSeries
	for i := range 15 {
		series = append(series, model.PricePoint{Date: start.AddDate(0, 0, i), MinPrice: 4000 + 10*float64(i)})
	}
	opts := DefaultOptions()
	opts.Forecast.Degree = 0

	r := NewAnalyzer(nil, nil, nil, opts).AnalyzeSeries(query(t, "2024-07-15"), series)
	assert.Equal(t, OutcomeFailed, r.Outcome)
	assert.NotNil(t, r.Chart(chart.KindHistory))
	assert.Contains(t, r.Message(), "could not be fitted")
	assert.NotContains(t, r.Message(), "days found")
}

func TestAnalyzeSeries_CurrencyLabel(t *testing.T) {
	var series model.PriceSeries
	for i := range 12 {
		series = append(series, model.PricePoint{Date: start.AddDate(0, 0, i), MinPrice: 60 + float64(i)})
	}
	opts := DefaultOptions()
	opts.Currency = "usd"

	r := NewAnalyzer(nil, nil, nil, opts).AnalyzeSeries(query(t, "2024-07-15"), series)
	require.Equal(t, OutcomeOK, r.Outcome)
	assert.Contains(t, r.Message(), "USD")
	assert.NotContains(t, r.Message(), "RUB")

	assert.Contains(t, (&Report{Outcome: OutcomeOK, Series: series}).Message(), "RUB")
}
