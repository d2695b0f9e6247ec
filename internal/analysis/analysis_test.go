package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farecast/internal/model"
)

var start = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(n int, f func(i int) float64) model.PriceSeries {
	s := make(model.PriceSeries, n)
	for i := range s {
		s[i] = model.PricePoint{Date: start.AddDate(0, 0, i), MinPrice: f(i)}
	}
	return s
}

func quadratic(x float64) float64 { return 4000 + 12*x - 0.4*x*x }

// --- Forecast ---

func TestFitForecast_InsufficientData(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 9} {
		_, err := FitForecast(makeSeries(n, func(int) float64 { return 100 }), DefaultForecastOptions())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientData), "n=%d", n)
	}
}

func TestFitForecast_MinHistoryHasFloor(t *testing.T) {
	t.Parallel()

	opts := DefaultForecastOptions()
	opts.MinHistory = 3
	_, err := FitForecast(makeSeries(9, func(i int) float64 { return float64(100 + i) }), opts)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestFitForecast_HorizonFollowsLastDate(t *testing.T) {
	t.Parallel()

	series := makeSeries(10, func(i int) float64 { return 5000 + float64(i) })
	fc, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)

	require.Len(t, fc.Points, 30)
	_, last, _ := series.Span()
	for k, p := range fc.Points {
		assert.Equal(t, last.AddDate(0, 0, k+1), p.Date)
	}
	assert.Equal(t, 8, fc.TrainSize)
	assert.Equal(t, 2, fc.TestSize)
}

func TestFitForecast_RecoversQuadratic(t *testing.T) {
	t.Parallel()

	series := makeSeries(45, func(i int) float64 { return quadratic(float64(i)) })
	fc, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)

	require.Len(t, fc.Coefficients, 3)
	assert.InDelta(t, 4000, fc.Coefficients[0], 1e-6)
	assert.InDelta(t, 12, fc.Coefficients[1], 1e-6)
	assert.InDelta(t, -0.4, fc.Coefficients[2], 1e-8)
	assert.InDelta(t, 0, fc.HoldoutRMSE, 1e-6)

	for _, p := range fc.Points {
		x := p.Date.Sub(start).Hours() / 24
		assert.InDelta(t, quadratic(x), p.PredictedPrice, 1e-5)
	}
}

func TestFitForecast_UsesTrainingSubsetOnly(t *testing.T) {
	t.Parallel()

	series := makeSeries(20, func(i int) float64 { return 3000 + 7*float64(i) + float64(i%3)*40 })
	base, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)

	_, test := splitIndices(series.Len(), 0.2, 42)
	require.Len(t, test, 4)

	perturbed := make(model.PriceSeries, len(series))
	copy(perturbed, series)
	for _, i := range test {
		perturbed[i].MinPrice += 1e6
	}

	got, err := FitForecast(perturbed, DefaultForecastOptions())
	require.NoError(t, err)
	for k := range base.Points {
		assert.InDelta(t, base.Points[k].PredictedPrice, got.Points[k].PredictedPrice, 1e-6)
	}
	assert.Greater(t, got.HoldoutRMSE, base.HoldoutRMSE)
}

func TestFitForecast_Deterministic(t *testing.T) {
	t.Parallel()

	series := makeSeries(25, func(i int) float64 { return 2000 + math.Sin(float64(i))*300 })
	a, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)
	b, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Points, b.Points)
}

func TestFitForecast_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	series := makeSeries(12, func(i int) float64 { return float64(100 + i) })
	before := make(model.PriceSeries, len(series))
	copy(before, series)

	_, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)
	assert.Equal(t, before, series)
}

func TestFitForecast_GappedDatesUseDayOffsets(t *testing.T) {
	t.Parallel()

	var series model.PriceSeries
	for i := 0; i < 40; i += 2 {
		d := start.AddDate(0, 0, i)
		series = append(series, model.PricePoint{Date: d, MinPrice: quadratic(float64(i))})
	}
	fc, err := FitForecast(series, DefaultForecastOptions())
	require.NoError(t, err)
	assert.Equal(t, start.AddDate(0, 0, 39), fc.Points[0].Date)
	assert.InDelta(t, quadratic(39), fc.Points[0].PredictedPrice, 1e-5)
}

func TestFitForecast_RejectsUnorderedSeries(t *testing.T) {
	t.Parallel()

	sameDay := make(model.PriceSeries, 12)
	for i := range sameDay {
		sameDay[i] = model.PricePoint{Date: start, MinPrice: 5000}
	}
	_, err := FitForecast(sameDay, DefaultForecastOptions())
	assert.ErrorIs(t, err, ErrUnorderedSeries)

	reversed := makeSeries(12, func(i int) float64 { return float64(100 + i) })
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	_, err = FitForecast(reversed, DefaultForecastOptions())
	assert.ErrorIs(t, err, ErrUnorderedSeries)
}

func TestFitPolynomial_TooFewDistinctDays(t *testing.T) {
	t.Parallel()

	xs := []float64{0, 0, 0, 0, 5, 5, 5, 5}
	ys := []float64{10, 11, 12, 13, 20, 21, 22, 23}
	idx := []int{0, 1, 2, 3, 4, 5, 6, 7}

	_, err := fitPolynomial(xs, ys, idx, 2)
	assert.ErrorIs(t, err, ErrInsufficientData)

	coef, err := fitPolynomial(xs, ys, idx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 11.5, coef[0], 1e-9)
	assert.InDelta(t, 2.0, coef[1], 1e-9)
}

func TestSplitIndices(t *testing.T) {
	t.Parallel()

	train, test := splitIndices(10, 0.2, 42)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 10)

	train2, test2 := splitIndices(10, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3 := splitIndices(11, 0.2, 42)
	assert.Len(t, test3, 3, "test size rounds up")
}

// --- Decompose ---

func TestDecompose_TooShort(t *testing.T) {
	t.Parallel()

	_, err := Decompose(makeSeries(59, func(int) float64 { return 1 }), DefaultPeriod)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSeriesTooShort))

	_, err = Decompose(makeSeries(60, func(int) float64 { return 1 }), DefaultPeriod)
	assert.NoError(t, err)
}

func TestDecompose_RejectsUnorderedSeries(t *testing.T) {
	t.Parallel()

	series := makeSeries(60, func(i int) float64 { return float64(i) })
	series[10], series[11] = series[11], series[10]
	_, err := Decompose(series, DefaultPeriod)
	assert.ErrorIs(t, err, ErrUnorderedSeries)
}

func TestDecompose_InvalidPeriod(t *testing.T) {
	t.Parallel()

	_, err := Decompose(makeSeries(10, func(int) float64 { return 1 }), 1)
	assert.Error(t, err)
}

func TestDecompose_LinearTrendPlusSeason(t *testing.T) {
	t.Parallel()

	const n = 90
	season := func(i int) float64 { return 100 * math.Sin(2*math.Pi*float64(i)/DefaultPeriod) }
	series := makeSeries(n, func(i int) float64 { return 5000 + 10*float64(i) + season(i) })

	d, err := Decompose(series, DefaultPeriod)
	require.NoError(t, err)
	require.Len(t, d.Trend, n)

	for i := range n {
		if i < 15 || i > n-16 {
			assert.True(t, math.IsNaN(d.Trend[i]), "trend[%d] should be NaN", i)
			assert.True(t, math.IsNaN(d.Resid[i]), "resid[%d] should be NaN", i)
			continue
		}
		assert.InDelta(t, 5000+10*float64(i), d.Trend[i], 1e-6, "trend[%d]", i)
		assert.InDelta(t, season(i), d.Seasonal[i], 1e-6, "seasonal[%d]", i)
		assert.InDelta(t, 0, d.Resid[i], 1e-6, "resid[%d]", i)
		assert.InDelta(t, d.Observed[i], d.Trend[i]+d.Seasonal[i]+d.Resid[i], 1e-9)
	}
	for i := 0; i+DefaultPeriod < n; i++ {
		assert.Equal(t, d.Seasonal[i], d.Seasonal[i+DefaultPeriod])
	}
}

func TestDecompose_SeasonalCentred(t *testing.T) {
	t.Parallel()

	series := makeSeries(75, func(i int) float64 { return float64((i * 37) % 101) })
	d, err := Decompose(series, DefaultPeriod)
	require.NoError(t, err)

	var sum float64
	for i := range DefaultPeriod {
		sum += d.Seasonal[i]
	}
	assert.InDelta(t, 0, sum, 1e-9)
	assert.Equal(t, series.Dates(), d.Dates)
}

func TestDecompose_OddPeriod(t *testing.T) {
	t.Parallel()

	series := makeSeries(21, func(i int) float64 { return float64(i) })
	d, err := Decompose(series, 7)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d.Trend[2]))
	assert.InDelta(t, 3, d.Trend[3], 1e-9)
	assert.InDelta(t, 17, d.Trend[17], 1e-9)
	assert.True(t, math.IsNaN(d.Trend[18]))
}
