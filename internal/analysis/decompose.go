// Package analysis decomposes a daily price series into trend, seasonal and
// residual parts and fits a polynomial forecast over it.
package analysis

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/farecast/internal/model"
)

// DefaultPeriod is the assumed seasonal cycle in observations.
const DefaultPeriod = 30

// ErrSeriesTooShort is returned when a series holds fewer than two full periods.
var ErrSeriesTooShort = eris.New("analysis: series too short for decomposition")

// Decomposition is an additive split observed = trend + seasonal + resid.
// Trend and Resid are NaN where the centred window does not fit.
type Decomposition struct {
	Period   int
	Dates    []time.Time
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Resid    []float64
}

// Decompose runs an additive moving-average decomposition over the series
// positions (gaps between dates are not filled). The series must be strictly
// ascending by date and is not modified.
func Decompose(series model.PriceSeries, period int) (*Decomposition, error) {
	if period < 2 {
		return nil, eris.Errorf("analysis: invalid period %d", period)
	}
	if !series.Ordered() {
		return nil, ErrUnorderedSeries
	}
	n := series.Len()
	if n < 2*period {
		return nil, eris.Wrapf(ErrSeriesTooShort, "%d observations, need %d", n, 2*period)
	}

	observed := series.Prices()
	trend := movingAverage(observed, period)

	detrended := make([]float64, n)
	floats.SubTo(detrended, observed, trend)

	averages := make([]float64, period)
	for phase := range period {
		var vals []float64
		for i := phase; i < n; i += period {
			if !math.IsNaN(detrended[i]) {
				vals = append(vals, detrended[i])
			}
		}
		averages[phase] = math.NaN()
		if len(vals) > 0 {
			averages[phase] = stat.Mean(vals, nil)
		}
	}
	floats.AddConst(-nanMean(averages), averages)

	seasonal := make([]float64, n)
	for i := range seasonal {
		seasonal[i] = averages[i%period]
	}
	resid := make([]float64, n)
	floats.SubTo(resid, detrended, seasonal)

	return &Decomposition{
		Period:   period,
		Dates:    series.Dates(),
		Observed: observed,
		Trend:    trend,
		Seasonal: seasonal,
		Resid:    resid,
	}, nil
}

// movingAverage applies a centred moving average. Even periods use the 2×m
// filter with half weights on both ends.
func movingAverage(x []float64, period int) []float64 {
	var weights []float64
	if period%2 == 0 {
		weights = make([]float64, period+1)
		for i := range weights {
			weights[i] = 1
		}
		weights[0], weights[period] = 0.5, 0.5
	} else {
		weights = make([]float64, period)
		for i := range weights {
			weights[i] = 1
		}
	}
	floats.Scale(1/float64(period), weights)

	half := period / 2
	out := make([]float64, len(x))
	for i := range out {
		lo, hi := i-half, i-half+len(weights)
		if lo < 0 || hi > len(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Dot(weights, x[lo:hi])
	}
	return out
}

func nanMean(x []float64) float64 {
	var sum float64
	var n int
	for _, v := range x {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
