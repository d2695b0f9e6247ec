package analysis

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/farecast/internal/model"
)

// ErrInsufficientData is returned when a series is too short to fit, or its
// dates are too few to determine the polynomial.
var ErrInsufficientData = eris.New("analysis: insufficient data for forecast")

// MinObservations is the floor on history length for any forecast,
// regardless of ForecastOptions.MinHistory.
const MinObservations = 10

// ErrUnorderedSeries is returned for a series whose dates are not strictly
// ascending, which includes duplicate dates.
var ErrUnorderedSeries = eris.New("analysis: series dates are not strictly ascending")

// ForecastOptions tunes the polynomial forecaster.
type ForecastOptions struct {
	Horizon      int
	MinHistory   int
	Degree       int
	TestFraction float64
	Seed         uint64
}

// DefaultForecastOptions returns a 30-day, degree-2 forecast with an 80/20
// split seeded at 42.
func DefaultForecastOptions() ForecastOptions {
	return ForecastOptions{
		Horizon:      30,
		MinHistory:   10,
		Degree:       2,
		TestFraction: 0.2,
		Seed:         42,
	}
}

// Forecast holds predicted prices for the days after the last observation.
type Forecast struct {
	Points []model.ForecastPoint
	// Coefficients are in ascending power order: c0 + c1*x + c2*x^2 ...
	Coefficients []float64
	// Epoch is the date at x = 0.
	Epoch     time.Time
	TrainSize int
	TestSize  int
	// HoldoutRMSE is measured on the held-out subset and plays no part in the fit.
	HoldoutRMSE float64
}

// Predict evaluates the fitted polynomial at date d.
func (f *Forecast) Predict(d time.Time) float64 {
	return polyval(f.Coefficients, dayOffset(f.Epoch, d))
}

// FitForecast fits an ordinary least-squares polynomial of day offset to the
// training subset of a deterministic shuffle split, then predicts
// opts.Horizon consecutive days after the latest date. The series must be
// strictly ascending by date and is not modified.
func FitForecast(series model.PriceSeries, opts ForecastOptions) (*Forecast, error) {
	if opts.Degree < 1 || opts.Horizon < 1 {
		return nil, eris.Errorf("analysis: invalid forecast options degree=%d horizon=%d", opts.Degree, opts.Horizon)
	}
	if !series.Ordered() {
		return nil, ErrUnorderedSeries
	}
	n := series.Len()
	minHistory := max(opts.MinHistory, MinObservations, opts.Degree+2)
	if n < minHistory {
		return nil, eris.Wrapf(ErrInsufficientData, "%d observations, need %d", n, minHistory)
	}

	epoch, last := series[0].Date, series[n-1].Date

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range series {
		xs[i] = dayOffset(epoch, p.Date)
		ys[i] = p.MinPrice
	}

	train, test := splitIndices(n, opts.TestFraction, opts.Seed)
	if len(train) < opts.Degree+1 {
		return nil, eris.Wrapf(ErrInsufficientData, "%d training observations for degree %d", len(train), opts.Degree)
	}

	coef, err := fitPolynomial(xs, ys, train, opts.Degree)
	if err != nil {
		return nil, err
	}

	fc := &Forecast{
		Coefficients: coef,
		Epoch:        epoch,
		TrainSize:    len(train),
		TestSize:     len(test),
		HoldoutRMSE:  holdoutRMSE(coef, xs, ys, test),
		Points:       make([]model.ForecastPoint, opts.Horizon),
	}
	for k := range opts.Horizon {
		d := last.AddDate(0, 0, k+1)
		fc.Points[k] = model.ForecastPoint{Date: d, PredictedPrice: fc.Predict(d)}
	}
	return fc, nil
}

// splitIndices shuffles 0..n-1 with a PCG source seeded by seed and returns
// the first ceil(fraction*n) positions as the test set and the rest as training.
func splitIndices(n int, fraction float64, seed uint64) (train, test []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	nTest := int(math.Ceil(fraction * float64(n)))
	nTest = min(max(nTest, 0), n)
	return perm[nTest:], perm[:nTest]
}

func fitPolynomial(xs, ys []float64, idx []int, degree int) ([]float64, error) {
	distinct := make(map[float64]struct{}, len(idx))
	for _, i := range idx {
		distinct[xs[i]] = struct{}{}
	}
	if len(distinct) < degree+1 {
		return nil, eris.Wrapf(ErrInsufficientData, "%d distinct days for degree %d", len(distinct), degree)
	}

	a := mat.NewDense(len(idx), degree+1, nil)
	b := mat.NewVecDense(len(idx), nil)
	for r, i := range idx {
		v := 1.0
		for c := 0; c <= degree; c++ {
			a.Set(r, c, v)
			v *= xs[i]
		}
		b.SetVec(r, ys[i])
	}

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		// Too few distinct x values leave the system rank deficient.
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, eris.Wrapf(ErrInsufficientData, "least squares fit is ill-conditioned (%v)", err)
		}
		return nil, eris.Wrap(err, "analysis: least squares fit")
	}
	return mat.Col(nil, 0, &coef), nil
}

func holdoutRMSE(coef, xs, ys []float64, idx []int) float64 {
	if len(idx) == 0 {
		return math.NaN()
	}
	sq := make([]float64, len(idx))
	for k, i := range idx {
		e := polyval(coef, xs[i]) - ys[i]
		sq[k] = e * e
	}
	return math.Sqrt(stat.Mean(sq, nil))
}

func polyval(coef []float64, x float64) float64 {
	var y float64
	for i := len(coef) - 1; i >= 0; i-- {
		y = y*x + coef[i]
	}
	return y
}

func dayOffset(epoch, d time.Time) float64 {
	return math.Round(d.Sub(epoch).Hours() / 24)
}
