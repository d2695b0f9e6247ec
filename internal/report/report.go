// Package report turns a route query into price history, a seasonal
// decomposition, a forecast and their charts, with an explicit outcome that
// presentation layers map to user-facing text.
package report

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/farecast/internal/analysis"
	"github.com/sells-group/farecast/internal/chart"
	"github.com/sells-group/farecast/internal/model"
)

// Outcome classifies a report.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeNoData       Outcome = "no_data"
	OutcomeInsufficient Outcome = "insufficient_data"
	// OutcomeFailed means the history was unusable or the fit broke for a
	// reason other than its length.
	OutcomeFailed Outcome = "failed"
)

// Report is the result of analysing one route query.
type Report struct {
	Query   model.RouteQuery
	Outcome Outcome
	Series  model.PriceSeries
	// FetchedOnDemand is set when the store had no rows and quotes were
	// collected from the API before re-querying.
	FetchedOnDemand bool

	// MinHistory and Period are the thresholds the report was built with.
	MinHistory int
	Period     int
	// Currency labels prices, e.g. "rub".
	Currency string
	// Failure describes why an OutcomeFailed report has no forecast.
	Failure string

	Decomposition        *analysis.Decomposition
	DecompositionSkipped bool
	Forecast             *analysis.Forecast
	Charts               []*chart.Chart
}

// Chart returns the rendered chart of the given kind, or nil.
func (r *Report) Chart(kind chart.Kind) *chart.Chart {
	for _, c := range r.Charts {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// Stats summarizes the observed series.
type Stats struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	Days int     `json:"days"`
}

// Stats returns min/mean/max of the observed prices. ok is false for an
// empty series.
func (r *Report) Stats() (Stats, bool) {
	prices := r.Series.Prices()
	if len(prices) == 0 {
		return Stats{}, false
	}
	return Stats{
		Min:  floats.Min(prices),
		Mean: stat.Mean(prices, nil),
		Max:  floats.Max(prices),
		Days: len(prices),
	}, true
}

// BestForecast returns the forecast day with the lowest predicted price.
func (r *Report) BestForecast() (model.ForecastPoint, bool) {
	if r.Forecast == nil || len(r.Forecast.Points) == 0 {
		return model.ForecastPoint{}, false
	}
	best := r.Forecast.Points[0]
	for _, p := range r.Forecast.Points[1:] {
		if p.PredictedPrice < best.PredictedPrice {
			best = p
		}
	}
	return best, true
}

// Message renders the report for a human reader. No data, insufficient
// data, failure and success each produce distinct text.
func (r *Report) Message() string {
	switch r.Outcome {
	case OutcomeNoData:
		return fmt.Sprintf("No price data found for %s.", r.Query)
	case OutcomeInsufficient:
		return fmt.Sprintf("Not enough price history for %s to build a forecast: %d days found, at least %d needed.",
			r.Query, r.Series.Len(), r.MinHistory)
	case OutcomeFailed:
		return fmt.Sprintf("Could not build a forecast for %s: %s.", r.Query, r.Failure)
	}

	cur := r.currencyLabel()
	var b strings.Builder
	fmt.Fprintf(&b, "Route %s\n", r.Query)
	if s, ok := r.Stats(); ok {
		fmt.Fprintf(&b, "Observed over %d days: min %.0f %s, mean %.0f %s, max %.0f %s\n",
			s.Days, s.Min, cur, s.Mean, cur, s.Max, cur)
	}
	if r.DecompositionSkipped {
		fmt.Fprintf(&b, "Seasonal analysis skipped: fewer than %d days of history.\n", 2*r.Period)
	}
	if best, ok := r.BestForecast(); ok {
		fmt.Fprintf(&b, "Best expected price: %.0f %s on %s\n", best.PredictedPrice, cur, best.Date.Format(model.DateLayout))
		b.WriteString("Price forecast:\n")
		for _, p := range r.Forecast.Points {
			fmt.Fprintf(&b, "%s: %.0f %s\n", p.Date.Format("02.01"), p.PredictedPrice, cur)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Report) currencyLabel() string {
	if r.Currency == "" {
		return "RUB"
	}
	return strings.ToUpper(r.Currency)
}
