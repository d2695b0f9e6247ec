package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidQuery is returned for malformed route queries.
var ErrInvalidQuery = eris.New("invalid route query")

// RouteQuery selects a route and an inclusive departure-date range.
type RouteQuery struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// ParseRouteQuery builds a RouteQuery from primitive inputs: two IATA codes
// and two YYYY-MM-DD dates. Codes are upper-cased.
func ParseRouteQuery(origin, destination, start, end string) (RouteQuery, error) {
	q := RouteQuery{
		Origin:      strings.ToUpper(strings.TrimSpace(origin)),
		Destination: strings.ToUpper(strings.TrimSpace(destination)),
	}
	if !validIATA(q.Origin) {
		return RouteQuery{}, eris.Wrapf(ErrInvalidQuery, "origin %q is not an IATA code", origin)
	}
	if !validIATA(q.Destination) {
		return RouteQuery{}, eris.Wrapf(ErrInvalidQuery, "destination %q is not an IATA code", destination)
	}

	var err error
	if q.Start, err = time.Parse(DateLayout, strings.TrimSpace(start)); err != nil {
		return RouteQuery{}, eris.Wrapf(ErrInvalidQuery, "start date %q: use YYYY-MM-DD", start)
	}
	if q.End, err = time.Parse(DateLayout, strings.TrimSpace(end)); err != nil {
		return RouteQuery{}, eris.Wrapf(ErrInvalidQuery, "end date %q: use YYYY-MM-DD", end)
	}
	if q.End.Before(q.Start) {
		return RouteQuery{}, eris.Wrapf(ErrInvalidQuery, "end date %s is before start date %s", end, start)
	}
	return q, nil
}

func validIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// StartDate returns the start of the range as YYYY-MM-DD.
func (q RouteQuery) StartDate() string { return q.Start.Format(DateLayout) }

// EndDate returns the end of the range as YYYY-MM-DD.
func (q RouteQuery) EndDate() string { return q.End.Format(DateLayout) }

// String renders the route and range, e.g. "LED -> MOW (2024-07-01 - 2024-07-30)".
func (q RouteQuery) String() string {
	return fmt.Sprintf("%s -> %s (%s - %s)", q.Origin, q.Destination, q.StartDate(), q.EndDate())
}

// PricePoint is the minimum observed price for one departure date.
type PricePoint struct {
	Date     time.Time `json:"date"`
	MinPrice float64   `json:"min_price"`
}

// PriceSeries is a date-ascending sequence of PricePoints with unique dates.
type PriceSeries []PricePoint

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s) }

// Dates returns the point dates in order.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Prices returns the point prices in order.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.MinPrice
	}
	return out
}

// Span returns the first and last dates. ok is false for an empty series.
func (s PriceSeries) Span() (first, last time.Time, ok bool) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s[0].Date, s[len(s)-1].Date, true
}

// Ordered reports whether dates are strictly ascending, which also implies uniqueness.
func (s PriceSeries) Ordered() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].Date.After(s[i-1].Date) {
			return false
		}
	}
	return true
}

// ForecastPoint is a predicted price for a future departure date.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	PredictedPrice float64   `json:"predicted_price"`
}
