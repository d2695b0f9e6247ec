// Package ingest pulls reference data and flight prices from Travelpayouts
// and persists them. Upstream failures are logged and degrade to empty
// results; they never abort a pipeline.
package ingest

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/metrics"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/resilience"
	"github.com/sells-group/farecast/pkg/travelpayouts"
)

// ReferenceFetcher retrieves the static airports, cities and countries datasets.
type ReferenceFetcher struct {
	client  travelpayouts.Client
	metrics *metrics.Metrics
}

// NewReferenceFetcher creates a ReferenceFetcher.
func NewReferenceFetcher(client travelpayouts.Client, m *metrics.Metrics) *ReferenceFetcher {
	return &ReferenceFetcher{client: client, metrics: m}
}

// Fetch returns the raw records for a reference kind. ok is false when the
// request, status or decode failed.
func (f *ReferenceFetcher) Fetch(ctx context.Context, kind model.Kind) ([]model.RawRecord, bool) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("dataset", string(kind)))

	if !kind.IsReference() {
		log.Error("not a reference dataset")
		f.metrics.FetchFailed(string(kind))
		return nil, false
	}

	records, err := f.client.Dataset(ctx, string(kind))
	if err != nil {
		log.Error("failed to fetch reference data", zap.Error(err))
		f.metrics.FetchFailed(string(kind))
		return nil, false
	}

	f.metrics.Fetched(string(kind), len(records))
	log.Debug("reference data fetched", zap.Int("records", len(records)))
	return toRaw(records), true
}

// FlightFetcher retrieves price quotes for one route and departure date.
// Five consecutive transport failures open a circuit breaker for a minute.
// success=false responses are per-route and do not count.
type FlightFetcher struct {
	client  travelpayouts.Client
	metrics *metrics.Metrics
	breaker *resilience.Breaker
}

// NewFlightFetcher creates a FlightFetcher.
func NewFlightFetcher(client travelpayouts.Client, m *metrics.Metrics) *FlightFetcher {
	return &FlightFetcher{
		client:  client,
		metrics: m,
		breaker: resilience.NewBreaker("travelpayouts", resilience.Config{
			Threshold: 5,
			Cooldown:  time.Minute,
			ShouldTrip: func(err error) bool {
				return !errors.Is(err, travelpayouts.ErrUnsuccessful) && !errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Fetch returns raw price quotes. departureDate is YYYY-MM-DD (or YYYY-MM for
// a whole month). A response with success=false counts as a failure.
func (f *FlightFetcher) Fetch(ctx context.Context, origin, destination, departureDate string) ([]model.RawRecord, bool) {
	dataset := string(model.KindFlights)
	req := travelpayouts.PricesRequest{
		Origin:      strings.ToUpper(origin),
		Destination: strings.ToUpper(destination),
		DepartureAt: departureDate,
	}

	resp, err := resilience.Do(ctx, f.breaker, func(ctx context.Context) (*travelpayouts.PricesResponse, error) {
		return f.client.PricesForDates(ctx, req)
	})
	if err != nil {
		zap.L().Error("failed to fetch flight prices",
			zap.String("component", "ingest"),
			zap.String("origin", req.Origin),
			zap.String("destination", req.Destination),
			zap.String("departure_at", req.DepartureAt),
			zap.Error(err),
		)
		f.metrics.FetchFailed(dataset)
		return nil, false
	}

	f.metrics.Fetched(dataset, len(resp.Data))
	return toRaw(resp.Data), true
}

func toRaw(records []map[string]any) []model.RawRecord {
	out := make([]model.RawRecord, len(records))
	for i, r := range records {
		out[i] = model.RawRecord(r)
	}
	return out
}
