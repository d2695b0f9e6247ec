package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/metrics"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/normalize"
	"github.com/sells-group/farecast/internal/store"
)

// Collector appends flight price quotes for a route to the flights table.
type Collector struct {
	fetcher *FlightFetcher
	store   store.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewCollector creates a Collector.
func NewCollector(f *FlightFetcher, st store.Store, m *metrics.Metrics) *Collector {
	return &Collector{fetcher: f, store: st, metrics: m, now: time.Now}
}

// Collect fetches quotes for one departure date and appends them. A failed
// fetch yields zero rows and no error; store failures are returned.
func (c *Collector) Collect(ctx context.Context, origin, destination string, date time.Time) (int64, error) {
	start := c.now()
	defer c.metrics.ObserveStage("collect", start)

	raw, ok := c.fetcher.Fetch(ctx, origin, destination, date.Format(model.DateLayout))
	if !ok || len(raw) == 0 {
		return 0, nil
	}

	flights := normalize.Flights(raw, start.UTC())
	n, err := c.store.InsertFlights(ctx, flights)
	if err != nil {
		return 0, eris.Wrapf(err, "collect: save %s-%s %s", origin, destination, date.Format(model.DateLayout))
	}
	c.metrics.Written(model.KindFlights.Table(), n)

	zap.L().Info("flight quotes collected",
		zap.String("component", "ingest"),
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.String("date", date.Format(model.DateLayout)),
		zap.Int64("rows", n),
	)
	return n, nil
}

// CollectRange calls Collect for every day in [from, to], one request at a
// time. It stops at the first store failure.
func (c *Collector) CollectRange(ctx context.Context, origin, destination string, from, to time.Time) (int64, error) {
	if to.Before(from) {
		return 0, eris.Errorf("collect: range end %s before start %s",
			to.Format(model.DateLayout), from.Format(model.DateLayout))
	}

	var total int64
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return total, eris.Wrap(err, "collect: cancelled")
		}
		n, err := c.Collect(ctx, origin, destination, d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
