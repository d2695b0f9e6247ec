package ingest

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/farecast/internal/model"
)

// Watchlist is a set of routes collected together.
type Watchlist struct {
	Routes []WatchRoute `yaml:"routes"`
}

// WatchRoute is one watched route. Either From/To (YYYY-MM-DD) or DaysAhead
// selects the departure dates; DaysAhead counts from today.
type WatchRoute struct {
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	DaysAhead   int    `yaml:"days_ahead"`
}

// LoadWatchlist reads a watchlist YAML file:
//
//	routes:
//	  - origin: LED
//	    destination: MOW
//	    from: 2024-07-01
//	    to: 2024-07-30
//	  - origin: LED
//	    destination: KZN
//	    days_ahead: 14
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "watchlist: read %s", path)
	}

	var wl Watchlist
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, eris.Wrap(err, "watchlist: parse")
	}
	if len(wl.Routes) == 0 {
		return nil, eris.Errorf("watchlist: %s has no routes", path)
	}
	return &wl, nil
}

// Query resolves the route into a validated RouteQuery relative to today.
func (r WatchRoute) Query(today time.Time) (model.RouteQuery, error) {
	from, to := r.From, r.To
	if r.DaysAhead > 0 {
		from = today.Format(model.DateLayout)
		to = today.AddDate(0, 0, r.DaysAhead-1).Format(model.DateLayout)
	}
	q, err := model.ParseRouteQuery(r.Origin, r.Destination, from, to)
	if err != nil {
		return model.RouteQuery{}, eris.Wrapf(err, "watchlist: route %s-%s", r.Origin, r.Destination)
	}
	return q, nil
}

// CollectWatchlist collects every route in the watchlist. Invalid routes are
// logged and skipped; a store failure stops the run.
func (c *Collector) CollectWatchlist(ctx context.Context, wl *Watchlist) (int64, error) {
	today := c.now()
	var total int64
	for _, r := range wl.Routes {
		q, err := r.Query(today)
		if err != nil {
			zap.L().Warn("skipping watchlist route", zap.String("component", "ingest"), zap.Error(err))
			continue
		}
		n, err := c.CollectRange(ctx, q.Origin, q.Destination, q.Start, q.End)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
