package store

import (
	"context"

	"github.com/sells-group/farecast/internal/model"
)

// Store defines the persistence interface for fare ingestion and history queries.
type Store interface {
	// Reference tables
	ReplaceTable(ctx context.Context, t model.Table) (int64, error)
	AirportsByCity(ctx context.Context, cityCode string) ([]model.Airport, error)

	// Flights
	InsertFlights(ctx context.Context, flights []model.FlightPrice) (int64, error)
	MinPriceByDate(ctx context.Context, q model.RouteQuery) (model.PriceSeries, error)

	// Refresh log
	RecordRefresh(ctx context.Context, e model.RefreshEntry) error
	LatestRefresh(ctx context.Context) ([]model.RefreshEntry, error)

	// Lifecycle
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
