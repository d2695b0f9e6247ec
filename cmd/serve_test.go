package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/farecast/internal/ingest"
	"github.com/sells-group/farecast/internal/metrics"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/report"
	"github.com/sells-group/farecast/internal/store"
	"github.com/sells-group/farecast/pkg/travelpayouts/mocks"
)

var seedStart = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

// newTestEnv returns an env backed by a temp SQLite file holding days of
// LED -> MOW quotes, with on-demand fetching disabled.
func newTestEnv(t *testing.T, days int, m *metrics.Metrics) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))

	var flights []model.FlightPrice
	for i := range days {
		d := seedStart.AddDate(0, 0, i)
		flights = append(flights, model.FlightPrice{
			OriginIATA:        "LED",
			DestinationIATA:   "MOW",
			DepartureDatetime: d.Add(9 * time.Hour),
			DepartureDate:     d.Format(model.DateLayout),
			PriceRub:          5000 + 12*float64(i) + 200*math.Sin(2*math.Pi*float64(i)/30),
			ExtractedAt:       seedStart,
		})
	}
	_, err = st.InsertFlights(context.Background(), flights)
	require.NoError(t, err)

	opts := report.DefaultOptions()
	opts.FetchOnMiss = false
	return &appEnv{Store: st, Analyzer: report.NewAnalyzer(st, nil, m, opts)}
}

func serveRequest(h http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(newTestEnv(t, 0, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_History(t *testing.T) {
	h := buildRouter(newTestEnv(t, 10, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/routes/led/mow/history?from=2024-07-01&to=2024-07-05")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Query  model.RouteQuery  `json:"query"`
		Series model.PriceSeries `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "LED", body.Query.Origin)
	assert.Len(t, body.Series, 5)
	assert.True(t, body.Series.Ordered())
}

func TestBuildRouter_HistoryNoData(t *testing.T) {
	h := buildRouter(newTestEnv(t, 10, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/KZN/history?from=2024-07-01&to=2024-07-05")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No price data found")
}

type failingHistoryStore struct{ store.Store }

func (failingHistoryStore) MinPriceByDate(context.Context, model.RouteQuery) (model.PriceSeries, error) {
	return nil, errors.New("disk I/O error")
}

func TestBuildRouter_HistoryStoreErrorDegradesToNoData(t *testing.T) {
	env := newTestEnv(t, 10, nil)
	env.Store = failingHistoryStore{env.Store}
	h := buildRouter(env, nil)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/MOW/history?from=2024-07-01&to=2024-07-05")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No price data found")
	assert.NotContains(t, rr.Body.String(), "disk I/O")
}

func TestBuildRouter_InvalidQuery(t *testing.T) {
	h := buildRouter(newTestEnv(t, 0, nil), nil)

	for _, target := range []string{
		"/routes/LEDX/MOW/history?from=2024-07-01",
		"/routes/LED/MOW/history?from=01.07.2024",
		"/routes/LED/MOW/forecast?from=2024-07-10&to=2024-07-01",
	} {
		rr := serveRequest(h, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
}

func TestBuildRouter_Forecast(t *testing.T) {
	h := buildRouter(newTestEnv(t, 70, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/MOW/forecast?from=2024-07-01&to=2024-09-30")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Outcome  string                `json:"outcome"`
		Message  string                `json:"message"`
		Forecast []model.ForecastPoint `json:"forecast"`
		Charts   []string              `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Outcome)
	assert.Len(t, body.Forecast, 30)
	assert.Contains(t, body.Message, "Price forecast:")
	require.Len(t, body.Charts, 3)
	assert.Contains(t, body.Charts[0], "/routes/LED/MOW/charts/history.png?")
}

func TestBuildRouter_ForecastInsufficientAndNoData(t *testing.T) {
	h := buildRouter(newTestEnv(t, 70, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/MOW/forecast?from=2024-07-01&to=2024-07-05")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Not enough price history")

	rr = serveRequest(h, http.MethodGet, "/routes/LED/AER/forecast?from=2024-07-01&to=2024-07-30")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "No price data found")
}

func TestBuildRouter_Charts(t *testing.T) {
	h := buildRouter(newTestEnv(t, 20, nil), nil)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/MOW/charts/history.png?from=2024-07-01&to=2024-07-20")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")))

	// 20 days is too short for a 30-day decomposition.
	rr = serveRequest(h, http.MethodGet, "/routes/LED/MOW/charts/decomposition.png?from=2024-07-01&to=2024-07-20")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serveRequest(h, http.MethodGet, "/routes/LED/MOW/charts/forecast.png?from=2024-07-01&to=2024-07-05")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serveRequest(h, http.MethodGet, "/routes/LED/MOW/charts/pie.png?from=2024-07-01")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildRouter_RefreshWithoutToken(t *testing.T) {
	h := buildRouter(newTestEnv(t, 0, nil), nil)

	rr := serveRequest(h, http.MethodPost, "/admin/refresh")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestBuildRouter_Refresh(t *testing.T) {
	env := newTestEnv(t, 0, nil)
	client := mocks.NewMockClient(t)
	client.On("Dataset", mock.Anything, "airports").Return([]map[string]any{
		{"code": "SVO", "name": "Sheremetyevo", "city_code": "MOW", "country_code": "RU"},
	}, nil)
	client.On("Dataset", mock.Anything, "cities").Return(nil, errors.New("upstream down"))
	client.On("Dataset", mock.Anything, "countries").Return([]map[string]any{}, nil)
	env.Refresher = ingest.NewRefresher(ingest.NewReferenceFetcher(client, nil), env.Store, nil)

	h := buildRouter(env, nil)
	rr := serveRequest(h, http.MethodPost, "/admin/refresh")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		RunID   string               `json:"run_id"`
		Entries []model.RefreshEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	require.Len(t, body.Entries, 3)

	airports, err := env.Store.AirportsByCity(context.Background(), "MOW")
	require.NoError(t, err)
	require.Len(t, airports, 1)
	assert.Equal(t, "SVO", airports[0].IATACode)
}

func TestBuildRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := buildRouter(newTestEnv(t, 5, m), reg)

	rr := serveRequest(h, http.MethodGet, "/routes/LED/MOW/forecast?from=2024-07-01&to=2024-07-05")
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serveRequest(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `farecast_reports_total{outcome="insufficient_data"} 1`)
}

func TestBuildRouter_MetricsDisabled(t *testing.T) {
	h := buildRouter(newTestEnv(t, 0, nil), nil)
	rr := serveRequest(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	h := buildRouter(newTestEnv(t, 0, nil), nil)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
