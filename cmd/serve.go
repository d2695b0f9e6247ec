package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/chart"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/report"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve price history, forecasts and charts over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, registry),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// server exposes the store and pipelines over HTTP. Operations that write to
// the database (refresh, forecasts that fetch on a miss) hold writeMu.
type server struct {
	env     *appEnv
	writeMu sync.Mutex
}

// buildRouter wires the HTTP routes. reg may be nil, which disables /metrics.
func buildRouter(env *appEnv, reg *prometheus.Registry) http.Handler {
	s := &server{env: env}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Route("/routes/{origin}/{destination}", func(r chi.Router) {
		r.Get("/history", s.history)
		r.Get("/forecast", s.forecast)
		r.Get("/charts/{kind}.png", s.chart)
	})

	r.Post("/admin/refresh", s.refresh)

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.env.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	q, ok := routeQueryFromRequest(w, r)
	if !ok {
		return
	}

	series, err := s.env.Store.MinPriceByDate(r.Context(), q)
	if err != nil {
		zap.L().Error("history query failed", zap.String("route", q.String()), zap.Error(err))
		series = nil
	}
	if series.Len() == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No price data found for %s.", q))
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Query: q, Series: series})
}

func (s *server) forecast(w http.ResponseWriter, r *http.Request) {
	q, ok := routeQueryFromRequest(w, r)
	if !ok {
		return
	}

	rep := s.analyze(r.Context(), q)
	switch rep.Outcome {
	case report.OutcomeNoData:
		writeError(w, http.StatusNotFound, rep.Message())
	case report.OutcomeInsufficient:
		writeError(w, http.StatusUnprocessableEntity, rep.Message())
	case report.OutcomeFailed:
		writeError(w, http.StatusInternalServerError, rep.Message())
	default:
		writeJSON(w, http.StatusOK, newForecastResponse(rep))
	}
}

func (s *server) chart(w http.ResponseWriter, r *http.Request) {
	q, ok := routeQueryFromRequest(w, r)
	if !ok {
		return
	}
	kind := chart.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case chart.KindHistory, chart.KindDecomposition, chart.KindForecast:
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown chart %q", kind))
		return
	}

	rep := s.analyze(r.Context(), q)
	if rep.Outcome == report.OutcomeNoData {
		writeError(w, http.StatusNotFound, rep.Message())
		return
	}
	c := rep.Chart(kind)
	if c == nil {
		status := http.StatusNotFound
		if kind == chart.KindForecast {
			switch rep.Outcome {
			case report.OutcomeInsufficient:
				status = http.StatusUnprocessableEntity
			case report.OutcomeFailed:
				status = http.StatusInternalServerError
			}
		}
		writeError(w, status, fmt.Sprintf("%s chart is not available for %s", kind, q))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.PNG)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	if s.env.Refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh requires a Travelpayouts token")
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.env.Refresher.Run(r.Context())
	if err != nil {
		zap.L().Error("refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) analyze(ctx context.Context, q model.RouteQuery) *report.Report {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.env.Analyzer.Analyze(ctx, q)
}

// routeQueryFromRequest parses the route path and the from/to query
// parameters. It writes a 400 and returns false on invalid input.
func routeQueryFromRequest(w http.ResponseWriter, r *http.Request) (model.RouteQuery, bool) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = from
	}
	q, err := model.ParseRouteQuery(chi.URLParam(r, "origin"), chi.URLParam(r, "destination"), from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return model.RouteQuery{}, false
	}
	return q, true
}

type historyResponse struct {
	Query  model.RouteQuery  `json:"query"`
	Series model.PriceSeries `json:"series"`
}

type forecastResponse struct {
	Query           model.RouteQuery      `json:"query"`
	Outcome         report.Outcome        `json:"outcome"`
	Message         string                `json:"message"`
	FetchedOnDemand bool                  `json:"fetched_on_demand"`
	Stats           *report.Stats         `json:"stats,omitempty"`
	Best            *model.ForecastPoint  `json:"best,omitempty"`
	Forecast        []model.ForecastPoint `json:"forecast"`
	HoldoutRMSE     *float64              `json:"holdout_rmse,omitempty"`
	Charts          []string              `json:"charts"`
}

func newForecastResponse(rep *report.Report) forecastResponse {
	resp := forecastResponse{
		Query:           rep.Query,
		Outcome:         rep.Outcome,
		Message:         rep.Message(),
		FetchedOnDemand: rep.FetchedOnDemand,
		Charts:          make([]string, 0, len(rep.Charts)),
	}
	if st, ok := rep.Stats(); ok {
		resp.Stats = &st
	}
	if best, ok := rep.BestForecast(); ok {
		resp.Best = &best
	}
	if fc := rep.Forecast; fc != nil {
		resp.Forecast = fc.Points
		if rmse := fc.HoldoutRMSE; !math.IsNaN(rmse) {
			resp.HoldoutRMSE = &rmse
		}
	}
	params := url.Values{"from": {rep.Query.StartDate()}, "to": {rep.Query.EndDate()}}
	for _, c := range rep.Charts {
		resp.Charts = append(resp.Charts, fmt.Sprintf("/routes/%s/%s/charts/%s.png?%s",
			rep.Query.Origin, rep.Query.Destination, c.Kind, params.Encode()))
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
