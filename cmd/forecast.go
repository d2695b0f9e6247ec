package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/export"
	"github.com/sells-group/farecast/internal/model"
	"github.com/sells-group/farecast/internal/report"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Analyse a route's price history and forecast the next 30 days",
	Long: "Queries the daily minimum price for the route, decomposes it into trend and " +
		"seasonality, fits a polynomial forecast and writes charts plus CSV/XLSX exports. " +
		"With --series-csv the history is read from a file and the database is not used.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		q, err := routeQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		outDir, _ := cmd.Flags().GetString("out")
		if !cmd.Flags().Changed("out") {
			outDir = cfg.Export.Dir
		}
		seriesCSV, _ := cmd.Flags().GetString("series-csv")

		var r *report.Report
		if seriesCSV != "" {
			if err := cfg.Validate("offline"); err != nil {
				return err
			}
			series, err := loadSeriesCSV(seriesCSV)
			if err != nil {
				return err
			}
			a := report.NewAnalyzer(nil, nil, mtr, analyzerOptions(cfg.Forecast, cfg.Travelpayouts.Currency))
			r = a.AnalyzeSeries(q, series)
		} else {
			env, err := initEnv(ctx, "forecast")
			if err != nil {
				return err
			}
			defer env.Close()
			r = env.Analyzer.Analyze(ctx, q)
		}

		fmt.Fprintln(os.Stdout, r.Message())

		if r.Outcome == report.OutcomeNoData || r.Outcome == report.OutcomeFailed || outDir == "" {
			return nil
		}
		files, err := export.WriteReport(outDir, r)
		if err != nil {
			return eris.Wrap(err, "forecast: export")
		}
		for _, f := range files {
			fmt.Fprintf(os.Stdout, "wrote %s\n", f)
		}
		zap.L().Info("forecast complete",
			zap.String("route", q.String()),
			zap.String("outcome", string(r.Outcome)),
			zap.Int("files", len(files)),
		)
		return nil
	},
}

// loadSeriesCSV reads a date,min_price file and checks that its dates are
// unique and ascending.
func loadSeriesCSV(path string) (model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "forecast: open series csv")
	}
	defer f.Close() //nolint:errcheck

	series, err := export.ReadSeriesCSV(f)
	if err != nil {
		return nil, err
	}
	if !series.Ordered() {
		return nil, eris.Errorf("forecast: %s: dates must be unique and in ascending order", path)
	}
	return series, nil
}

func init() {
	addRouteFlags(forecastCmd)
	forecastCmd.Flags().String("out", "", "directory for charts and exports (default from config, empty to skip)")
	forecastCmd.Flags().String("series-csv", "", "read the price history from a CSV file (date,min_price)")

	rootCmd.AddCommand(forecastCmd)
}
