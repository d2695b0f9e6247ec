package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/export"
	"github.com/sells-group/farecast/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the minimum stored price per departure date for a route",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		q, err := routeQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		series, err := st.MinPriceByDate(ctx, q)
		if err != nil {
			zap.L().Error("history query failed", zap.String("route", q.String()), zap.Error(err))
			series = nil
		}
		if series.Len() == 0 {
			fmt.Fprintf(os.Stderr, "No price data found for %s.\n", q)
			return nil
		}

		return writeSeries(os.Stdout, series, format)
	},
}

func init() {
	addRouteFlags(historyCmd)
	historyCmd.Flags().String("format", "table", "output format: table, json or csv")

	rootCmd.AddCommand(historyCmd)
}

// writeSeries renders a price series in the requested format.
func writeSeries(out io.Writer, series model.PriceSeries, format string) error {
	switch format {
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DATE\tMIN_PRICE")
		_, _ = fmt.Fprintln(w, "----\t---------")
		for _, p := range series {
			_, _ = fmt.Fprintf(w, "%s\t%.0f\n", p.Date.Format(model.DateLayout), p.MinPrice)
		}
		return w.Flush()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(series)
	case "csv":
		return export.WriteSeriesCSV(out, series)
	default:
		return eris.Errorf("unknown format %q (want table, json or csv)", format)
	}
}
