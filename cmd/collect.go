package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/ingest"
	"github.com/sells-group/farecast/internal/model"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch flight quotes for a route and date range and append them to the flights table",
	Example: `  farecast collect --origin LED --destination MOW --from 2024-07-01 --to 2024-07-30
  farecast collect --watchlist routes.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		watchlist, _ := cmd.Flags().GetString("watchlist")
		var wl *ingest.Watchlist
		var q model.RouteQuery
		if watchlist != "" {
			var err error
			if wl, err = ingest.LoadWatchlist(watchlist); err != nil {
				return err
			}
		} else {
			var err error
			if q, err = routeQueryFromFlags(cmd); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, "collect")
		if err != nil {
			return err
		}
		defer env.Close()

		var n int64
		if wl != nil {
			n, err = env.Collector.CollectWatchlist(ctx, wl)
		} else {
			n, err = env.Collector.CollectRange(ctx, q.Origin, q.Destination, q.Start, q.End)
		}
		if err != nil {
			return eris.Wrap(err, "collect")
		}

		fmt.Fprintf(os.Stdout, "Stored %d quotes.\n", n)
		zap.L().Info("collect complete", zap.Int64("rows", n))
		return nil
	},
}

func init() {
	addRouteFlags(collectCmd)
	collectCmd.Flags().String("watchlist", "", "YAML file of routes to collect instead of a single route")

	rootCmd.AddCommand(collectCmd)
}

// addRouteFlags registers --origin, --destination, --from and --to.
func addRouteFlags(cmd *cobra.Command) {
	cmd.Flags().String("origin", "", "origin IATA code (e.g. LED)")
	cmd.Flags().String("destination", "", "destination IATA code (e.g. MOW)")
	cmd.Flags().String("from", "", "first departure date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "last departure date, YYYY-MM-DD (defaults to --from)")
}

// routeQueryFromFlags builds a validated RouteQuery from the route flags.
func routeQueryFromFlags(cmd *cobra.Command) (model.RouteQuery, error) {
	origin, _ := cmd.Flags().GetString("origin")
	destination, _ := cmd.Flags().GetString("destination")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if to == "" {
		to = from
	}
	return model.ParseRouteQuery(origin, destination, from, to)
}
