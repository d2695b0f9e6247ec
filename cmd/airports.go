package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/farecast/internal/model"
)

var airportsCmd = &cobra.Command{
	Use:   "airports <city-code>",
	Short: "List the airports serving a city",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		airports, err := st.AirportsByCity(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "airports")
		}
		if len(airports) == 0 {
			fmt.Fprintf(os.Stderr, "No airports found for city %s.\n", args[0])
			return nil
		}

		formatAirports(os.Stdout, airports)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(airportsCmd)
}

// formatAirports writes a tabular list of airports to out.
func formatAirports(out io.Writer, airports []model.Airport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "IATA\tNAME\tCITY\tCOUNTRY\tTIME_ZONE")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t-------\t---------")
	for _, a := range airports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.IATACode,
			truncate(a.Name, 40),
			a.CityCode,
			a.CountryCode,
			a.TimeZone,
		)
	}
	_ = w.Flush()
}
