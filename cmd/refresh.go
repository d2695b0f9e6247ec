package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/model"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Replace the airports, cities and countries tables from Travelpayouts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		only, _ := cmd.Flags().GetStringSlice("only")
		kinds := make([]model.Kind, 0, len(only))
		for _, name := range only {
			k, err := model.ParseKind(name)
			if err != nil {
				return err
			}
			if !k.IsReference() {
				return eris.Errorf("refresh: %s is not a reference table", k)
			}
			kinds = append(kinds, k)
		}

		env, err := initEnv(ctx, "refresh")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Refresher.Run(ctx, kinds...)
		if err != nil {
			return eris.Wrap(err, "refresh")
		}

		formatRefreshEntries(os.Stdout, res.Entries)
		zap.L().Info("refresh complete",
			zap.String("run_id", res.RunID),
			zap.Int("failed", res.Failed()),
		)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest refresh of each reference table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.LatestRefresh(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No refreshes recorded. Run `farecast refresh` first.")
			return nil
		}

		formatRefreshEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	refreshCmd.Flags().StringSlice("only", nil, "refresh only these tables (airports, cities, countries)")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(statusCmd)
}

// formatRefreshEntries writes a table of refresh log entries to out.
func formatRefreshEntries(out io.Writer, entries []model.RefreshEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tSTATUS\tROWS\tCOMPLETED\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t---------\t-----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.Table,
			e.Status,
			e.Rows,
			e.CompletedAt.Format("2006-01-02 15:04"),
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to n characters for compact display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
