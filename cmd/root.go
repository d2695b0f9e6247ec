package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/farecast/internal/config"
	"github.com/sells-group/farecast/internal/metrics"
)

var (
	cfg      *config.Config
	registry *prometheus.Registry
	mtr      *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "farecast",
	Short: "Airfare price collection and forecasting",
	Long: "Collects Travelpayouts reference data and flight quotes into SQLite, " +
		"analyses daily minimum prices per route and forecasts them 30 days ahead.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		mtr = metrics.New(registry)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
