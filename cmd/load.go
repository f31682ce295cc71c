package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/db"
	"github.com/sells-group/transition-cli/internal/graph"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/monitoring"
)

var (
	loadDetections string
	loadVersion    string
	loadDryRun     bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load detections into the transition graph",
	Long:  "Merges awards, transitions, contracts, patents and technology areas into graph.nodes and graph.edges in batches.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		version := loadVersion
		if version == "" {
			version = cfg.Transition.AlgorithmVersion
		}
		detections, err := detectionsFrom(ctx, loadDetections, version)
		if err != nil {
			return err
		}

		gs, closeFn, err := openGraphStore(ctx, cfg, loadDryRun)
		if err != nil {
			return err
		}
		defer closeFn()

		report, err := runLoad(ctx, gs, cfg, detections)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode load report")
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadDetections, "detections", "", "JSON-lines detections file (default: read from the store)")
	loadCmd.Flags().StringVar(&loadVersion, "algorithm-version", "", "algorithm version to read from the store (default from config)")
	loadCmd.Flags().BoolVar(&loadDryRun, "dry-run", false, "shape and merge into an in-memory graph only")
	rootCmd.AddCommand(loadCmd)
}

// openGraphStore returns the Postgres graph store, or an in-memory one for
// dry runs. The graph database defaults to the store database.
func openGraphStore(ctx context.Context, c *config.Config, dryRun bool) (graph.Store, func(), error) {
	if dryRun {
		return graph.NewMemoryStore(), func() {}, nil
	}
	url := c.Graph.DatabaseURL
	if url == "" {
		url = c.Store.DatabaseURL
	}
	pool, err := db.Connect(ctx, url, c.Store.MaxConns)
	if err != nil {
		return nil, nil, eris.Wrap(err, "connect graph database")
	}
	return graph.NewPostgresStore(pool), pool.Close, nil
}

func runLoad(ctx context.Context, gs graph.Store, c *config.Config, detections []model.TransitionDetection) (*graph.LoadReport, error) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewRunMetrics(reg)

	report, err := graph.NewLoaderFromConfig(gs, c.Graph).Load(ctx, detections)
	metrics.ObserveLoad(report)
	if err != nil {
		return report, eris.Wrap(err, "graph load")
	}
	if path := graphMetricsPath(c.Metrics.TextfilePath); path != "" {
		if err := monitoring.WriteTextfile(path, reg); err != nil {
			return report, err
		}
	}
	if len(report.Failures) > 0 {
		zap.L().Warn("load: some batches failed",
			zap.Int("failed_batches", len(report.Failures)),
			zap.Int("batches", report.Batches),
		)
	}
	return report, nil
}

// graphMetricsPath places load metrics beside the detect run's textfile.
func graphMetricsPath(textfile string) string {
	if textfile == "" {
		return ""
	}
	return strings.TrimSuffix(textfile, ".prom") + "_graph.prom"
}
