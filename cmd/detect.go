package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/detect"
	"github.com/sells-group/transition-cli/internal/ingest"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/monitoring"
	sig "github.com/sells-group/transition-cli/internal/signal"
	"github.com/sells-group/transition-cli/internal/store"
)

type detectOptions struct {
	AwardsPath    string
	ContractsPath string
	PatentsPath   string
	LabelsPath    string
	KeywordsPath  string
	OutPath       string
	MetricsPath   string
	NoStore       bool
}

var detectOpts detectOptions

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect award-to-contract transitions",
	Long:  "Reads award and contract extracts, scores every vendor-resolved pair inside the timing window, and persists the detections with their evidence bundles.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		_, err := runDetect(ctx, cfg, detectOpts, cmd.OutOrStdout())
		return err
	},
}

func init() {
	f := detectCmd.Flags()
	f.StringVar(&detectOpts.AwardsPath, "awards", "", "award extract: csv, tsv, xlsx, zip or http(s) URL")
	f.StringVar(&detectOpts.ContractsPath, "contracts", "", "contract extract: csv, tsv, xlsx, zip or http(s) URL")
	f.StringVar(&detectOpts.PatentsPath, "patents", "", "optional patent extract")
	f.StringVar(&detectOpts.LabelsPath, "labels", "", "optional record_id,tech_area label file")
	f.StringVar(&detectOpts.KeywordsPath, "keywords", "", "technology-area keyword YAML (overrides config)")
	f.StringVar(&detectOpts.OutPath, "out", "", "write detections as JSON lines to this file (- for stdout)")
	f.StringVar(&detectOpts.MetricsPath, "metrics-file", "", "write run metrics in textfile format (overrides config)")
	f.BoolVar(&detectOpts.NoStore, "no-store", false, "skip persisting detections")
	_ = detectCmd.MarkFlagRequired("awards")
	_ = detectCmd.MarkFlagRequired("contracts")
	rootCmd.AddCommand(detectCmd)
}

// detectResult is what a detect run produced.
type detectResult struct {
	RunID      string
	Detections []model.TransitionDetection
	Report     *detect.RunReport
	Metrics    *monitoring.RunMetrics
}

func runDetect(ctx context.Context, c *config.Config, opts detectOptions, stdout io.Writer) (*detectResult, error) {
	log := zap.L().With(zap.String("component", "detect"))

	classifier, err := buildClassifier(opts.KeywordsPath, c.Transition)
	if err != nil {
		return nil, err
	}

	cleanup, err := localizeInputs(ctx, c.Fetch, &opts.AwardsPath, &opts.ContractsPath, &opts.PatentsPath, &opts.LabelsPath)
	if err != nil {
		return nil, eris.Wrap(err, "fetch inputs")
	}
	defer cleanup()

	awards, _, err := ingest.ReadAwards(ctx, opts.AwardsPath)
	if err != nil {
		return nil, eris.Wrap(err, "read awards")
	}

	var labels map[string]string
	if opts.LabelsPath != "" {
		if labels, _, err = ingest.ReadTechLabels(ctx, opts.LabelsPath); err != nil {
			return nil, eris.Wrap(err, "read labels")
		}
		ingest.LabelAwards(awards, labels)
	}

	var patents *sig.PatentIndex
	if opts.PatentsPath != "" {
		ps, _, err := ingest.ReadPatents(ctx, opts.PatentsPath)
		if err != nil {
			return nil, eris.Wrap(err, "read patents")
		}
		patents = sig.NewPatentIndex(ps)
	}

	contracts, err := ingest.OpenContracts(ctx, opts.ContractsPath, c.Batch.ContractChunkSize, labels)
	if err != nil {
		return nil, eris.Wrap(err, "open contracts")
	}
	defer contracts.Close()

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewRunMetrics(reg)

	var (
		st  store.Store
		run *store.Run
	)
	if !opts.NoStore {
		if st, err = store.Open(ctx, c.Store); err != nil {
			return nil, eris.Wrap(err, "open store")
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return nil, eris.Wrap(err, "migrate store")
		}
		if run, err = st.StartRun(ctx, c.Transition.AlgorithmVersion, c.Transition.Preset); err != nil {
			return nil, eris.Wrap(err, "start run")
		}
	}

	detector := detect.New(c.Transition, classifier, nil)
	runner := detect.NewRunner(detector,
		detect.WithConcurrency(c.Batch.MaxConcurrentAwards),
		detect.WithPatents(patents),
		detect.WithObserver(metrics),
	)

	detections, report, err := runner.Run(ctx, awards, contracts)
	if err != nil {
		if run != nil {
			// The run context may already be canceled.
			if ferr := st.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); ferr != nil {
				log.Error("detect: record failed run", zap.Error(ferr))
			}
		}
		return nil, eris.Wrap(err, "detect run")
	}
	metrics.ObserveDetections(detections)

	res := &detectResult{Detections: detections, Report: report, Metrics: metrics}
	if run != nil {
		res.RunID = run.ID
		if _, err := st.SaveDetections(ctx, run.ID, detections); err != nil {
			if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
				log.Error("detect: record failed run", zap.Error(ferr))
			}
			return nil, eris.Wrap(err, "save detections")
		}
		if err := st.CompleteRun(ctx, run.ID, report); err != nil {
			return nil, eris.Wrap(err, "complete run")
		}
	}

	if opts.OutPath != "" {
		if err := writeDetectionsFile(opts.OutPath, stdout, detections); err != nil {
			return nil, err
		}
	}

	metricsPath := opts.MetricsPath
	if metricsPath == "" {
		metricsPath = c.Metrics.TextfilePath
	}
	if metricsPath != "" {
		if err := monitoring.WriteTextfile(metricsPath, reg); err != nil {
			return nil, err
		}
	}

	log.Info("detect: complete",
		zap.String("run_id", res.RunID),
		zap.Int("awards", report.Awards),
		zap.Int("contracts", report.Contracts),
		zap.Int("detections", len(detections)),
		zap.Float64("vendor_match_rate", report.Stats.MatchRate()),
		zap.Int("skipped_contracts", contracts.Stats().Skipped),
	)
	return res, nil
}
