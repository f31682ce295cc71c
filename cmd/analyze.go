package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/analytics"
	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/ingest"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/scorer"
)

var (
	analyzeAwards     string
	analyzeDetections string
	analyzeVersion    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report award, company and technology-area transition rates",
	Long: `Aggregates High and Likely detections against the award population and prints the summary as JSON.
Evidence bundles written under the configured algorithm version and preset are re-scored, and
any that no longer reproduce are listed under "audit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		awardsPath := analyzeAwards
		cleanup, err := localizeInputs(ctx, cfg.Fetch, &awardsPath)
		if err != nil {
			return eris.Wrap(err, "fetch awards")
		}
		defer cleanup()

		awards, _, err := ingest.ReadAwards(ctx, awardsPath)
		if err != nil {
			return eris.Wrap(err, "read awards")
		}

		version := analyzeVersion
		if version == "" {
			version = cfg.Transition.AlgorithmVersion
		}
		detections, err := detectionsFrom(ctx, analyzeDetections, version)
		if err != nil {
			return err
		}

		report := analyzeReport{
			Summary: analytics.Compute(awards, detections),
			Audit:   auditDetections(cfg.Transition, detections),
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "encode summary")
	},
}

type analyzeReport struct {
	analytics.Summary
	Audit auditReport `json:"audit"`
}

// auditReport counts evidence bundles re-scored by analyze. Bundles from
// another algorithm version or preset are skipped.
type auditReport struct {
	Checked        int            `json:"checked"`
	Skipped        int            `json:"skipped"`
	Unreproducible []auditFailure `json:"unreproducible"`
}

type auditFailure struct {
	DetectionID string `json:"detection_id"`
	Reason      string `json:"reason"`
}

func auditDetections(tc config.TransitionConfig, detections []model.TransitionDetection) auditReport {
	log := zap.L().With(zap.String("component", "analyze.audit"))
	s := scorer.New(tc)
	report := auditReport{Unreproducible: []auditFailure{}}
	for i := range detections {
		b := &detections[i].Evidence
		if b.AlgorithmVersion != tc.AlgorithmVersion || b.Preset != tc.Preset {
			report.Skipped++
			continue
		}
		report.Checked++
		if err := s.Verify(b); err != nil {
			log.Warn("analyze: evidence bundle does not reproduce",
				zap.String("detection_id", detections[i].DetectionID),
				zap.Error(err),
			)
			report.Unreproducible = append(report.Unreproducible, auditFailure{
				DetectionID: detections[i].DetectionID,
				Reason:      err.Error(),
			})
		}
	}
	return report
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAwards, "awards", "", "award extract defining the population")
	analyzeCmd.Flags().StringVar(&analyzeDetections, "detections", "", "JSON-lines detections file (default: read from the store)")
	analyzeCmd.Flags().StringVar(&analyzeVersion, "algorithm-version", "", "algorithm version to read from the store (default from config)")
	_ = analyzeCmd.MarkFlagRequired("awards")
	rootCmd.AddCommand(analyzeCmd)
}
