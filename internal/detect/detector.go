// Package detect drives candidate generation, vendor resolution,
// windowing, signal extraction, scoring and evidence assembly for each
// award.
package detect

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/evidence"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
	"github.com/sells-group/transition-cli/internal/scorer"
	"github.com/sells-group/transition-cli/internal/signal"
)

// Stats counts pairs at each stage for one or more awards.
type Stats struct {
	Candidates       int `json:"candidates"`
	Resolved         int `json:"resolved"`
	Unresolved       int `json:"unresolved"`
	Malformed        int `json:"malformed"`
	WindowedOut      int `json:"windowed_out"`
	Scored           int `json:"scored"`
	Emitted          int `json:"emitted"`
	EvidenceRejected int `json:"evidence_rejected"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Candidates += o.Candidates
	s.Resolved += o.Resolved
	s.Unresolved += o.Unresolved
	s.Malformed += o.Malformed
	s.WindowedOut += o.WindowedOut
	s.Scored += o.Scored
	s.Emitted += o.Emitted
	s.EvidenceRejected += o.EvidenceRejected
}

// MatchRate is resolved candidates over all candidates considered.
func (s Stats) MatchRate() float64 {
	if s.Candidates == 0 {
		return 0
	}
	return float64(s.Resolved) / float64(s.Candidates)
}

// Detector evaluates one award at a time against a contract index. It
// keeps no cross-award state and is safe for concurrent use.
type Detector struct {
	resolver   *resolve.Resolver
	extractors *signal.Extractors
	scorer     *scorer.Scorer
	builder    *evidence.Builder
}

// New creates a Detector. classifier and now may be nil.
func New(cfg config.TransitionConfig, classifier signal.Classifier, now func() time.Time) *Detector {
	return &Detector{
		resolver:   resolve.NewResolver(cfg.Vendor.FuzzyThreshold),
		extractors: signal.New(cfg, classifier),
		scorer:     scorer.New(cfg),
		builder:    evidence.NewBuilder(cfg, now),
	}
}

// Detect returns the detections for award against the contracts in idx,
// ordered by contract ID. Pairs that fail resolution or fall outside the
// window produce nothing. Malformed awards and contracts are logged and
// skipped. A bundle that fails validation is logged and counted, never
// emitted.
func (d *Detector) Detect(ctx context.Context, award *model.Award, idx *resolve.VendorIndex, pctx signal.Context) ([]model.TransitionDetection, Stats) {
	var stats Stats
	if idx == nil || idx.Len() == 0 {
		return nil, stats
	}
	if err := award.Validate(); err != nil {
		zap.L().Warn("detect: skipping malformed award", zap.String("award_id", award.ID), zap.Error(err))
		return nil, stats
	}

	vendor := award.VendorRecord()
	candidates, lookup := idx.Candidates(d.resolver, vendor)
	stats.Candidates = lookup.Considered
	stats.Resolved = lookup.Resolved
	stats.Unresolved = lookup.Unresolved

	vendorKey := vendor.Key(resolve.NormalizeName(vendor.Name))

	var out []model.TransitionDetection
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}
		contract := cand.Contract

		if err := contract.Validate(); err != nil {
			stats.Malformed++
			zap.L().Warn("detect: skipping malformed contract",
				zap.String("award_id", award.ID),
				zap.String("contract_id", contract.ID),
				zap.Error(err),
			)
			continue
		}

		if !d.extractors.Timing(award, contract).InWindow {
			stats.WindowedOut++
			continue
		}

		signals := d.extractors.Extract(award, contract, pctx)
		score, band := d.scorer.Score(signals)
		stats.Scored++

		match := cand.Match
		bundle, err := d.builder.Build(award, contract, &match, signals, score, band)
		if err != nil {
			stats.EvidenceRejected++
			var verr *evidence.ValidationError
			if errors.As(err, &verr) {
				zap.L().Warn("detect: evidence rejected",
					zap.String("award_id", award.ID),
					zap.String("contract_id", contract.ID),
					zap.Strings("problems", verr.Problems),
				)
			}
			continue
		}

		out = append(out, model.TransitionDetection{
			DetectionID:      bundle.DetectionID,
			AwardID:          award.ID,
			ContractID:       contract.ID,
			VendorKey:        vendorKey,
			TechArea:         award.TechArea,
			PatentIDs:        signals.Patent.PatentIDs,
			Score:            score,
			Band:             band,
			AlgorithmVersion: bundle.AlgorithmVersion,
			Evidence:         *bundle,
		})
		stats.Emitted++
	}

	return out, stats
}
