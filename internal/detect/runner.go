package detect

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resolve"
	"github.com/sells-group/transition-cli/internal/signal"
)

// ChunkSource yields contract chunks until it returns io.EOF. Any partition
// of the contracts yields the same detections.
type ChunkSource interface {
	NextChunk(ctx context.Context) ([]model.Contract, error)
}

// SliceChunks serves pre-built chunks from memory.
type SliceChunks struct {
	chunks [][]model.Contract
	pos    int
}

// NewSliceChunks wraps chunks as a ChunkSource.
func NewSliceChunks(chunks ...[]model.Contract) *SliceChunks {
	return &SliceChunks{chunks: chunks}
}

// NextChunk implements ChunkSource.
func (s *SliceChunks) NextChunk(ctx context.Context) ([]model.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

// Observer receives per-award stats as a run progresses.
type Observer interface {
	ObserveAward(Stats)
}

// RunReport summarizes one batch run.
type RunReport struct {
	Awards          int           `json:"awards"`
	Contracts       int           `json:"contracts"`
	Chunks          int           `json:"chunks"`
	Detections      int           `json:"detections"`
	Stats           Stats         `json:"stats"`
	SkippedAwards   []string      `json:"skipped_awards,omitempty"`
	SkippedContract []string      `json:"skipped_contracts,omitempty"`
	Canceled        bool          `json:"canceled"`
	Duration        time.Duration `json:"duration"`
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency bounds the number of awards evaluated at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithPatents supplies the patent index used for the patent signal.
func WithPatents(idx *signal.PatentIndex) RunnerOption {
	return func(r *Runner) { r.patents = idx }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// Runner fans awards out over a worker pool for each contract chunk.
type Runner struct {
	detector    *Detector
	concurrency int
	patents     *signal.PatentIndex
	observer    Observer
}

// NewRunner creates a Runner around d.
func NewRunner(d *Detector, opts ...RunnerOption) *Runner {
	r := &Runner{detector: d, concurrency: 8}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run evaluates every valid award against every chunk. Malformed records
// are skipped and listed in the report. Cancellation is checked at award
// boundaries; on cancellation Run returns the detections completed so far
// together with the context error. Output is sorted by award then
// contract ID.
func (r *Runner) Run(ctx context.Context, awards []model.Award, chunks ChunkSource) ([]model.TransitionDetection, *RunReport, error) {
	start := time.Now()
	report := &RunReport{}

	valid := make([]*model.Award, 0, len(awards))
	for i := range awards {
		a := &awards[i]
		if err := a.Validate(); err != nil {
			zap.L().Warn("detect: skipping malformed award", zap.String("award_id", a.ID), zap.Error(err))
			report.SkippedAwards = append(report.SkippedAwards, a.ID)
			continue
		}
		valid = append(valid, a)
	}
	report.Awards = len(valid)

	// Patent lookups depend only on the award, so resolve them once.
	patents := make([][]model.Patent, len(valid))
	for i, a := range valid {
		patents[i] = r.patents.ForVendor(a.VendorRecord())
	}

	var (
		out    []model.TransitionDetection
		seen   = make(map[string]bool)
		runErr error
	)

	for {
		chunk, err := chunks.NextChunk(ctx)
		if eris.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = eris.Wrap(err, "detect: read contract chunk")
			break
		}

		contracts := make([]model.Contract, 0, len(chunk))
		for _, c := range chunk {
			if err := c.Validate(); err != nil {
				zap.L().Warn("detect: skipping malformed contract", zap.String("contract_id", c.ID), zap.Error(err))
				report.SkippedContract = append(report.SkippedContract, c.ID)
				continue
			}
			contracts = append(contracts, c)
		}
		report.Chunks++
		report.Contracts += len(contracts)

		found, stats, err := r.runChunk(ctx, valid, patents, resolve.NewVendorIndex(contracts))
		report.Stats.Add(stats)
		for _, d := range found {
			if seen[d.DetectionID] {
				continue
			}
			seen[d.DetectionID] = true
			out = append(out, d)
		}
		if err != nil {
			runErr = err
			break
		}

		zap.L().Debug("detect: chunk complete",
			zap.Int("chunk", report.Chunks),
			zap.Int("contracts", len(contracts)),
			zap.Int("detections", len(found)),
		)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardID != out[j].AwardID {
			return out[i].AwardID < out[j].AwardID
		}
		return out[i].ContractID < out[j].ContractID
	})

	report.Detections = len(out)
	report.Canceled = ctx.Err() != nil
	report.Duration = time.Since(start)

	zap.L().Info("detect: run complete",
		zap.Int("awards", report.Awards),
		zap.Int("contracts", report.Contracts),
		zap.Int("detections", report.Detections),
		zap.Int("skipped_awards", len(report.SkippedAwards)),
		zap.Int("skipped_contracts", len(report.SkippedContract)),
		zap.Float64("vendor_match_rate", report.Stats.MatchRate()),
		zap.Duration("duration", report.Duration),
	)

	return out, report, runErr
}

func (r *Runner) runChunk(ctx context.Context, awards []*model.Award, patents [][]model.Patent, idx *resolve.VendorIndex) ([]model.TransitionDetection, Stats, error) {
	results := make([][]model.TransitionDetection, len(awards))
	var (
		mu    sync.Mutex
		total Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, a := range awards {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found, stats := r.detector.Detect(gctx, a, idx, signal.Context{Patents: patents[i]})
			results[i] = found

			mu.Lock()
			total.Add(stats)
			mu.Unlock()
			if r.observer != nil {
				r.observer.ObserveAward(stats)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var out []model.TransitionDetection
	for _, found := range results {
		out = append(out, found...)
	}
	if err != nil {
		return out, total, eris.Wrap(err, "detect: run canceled")
	}
	return out, total, nil
}
