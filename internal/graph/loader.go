package graph

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/transition-cli/internal/config"
	"github.com/sells-group/transition-cli/internal/model"
	"github.com/sells-group/transition-cli/internal/resilience"
)

// DefaultBatchSize is the number of detections written per transaction.
const DefaultBatchSize = 500

// BatchFailure records a batch that could not be written after retries.
type BatchFailure struct {
	Index        int      `json:"index"`
	DetectionIDs []string `json:"detection_ids"`
	Attempts     int      `json:"attempts"`
	Class        string   `json:"class"`
	Error        string   `json:"error"`
}

// LoadReport summarizes one Load call.
type LoadReport struct {
	Detections    int            `json:"detections"`
	Batches       int            `json:"batches"`
	LoadedBatches int            `json:"loaded_batches"`
	Nodes         int            `json:"nodes"`
	Edges         int            `json:"edges"`
	Retries       int            `json:"retries"`
	Failures      []BatchFailure `json:"failures,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

// Loader writes detections to a Store in batches.
type Loader struct {
	store     Store
	batchSize int
	retry     resilience.RetryConfig
	breaker   *resilience.Breaker
	limiter   *rate.Limiter
}

// Option configures a Loader.
type Option func(*Loader)

// WithBatchSize sets detections per batch. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithRetry sets the per-batch retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(l *Loader) { l.retry = cfg }
}

// WithBreaker guards the store with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(l *Loader) { l.breaker = b }
}

// WithRateLimit caps batch submissions per second. Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(l *Loader) {
		if perSecond > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			l.limiter = nil
		}
	}
}

// NewLoader creates a Loader for store.
func NewLoader(store Store, opts ...Option) *Loader {
	l := &Loader{
		store:     store,
		batchSize: DefaultBatchSize,
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.retry.OnRetry == nil {
		l.retry.OnRetry = resilience.RetryLogger("graph", "merge batch")
	}
	return l
}

// NewLoaderFromConfig builds a Loader with the configured batching, retry,
// breaker and rate limit.
func NewLoaderFromConfig(store Store, cfg config.GraphConfig) *Loader {
	return NewLoader(store,
		WithBatchSize(cfg.BatchSize),
		WithRetry(resilience.FromGraphConfig(cfg)),
		WithBreaker(resilience.BreakerFromGraphConfig(cfg)),
		WithRateLimit(cfg.BatchesPerSecond),
	)
}

// Load merges detections into the store. Detections are ordered by ID so
// repeated loads issue identical batches. A batch that still fails after
// retries is reported in LoadReport.Failures and loading continues. Load
// only returns an error when ctx ends.
func (l *Loader) Load(ctx context.Context, detections []model.TransitionDetection) (*LoadReport, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "graph.loader"))

	sorted := make([]model.TransitionDetection, len(detections))
	copy(sorted, detections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DetectionID < sorted[j].DetectionID })

	report := &LoadReport{Detections: len(sorted)}
	for i, idx := 0, 0; i < len(sorted); i, idx = i+l.batchSize, idx+1 {
		end := min(i+l.batchSize, len(sorted))
		chunk := sorted[i:end]
		report.Batches++

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				report.Duration = time.Since(start)
				return report, eris.Wrap(err, "graph: wait for rate limiter")
			}
		}

		batch := Shape(chunk)
		attempts, err := resilience.Do(ctx, l.retry, func(ctx context.Context) error {
			if l.breaker == nil {
				return l.store.Merge(ctx, batch)
			}
			return l.breaker.Execute(ctx, func(ctx context.Context) error {
				return l.store.Merge(ctx, batch)
			})
		})
		report.Retries += attempts - 1

		if err != nil {
			if ctx.Err() != nil {
				report.Duration = time.Since(start)
				return report, eris.Wrap(ctx.Err(), "graph: load canceled")
			}
			failure := BatchFailure{
				Index:        idx,
				DetectionIDs: detectionIDs(chunk),
				Attempts:     attempts,
				Class:        resilience.Classify(err),
				Error:        err.Error(),
			}
			report.Failures = append(report.Failures, failure)
			log.Warn("graph: batch failed",
				zap.Int("batch", idx),
				zap.Int("detections", len(chunk)),
				zap.Int("attempts", attempts),
				zap.String("class", failure.Class),
				zap.Error(err),
			)
			continue
		}

		report.LoadedBatches++
		report.Nodes += len(batch.Nodes)
		report.Edges += len(batch.Edges)
	}

	report.Duration = time.Since(start)
	log.Info("graph: load complete",
		zap.Int("detections", report.Detections),
		zap.Int("batches", report.Batches),
		zap.Int("failed_batches", len(report.Failures)),
		zap.Int("retries", report.Retries),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func detectionIDs(ds []model.TransitionDetection) []string {
	ids := make([]string, len(ds))
	for i := range ds {
		ids[i] = ds[i].DetectionID
	}
	return ids
}
