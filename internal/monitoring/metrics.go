// Package monitoring exports run metrics and alerts on detection-run health.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/transition-cli/internal/detect"
	"github.com/sells-group/transition-cli/internal/graph"
	"github.com/sells-group/transition-cli/internal/model"
)

const namespace = "transition"

// RunMetrics holds the counters for a detection run. It implements
// detect.Observer and is safe for concurrent use.
type RunMetrics struct {
	awards           prometheus.Counter
	candidates       prometheus.Counter
	resolved         prometheus.Counter
	unresolved       prometheus.Counter
	malformed        prometheus.Counter
	windowedOut      prometheus.Counter
	scored           prometheus.Counter
	emitted          prometheus.Counter
	evidenceRejected prometheus.Counter
	matchRate        prometheus.Gauge
	detections       *prometheus.CounterVec
	graphBatches     *prometheus.CounterVec
	graphRetries     prometheus.Counter

	mu    sync.Mutex
	total detect.Stats
}

var _ detect.Observer = (*RunMetrics)(nil)

// NewRunMetrics registers the run metrics on reg.
func NewRunMetrics(reg prometheus.Registerer) *RunMetrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	return &RunMetrics{
		awards:           counter("awards_processed_total", "Award evaluations completed."),
		candidates:       counter("candidates_total", "Contracts considered as candidates."),
		resolved:         counter("candidates_resolved_total", "Candidates whose vendor resolved to the award vendor."),
		unresolved:       counter("candidates_unresolved_total", "Candidates whose vendor did not resolve."),
		malformed:        counter("candidates_malformed_total", "Resolved candidates skipped because the contract record is malformed."),
		windowedOut:      counter("candidates_windowed_out_total", "Resolved candidates outside the timing window."),
		scored:           counter("pairs_scored_total", "Award-contract pairs scored."),
		emitted:          counter("detections_emitted_total", "Detections emitted."),
		evidenceRejected: counter("evidence_rejected_total", "Pairs dropped because their evidence bundle failed validation."),
		matchRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vendor_match_rate",
			Help: "Resolved candidates over all candidates for the current run.",
		}),
		detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "detections_total",
			Help: "Detections by confidence band.",
		}, []string{"band"}),
		graphBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "graph_batches_total",
			Help: "Graph load batches by result.",
		}, []string{"result"}),
		graphRetries: counter("graph_retries_total", "Graph batch write retries."),
	}
}

// ObserveAward records the stage counts for one award evaluation.
func (m *RunMetrics) ObserveAward(s detect.Stats) {
	m.awards.Inc()
	m.candidates.Add(float64(s.Candidates))
	m.resolved.Add(float64(s.Resolved))
	m.unresolved.Add(float64(s.Unresolved))
	m.malformed.Add(float64(s.Malformed))
	m.windowedOut.Add(float64(s.WindowedOut))
	m.scored.Add(float64(s.Scored))
	m.emitted.Add(float64(s.Emitted))
	m.evidenceRejected.Add(float64(s.EvidenceRejected))

	m.mu.Lock()
	m.total.Add(s)
	rate := m.total.MatchRate()
	m.mu.Unlock()
	m.matchRate.Set(rate)
}

// ObserveDetections counts detections by band.
func (m *RunMetrics) ObserveDetections(ds []model.TransitionDetection) {
	for i := range ds {
		m.detections.WithLabelValues(string(ds[i].Band)).Inc()
	}
}

// ObserveLoad records a graph load report.
func (m *RunMetrics) ObserveLoad(r *graph.LoadReport) {
	if r == nil {
		return
	}
	m.graphBatches.WithLabelValues("loaded").Add(float64(r.LoadedBatches))
	m.graphBatches.WithLabelValues("failed").Add(float64(len(r.Failures)))
	m.graphRetries.Add(float64(r.Retries))
}

// Totals returns the accumulated stage counts.
func (m *RunMetrics) Totals() detect.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// WriteTextfile writes every metric in g to path in the node-exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return eris.Wrap(prometheus.WriteToTextfile(path, g), "monitoring: write textfile")
}
