package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brettboylen/zs-parser/pipeline"
)

// Outcome labels for runs
const (
	OutcomeSuccess = "success"
	OutcomeNoData  = "no_data"
	OutcomeDecode  = "decode_failure"
)

// Metrics holds the pipeline counters exported on /metrics
type Metrics struct {
	runs         *prometheus.CounterVec
	recordsRead  *prometheus.CounterVec
	recordsOut   *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
	skippedLines prometheus.Counter
	runDuration  prometheus.Summary
}

// New creates the counters and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zs_parser",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		recordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zs_parser",
			Name:      "records_read_total",
			Help:      "Raw records decoded from input",
		}, []string{"platform"}),
		recordsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zs_parser",
			Name:      "records_normalized_total",
			Help:      "Normalized records left after deduplication",
		}, []string{"platform"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zs_parser",
			Name:      "duplicates_dropped_total",
			Help:      "Records dropped as duplicates",
		}, []string{"platform"}),
		skippedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zs_parser",
			Name:      "skipped_lines_total",
			Help:      "NDJSON lines that failed to decode",
		}),
		runDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "zs_parser",
			Name:      "run_duration_seconds",
			Help:      "Time spent in one pipeline run",
		}),
	}

	reg.MustRegister(m.runs, m.recordsRead, m.recordsOut, m.duplicates, m.skippedLines, m.runDuration)
	return m
}

// ObserveResult accounts for a successful run
func (m *Metrics) ObserveResult(result *pipeline.Result, seconds float64) {
	m.runDuration.Observe(seconds)
	m.skippedLines.Add(float64(result.Counts.SkippedLines))

	if result.Empty() {
		m.runs.WithLabelValues(OutcomeNoData).Inc()
		return
	}
	m.runs.WithLabelValues(OutcomeSuccess).Inc()

	platform := result.Platform
	m.recordsRead.WithLabelValues(platform).Add(float64(result.Counts.Read))
	m.recordsOut.WithLabelValues(platform).Add(float64(result.Counts.Unique))
	m.duplicates.WithLabelValues(platform).Add(float64(result.Counts.Normalized - result.Counts.Unique))
}

// ObserveDecodeFailure accounts for a run that aborted on undecodable input
func (m *Metrics) ObserveDecodeFailure(seconds float64) {
	m.runDuration.Observe(seconds)
	m.runs.WithLabelValues(OutcomeDecode).Inc()
}
