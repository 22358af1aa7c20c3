package metrics

import "time"

// Analysis groups the metrics recorded by the analysis pipeline.
type Analysis struct {
	Truncated     *Counter
	Fallbacks     *Counter
	EmbedFailures *Counter
	InFlight      *Gauge
	BatchSize     *Histogram
	BatchDuration *Histogram

	analyses     CounterVec
	analysisTime HistogramVec
	items        CounterVec
	itemTime     HistogramVec
}

// NewAnalysis registers the analysis metric families on reg.
func NewAnalysis(reg *Registry) *Analysis {
	return &Analysis{
		Truncated:     reg.Counter("minesafe_generation_truncated_total", "Generations that hit the output-token ceiling"),
		Fallbacks:     reg.Counter("minesafe_fallback_total", "Single analyses answered by the keyword fallback"),
		EmbedFailures: reg.Counter("minesafe_chunk_embed_failures_total", "Chunks kept without an embedding"),
		InFlight:      reg.Gauge("minesafe_batch_items_in_flight", "Batch items currently waiting on the model"),
		BatchSize:     reg.Histogram("minesafe_batch_size", "Knowledge bases per batch", []float64{1, 2, 3, 5, 8, 13}),
		BatchDuration: reg.Histogram("minesafe_batch_duration_seconds", "Wall-clock time per batch", nil),

		analyses:     reg.CounterVec("minesafe_analyses_total", "Single analyses by outcome", "outcome"),
		analysisTime: reg.HistogramVec("minesafe_analysis_duration_seconds", "Single analysis latency", nil),
		items:        reg.CounterVec("minesafe_batch_items_total", "Batch items by knowledge base and outcome", "kb", "outcome"),
		itemTime:     reg.HistogramVec("minesafe_batch_item_duration_seconds", "Batch item latency", nil, "kb"),
	}
}

// ObserveAnalysis records one single-path analysis.
func (a *Analysis) ObserveAnalysis(outcome string, elapsed time.Duration) {
	a.analyses.With(outcome).Inc()
	a.analysisTime.With().Observe(elapsed.Seconds())
}

// ObserveBatchItem records one batch item.
func (a *Analysis) ObserveBatchItem(kbID, outcome string, elapsed time.Duration) {
	a.items.With(kbID, outcome).Inc()
	a.itemTime.With(kbID).Observe(elapsed.Seconds())
}
