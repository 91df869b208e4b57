package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the name used for the SynAI meter.
const MeterName = "github.com/synai-app/synai"

// SynAIMetrics holds the OpenTelemetry instruments for the chat pipeline.
type SynAIMetrics struct {
	ChatTurnsTotal     metric.Int64Counter
	ChatTurnDuration   metric.Float64Histogram
	SearchesTotal      metric.Int64Counter
	SearchStageServed  metric.Int64Counter
	IndexedChunksTotal metric.Int64Counter
	LLMRequestsTotal   metric.Int64Counter
	LLMRequestDuration metric.Float64Histogram
	LLMTokensTotal     metric.Int64Counter
	LLMErrorsTotal     metric.Int64Counter
}

// NewSynAIMetrics creates the instruments on the global meter provider.
// With no provider configured the instruments are no-ops.
func NewSynAIMetrics() (*SynAIMetrics, error) {
	meter := otel.Meter(MeterName)

	m := &SynAIMetrics{}
	var err error

	if m.ChatTurnsTotal, err = meter.Int64Counter("synai_chat_turns_total",
		metric.WithDescription("Total chat turns served")); err != nil {
		return nil, err
	}
	if m.ChatTurnDuration, err = meter.Float64Histogram("synai_chat_turn_duration_seconds",
		metric.WithDescription("Chat turn duration")); err != nil {
		return nil, err
	}
	if m.SearchesTotal, err = meter.Int64Counter("synai_searches_total",
		metric.WithDescription("Total retrieval searches")); err != nil {
		return nil, err
	}
	if m.SearchStageServed, err = meter.Int64Counter("synai_search_stage_served_total",
		metric.WithDescription("Searches served per cascade stage")); err != nil {
		return nil, err
	}
	if m.IndexedChunksTotal, err = meter.Int64Counter("synai_indexed_chunks_total",
		metric.WithDescription("Total chunks written to the vector index")); err != nil {
		return nil, err
	}
	if m.LLMRequestsTotal, err = meter.Int64Counter("synai_llm_requests_total",
		metric.WithDescription("Total LLM API requests")); err != nil {
		return nil, err
	}
	if m.LLMRequestDuration, err = meter.Float64Histogram("synai_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration")); err != nil {
		return nil, err
	}
	if m.LLMTokensTotal, err = meter.Int64Counter("synai_llm_tokens_total",
		metric.WithDescription("Total tokens used")); err != nil {
		return nil, err
	}
	if m.LLMErrorsTotal, err = meter.Int64Counter("synai_llm_errors_total",
		metric.WithDescription("Total LLM errors")); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordChatTurn records one completed chat turn.
func (m *SynAIMetrics) RecordChatTurn(ctx context.Context, duration time.Duration, failed bool) {
	m.ChatTurnsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("failed", failed)))
	m.ChatTurnDuration.Record(ctx, duration.Seconds())
}

// RecordSearch records a retrieval run and which stage served it.
func (m *SynAIMetrics) RecordSearch(ctx context.Context, stage string) {
	m.SearchesTotal.Add(ctx, 1)
	m.SearchStageServed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordIndexed records chunks written for a document.
func (m *SynAIMetrics) RecordIndexed(ctx context.Context, chunks int) {
	m.IndexedChunksTotal.Add(ctx, int64(chunks))
}

// RecordLLMRequest records an LLM request.
func (m *SynAIMetrics) RecordLLMRequest(ctx context.Context, duration time.Duration, tokens int, err error) {
	m.LLMRequestsTotal.Add(ctx, 1)
	m.LLMRequestDuration.Record(ctx, duration.Seconds())
	m.LLMTokensTotal.Add(ctx, int64(tokens))
	if err != nil {
		m.LLMErrorsTotal.Add(ctx, 1)
	}
}

// Global metrics instance
var globalMetrics *SynAIMetrics
var metricsOnce sync.Once

// Metrics returns the global metrics instance.
func Metrics() *SynAIMetrics {
	metricsOnce.Do(func() {
		globalMetrics, _ = NewSynAIMetrics()
	})
	return globalMetrics
}
