// Package telemetry records run and tool metrics through OpenTelemetry.
package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce    sync.Once
	runsTotal      otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	toolsTotal     otelmetric.Int64Counter
	toolDuration   otelmetric.Float64Histogram
	eventsTotal    otelmetric.Int64Counter
	synthesisCost  otelmetric.Float64Counter
	synthesisToken otelmetric.Int64Counter
)

func initMetrics() {
	meter := otel.Meter("prescreen/orchestrator")
	var err error
	runsTotal, err = meter.Int64Counter(
		"prescreen_runs_total",
		otelmetric.WithDescription("Orchestrated runs by intent and outcome"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_runs_total: %v", err)
	}
	runDuration, err = meter.Float64Histogram(
		"prescreen_run_duration_seconds",
		otelmetric.WithDescription("End-to-end run duration"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_run_duration_seconds: %v", err)
	}
	toolsTotal, err = meter.Int64Counter(
		"prescreen_tool_invocations_total",
		otelmetric.WithDescription("Tool invocations by tool and status"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_tool_invocations_total: %v", err)
	}
	toolDuration, err = meter.Float64Histogram(
		"prescreen_tool_duration_seconds",
		otelmetric.WithDescription("Tool invocation duration"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_tool_duration_seconds: %v", err)
	}
	eventsTotal, err = meter.Int64Counter(
		"prescreen_stream_events_total",
		otelmetric.WithDescription("Progress events emitted by type"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_stream_events_total: %v", err)
	}
	synthesisCost, err = meter.Float64Counter(
		"prescreen_synthesis_cost_dollars",
		otelmetric.WithDescription("Estimated LLM spend"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_synthesis_cost_dollars: %v", err)
	}
	synthesisToken, err = meter.Int64Counter(
		"prescreen_synthesis_tokens_total",
		otelmetric.WithDescription("LLM tokens by direction"),
	)
	if err != nil {
		log.Printf("telemetry init: prescreen_synthesis_tokens_total: %v", err)
	}
}

// Telemetry is the recording handle handed to the engine. A nil
// *Telemetry is valid and records nothing.
type Telemetry struct {
	enabled bool
}

func New(enabled bool) *Telemetry {
	if enabled {
		metricsOnce.Do(initMetrics)
	}
	return &Telemetry{enabled: enabled}
}

func (t *Telemetry) active() bool { return t != nil && t.enabled }

// RecordRun records a completed run.
func (t *Telemetry) RecordRun(ctx context.Context, intent string, duration time.Duration, errCode string) {
	if !t.active() || runsTotal == nil {
		return
	}
	outcome := "success"
	if errCode != "" {
		outcome = errCode
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("intent", intent),
		attribute.String("outcome", outcome),
	)
	runsTotal.Add(ctx, 1, attrs)
	if runDuration != nil {
		runDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordTool records one tool invocation.
func (t *Telemetry) RecordTool(ctx context.Context, tool, status string, duration time.Duration) {
	if !t.active() || toolsTotal == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	)
	toolsTotal.Add(ctx, 1, attrs)
	if toolDuration != nil {
		toolDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordEvent counts one progress event.
func (t *Telemetry) RecordEvent(ctx context.Context, eventType string) {
	if !t.active() || eventsTotal == nil {
		return
	}
	eventsTotal.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", eventType)))
}

// RecordSynthesis records LLM token usage and estimated cost.
func (t *Telemetry) RecordSynthesis(ctx context.Context, model string, inputTokens, outputTokens int64, cost float64) {
	if !t.active() {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("model", model))
	if synthesisToken != nil {
		synthesisToken.Add(ctx, inputTokens, otelmetric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "input")))
		synthesisToken.Add(ctx, outputTokens, otelmetric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "output")))
	}
	if synthesisCost != nil && cost > 0 {
		synthesisCost.Add(ctx, cost, attrs)
	}
}
