// Package orchestrator routes a chat request through tool stages and
// synthesis, streaming progress events to the caller as it goes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mavik-ai/prescreen/internal/config"
	"github.com/mavik-ai/prescreen/internal/llm"
	"github.com/mavik-ai/prescreen/internal/telemetry"
	"github.com/mavik-ai/prescreen/internal/tools"
)

var orchestratorTracer trace.Tracer = otel.Tracer("prescreen/internal/orchestrator")

// Result is what a finished run leaves behind for the audit store.
type Result struct {
	RunID       string
	Intent      Intent
	Answer      string
	ArtifactURL string
	ToolEvents  []ToolEvent
	Elapsed     time.Duration
	Err         *FatalError
}

// Orchestrator drives runs end to end. It is safe for concurrent use;
// each run's mutable state lives on the run, not the engine.
type Orchestrator struct {
	config    *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	registry  *tools.Registry
	provider  llm.Provider
	routing   llm.Routing
	semaphore chan struct{}
}

func New(cfg *config.Config, logger *log.Logger, tel *telemetry.Telemetry, registry *tools.Registry, provider llm.Provider) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("LLM provider is required")
	}
	maxRuns := cfg.Orchestrator.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = 8
	}
	return &Orchestrator{
		config:    cfg,
		logger:    logger,
		telemetry: tel,
		registry:  registry,
		provider:  provider,
		routing:   llm.Routing{Synthesis: cfg.LLM.Routing.Synthesis, Fallback: cfg.LLM.Routing.Fallback},
		semaphore: make(chan struct{}, maxRuns),
	}, nil
}

// Run executes one request against the sink. It always emits a final
// done event, carrying the error code when the run failed, and never
// returns before every emitted event has been handed to the sink.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink EventSink) Result {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	ctx, span := orchestratorTracer.Start(ctx, "orchestrator.run",
		trace.WithAttributes(
			attribute.String("run.id", req.ID),
			attribute.Bool("run.has_document", req.DocumentRef != ""),
		))
	defer span.End()

	emitter := NewEmitter(sink)
	intent, required := Classify(req.Message, req.DocumentRef != "")
	state := NewState(req, intent)
	stages := Plan(required)
	span.SetAttributes(
		attribute.String("run.intent", string(intent)),
		attribute.Int("run.stages", len(stages)),
	)
	o.logger.Printf("run %s: intent=%s stages=%d", req.ID, intent, len(stages))

	runErr := func() *FatalError {
		select {
		case o.semaphore <- struct{}{}:
			defer func() { <-o.semaphore }()
		case <-ctx.Done():
			return fatal(CodeCancelled, ctx.Err())
		}

		runCtx, cancel := context.WithTimeout(ctx, o.config.Orchestrator.RunTimeout)
		defer cancel()
		return o.execute(runCtx, state, stages, emitter)
	}()

	elapsed := time.Since(start)
	done := Event{Type: EventDone, TotalTimeMS: elapsed.Milliseconds()}
	errCode := ""
	if runErr != nil {
		errCode = runErr.Code
		done.Error = runErr.Code
		done.Detail = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Code)
	} else {
		span.SetStatus(codes.Ok, "completed")
	}
	o.emit(ctx, emitter, done)
	emitter.Close()

	o.telemetry.RecordRun(ctx, string(intent), elapsed, errCode)
	o.logger.Printf("run %s: finished in %s (error=%q)", req.ID, elapsed.Round(time.Millisecond), errCode)

	return Result{
		RunID:       req.ID,
		Intent:      intent,
		Answer:      state.Answer,
		ArtifactURL: state.ArtifactURL,
		ToolEvents:  state.ToolEvents,
		Elapsed:     elapsed,
		Err:         runErr,
	}
}

// execute walks the plan stage by stage.
func (o *Orchestrator) execute(ctx context.Context, state *State, stages []Stage, em *Emitter) *FatalError {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return timeoutOrCancel(err)
		}

		if len(stage) == 1 && stage[0] == tools.Synthesize {
			if err := o.synthesize(ctx, state, em); err != nil {
				return err
			}
			continue
		}
		if len(stage) == 1 && stage[0] == tools.GenerateReport {
			o.generateArtifact(ctx, state, em)
			continue
		}

		o.emit(ctx, em, Event{Type: EventStatus, Stage: stageName(stage), Message: stageMessage(stage)})
		stageCtx, stageSpan := orchestratorTracer.Start(ctx, "orchestrator.stage",
			trace.WithAttributes(attribute.String("stage.name", stageName(stage))))
		o.runToolStage(stageCtx, state, stage, em)
		stageSpan.End()

		// Extraction is the one tool the rest of a document run cannot
		// do without.
		if state.Intent == IntentDocumentQA && state.failed(tools.Extract) {
			return fatal(CodeExtractionFailure, errors.New("document extraction failed"))
		}
	}
	return nil
}

// runToolStage fans the stage's tools out, waits for all of them, and
// merges their outputs. Start events go out in stage order before any
// tool runs; completion events go out as each tool finishes, serialized
// by the stage lock.
func (o *Orchestrator) runToolStage(ctx context.Context, state *State, stage Stage, em *Emitter) {
	for _, id := range stage {
		o.emit(ctx, em, Event{Type: EventTool, Tool: string(id), Status: "started"})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, id := range stage {
		adapter, ok := o.registry.Get(id)
		if !ok {
			mu.Lock()
			o.finishTool(ctx, state, em, ToolEvent{Tool: id, Status: "failed", Error: "not registered"}, tools.Output{})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(id tools.ID, adapter tools.Adapter) {
			defer wg.Done()
			toolStart := time.Now()
			toolCtx, cancel := context.WithTimeout(ctx, o.config.Orchestrator.ToolTimeout)
			defer cancel()
			toolCtx, toolSpan := orchestratorTracer.Start(toolCtx, "orchestrator.tool",
				trace.WithAttributes(attribute.String("tool.id", string(id))))

			mu.Lock()
			req := state.toolRequest(o.config.Tools.Report.Title)
			mu.Unlock()

			out, err := adapter.Invoke(toolCtx, req)
			ev := ToolEvent{Tool: id, DurationMS: time.Since(toolStart).Milliseconds()}
			if err != nil {
				ev.Status = "failed"
				ev.Error = toolErrorDetail(err)
				toolSpan.RecordError(err)
				toolSpan.SetStatus(codes.Error, ev.Error)
			} else {
				ev.Status = "succeeded"
				ev.Summary = out.Summary
				toolSpan.SetStatus(codes.Ok, "completed")
			}
			toolSpan.End()

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				state.merge(id, out)
			}
			o.finishTool(ctx, state, em, ev, out)
		}(id, adapter)
	}
	wg.Wait()
}

// finishTool records a tool outcome and emits its completion event.
// Caller holds the stage lock.
func (o *Orchestrator) finishTool(ctx context.Context, state *State, em *Emitter, ev ToolEvent, out tools.Output) {
	state.ToolEvents = append(state.ToolEvents, ev)
	event := Event{
		Type:       EventTool,
		Tool:       string(ev.Tool),
		Status:     ev.Status,
		DurationMS: ev.DurationMS,
	}
	if ev.Status == "failed" {
		event.Detail = ev.Error
		o.logger.Printf("tool %s failed after %dms: %s", ev.Tool, ev.DurationMS, ev.Error)
	} else {
		event.Detail = ev.Summary
	}
	o.emit(ctx, em, event)
	o.telemetry.RecordTool(ctx, string(ev.Tool), ev.Status, time.Duration(ev.DurationMS)*time.Millisecond)
}

// synthesize produces the final answer. Failure here is fatal: a run
// without an answer has nothing to stream.
func (o *Orchestrator) synthesize(ctx context.Context, state *State, em *Emitter) *FatalError {
	o.emit(ctx, em, Event{Type: EventStatus, Stage: "synthesize", Message: "Synthesizing answer"})

	model, err := o.routing.ModelFor("synthesis")
	if err != nil {
		return fatal(CodeSynthesisFailure, err)
	}

	synthCtx, synthSpan := orchestratorTracer.Start(ctx, "orchestrator.synthesize",
		trace.WithAttributes(attribute.String("llm.model", model)))
	prompt := buildSynthesisPrompt(state)
	start := time.Now()
	answer, inTok, outTok, err := o.provider.GenerateWithTokens(synthCtx, prompt, model, map[string]interface{}{
		"temperature": 0.2,
	})
	if err != nil {
		synthSpan.RecordError(err)
		synthSpan.SetStatus(codes.Error, err.Error())
		synthSpan.End()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return timeoutOrCancel(ctxErr)
		}
		return fatal(CodeSynthesisFailure, err)
	}
	synthSpan.SetStatus(codes.Ok, "completed")
	synthSpan.End()

	state.Answer = answer
	state.ToolEvents = append(state.ToolEvents, ToolEvent{
		Tool:       tools.Synthesize,
		Status:     "succeeded",
		DurationMS: time.Since(start).Milliseconds(),
	})
	o.telemetry.RecordSynthesis(ctx, model, inTok, outTok, 0)

	if state.Intent == IntentPreScreen {
		for i, section := range splitSections(answer) {
			o.emit(ctx, em, Event{
				Type:    EventSection,
				Index:   i,
				Title:   section.Title,
				Content: section.Content,
			})
		}
	}
	o.emit(ctx, em, Event{Type: EventAnswer, Content: answer})
	return nil
}

// generateArtifact renders the report. Artifact failure is recorded on
// the stream but never fails the run; the answer already went out.
func (o *Orchestrator) generateArtifact(ctx context.Context, state *State, em *Emitter) {
	o.emit(ctx, em, Event{Type: EventStatus, Stage: "generate_report", Message: "Building report"})
	o.runToolStage(ctx, state, Stage{tools.GenerateReport}, em)
	if state.ArtifactURL != "" {
		o.emit(ctx, em, Event{
			Type:         EventArtifact,
			ArtifactType: state.ArtifactType,
			URL:          state.ArtifactURL,
		})
	}
}

func (o *Orchestrator) emit(ctx context.Context, em *Emitter, ev Event) {
	em.Emit(ev)
	o.telemetry.RecordEvent(ctx, string(ev.Type))
}

func toolErrorDetail(err error) string {
	var terr *tools.Error
	if errors.As(err, &terr) {
		return terr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

func timeoutOrCancel(err error) *FatalError {
	if errors.Is(err, context.DeadlineExceeded) {
		return fatal(CodeRunTimeout, err)
	}
	return fatal(CodeCancelled, err)
}

func stageName(stage Stage) string {
	if len(stage) == 1 {
		return string(stage[0])
	}
	return "gather"
}

func stageMessage(stage Stage) string {
	if len(stage) == 1 {
		switch stage[0] {
		case tools.Extract:
			return "Extracting document"
		case tools.Retrieve:
			return "Searching comparable deals"
		case tools.Web:
			return "Searching the web"
		case tools.Calculate:
			return "Computing metrics"
		}
	}
	return "Gathering context"
}
