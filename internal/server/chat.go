package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mavik-ai/prescreen/internal/orchestrator"
	"github.com/mavik-ai/prescreen/internal/store"
)

var chatTracer trace.Tracer = otel.Tracer("prescreen/internal/server/chat")

// Engine is the slice of the orchestrator the handler needs.
type Engine interface {
	Run(ctx context.Context, req orchestrator.Request, sink orchestrator.EventSink) orchestrator.Result
}

type ChatHandler struct {
	Orch   Engine
	Store  *store.Store
	Logger *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

type chatRequest struct {
	Message        string `json:"message"`
	DocumentRef    string `json:"document_ref,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// chat runs a chat turn and streams progress via Server-Sent Events.
//
//	@Summary	Chat with streaming progress
//	@Tags		chat
//	@Accept		json
//	@Param		request	body	chatRequest	true	"Chat turn"
//	@Produce	text/event-stream
//	@Success	200	{string}	string
//	@Failure	400	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/api/chat [post]
func (h *ChatHandler) chat(c echo.Context) error {
	var body chatRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(body.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	req := c.Request()
	ctx, span := chatTracer.Start(req.Context(), "ChatHandler.chat")
	defer span.End()
	c.SetRequest(req.WithContext(ctx))

	runID := uuid.NewString()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Bool("run.has_document", body.DocumentRef != ""),
	)

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		span.SetStatus(codes.Error, "streaming unsupported")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if h.Store != nil {
		intent, _ := orchestrator.Classify(body.Message, body.DocumentRef != "")
		if err := h.Store.CreateRun(ctx, runID, string(intent), body.Message); err != nil {
			h.Logger.Printf("audit insert failed for run %s: %v", runID, err)
		}
	}

	sink := &sseSink{resp: resp, flusher: flusher}
	result := h.Orch.Run(ctx, orchestrator.Request{
		ID:             runID,
		ConversationID: body.ConversationID,
		Message:        body.Message,
		DocumentRef:    body.DocumentRef,
	}, sink)

	if h.Store != nil {
		h.persist(result)
	}
	if result.Err != nil {
		span.SetStatus(codes.Error, result.Err.Code)
	} else {
		span.SetStatus(codes.Ok, "completed")
	}
	return nil
}

// persist records the finished run. Uses a fresh context: the request
// context is often already cancelled by the time the stream closes.
func (h *ChatHandler) persist(result orchestrator.Result) {
	events, err := json.Marshal(result.ToolEvents)
	if err != nil {
		events = nil
	}
	upd := store.RunUpdate{
		Status:     store.RunStatusSucceeded,
		ToolEvents: events,
		DurationMS: result.Elapsed.Milliseconds(),
	}
	if result.Answer != "" {
		upd.Answer = &result.Answer
	}
	if result.ArtifactURL != "" {
		upd.ArtifactURL = &result.ArtifactURL
	}
	if result.Err != nil {
		upd.Status = store.RunStatusFailed
		msg := result.Err.Error()
		upd.Error = &msg
	}
	if err := h.Store.FinishRun(context.Background(), result.RunID, upd); err != nil {
		h.Logger.Printf("audit update failed for run %s: %v", result.RunID, err)
	}
}

// sseSink writes orchestrator events as SSE frames. Send serializes
// writes to the response.
type sseSink struct {
	mu      sync.Mutex
	resp    *echo.Response
	flusher http.Flusher
}

func (s *sseSink) Send(ev orchestrator.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
