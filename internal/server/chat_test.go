package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mavik-ai/prescreen/internal/orchestrator"
)

type stubEngine struct {
	events []orchestrator.Event
	result orchestrator.Result
	gotReq orchestrator.Request
}

func (s *stubEngine) Run(ctx context.Context, req orchestrator.Request, sink orchestrator.EventSink) orchestrator.Result {
	s.gotReq = req
	for _, ev := range s.events {
		_ = sink.Send(ev)
	}
	res := s.result
	res.RunID = req.ID
	return res
}

func postChat(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.chat(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decodeFrames(t *testing.T, body string) []orchestrator.Event {
	t.Helper()
	var events []orchestrator.Event
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev orchestrator.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestChatStreamsEvents(t *testing.T) {
	engine := &stubEngine{
		events: []orchestrator.Event{
			{Type: orchestrator.EventStatus, Stage: "calculate", Message: "Computing metrics"},
			{Type: orchestrator.EventTool, Tool: "calculate", Status: "started"},
			{Type: orchestrator.EventTool, Tool: "calculate", Status: "succeeded", DurationMS: 3},
			{Type: orchestrator.EventAnswer, Content: "DSCR = 2,500,000 / 1,800,000 = 1.39x"},
			{Type: orchestrator.EventDone, TotalTimeMS: 42},
		},
		result: orchestrator.Result{Intent: orchestrator.IntentCalculation, Elapsed: 42 * time.Millisecond},
	}
	h := &ChatHandler{Orch: engine, Logger: log.New(log.Writer(), "[TEST] ", 0)}

	rec := postChat(t, h, `{"message":"Calculate DSCR for NOI of 2,500,000 and debt service of 1,800,000"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := decodeFrames(t, rec.Body.String())
	if len(events) != 5 {
		t.Fatalf("got %d frames, want 5", len(events))
	}
	last := events[len(events)-1]
	if last.Type != orchestrator.EventDone || last.TotalTimeMS != 42 {
		t.Fatalf("last frame = %+v", last)
	}
	if engine.gotReq.Message == "" || engine.gotReq.ID == "" {
		t.Fatalf("engine request not populated: %+v", engine.gotReq)
	}
}

// noFlushWriter hides the recorder's Flush method.
type noFlushWriter struct {
	http.ResponseWriter
}

func TestChatNonFlushableWriterGets503(t *testing.T) {
	h := &ChatHandler{Orch: &stubEngine{}, Logger: log.New(log.Writer(), "[TEST] ", 0)}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, &noFlushWriter{rec})
	if err := h.chat(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct == "text/event-stream" {
		t.Fatalf("stream headers written before the flusher check")
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	h := &ChatHandler{Orch: &stubEngine{}, Logger: log.New(log.Writer(), "[TEST] ", 0)}
	rec := postChat(t, h, `{"message":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatPassesDocumentRef(t *testing.T) {
	engine := &stubEngine{
		events: []orchestrator.Event{{Type: orchestrator.EventDone, TotalTimeMS: 1}},
	}
	h := &ChatHandler{Orch: engine, Logger: log.New(log.Writer(), "[TEST] ", 0)}

	rec := postChat(t, h, `{"message":"analyze this","document_ref":"upload:abc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if engine.gotReq.DocumentRef != "upload:abc" {
		t.Fatalf("document_ref = %q", engine.gotReq.DocumentRef)
	}
}

func TestChatFatalRunStillStreams(t *testing.T) {
	engine := &stubEngine{
		events: []orchestrator.Event{
			{Type: orchestrator.EventDone, TotalTimeMS: 9, Error: orchestrator.CodeSynthesisFailure},
		},
		result: orchestrator.Result{
			Err: &orchestrator.FatalError{Code: orchestrator.CodeSynthesisFailure},
		},
	}
	h := &ChatHandler{Orch: engine, Logger: log.New(log.Writer(), "[TEST] ", 0)}

	rec := postChat(t, h, `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: fatal runs still stream a done frame", rec.Code)
	}
	events := decodeFrames(t, rec.Body.String())
	if len(events) != 1 || events[0].Error != orchestrator.CodeSynthesisFailure {
		t.Fatalf("frames = %+v", events)
	}
}
