package orchestrator

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *collectSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestEventZeroValuesStayOnTheWire(t *testing.T) {
	section, err := json.Marshal(Event{Type: EventSection, Index: 0, Title: "Deal Summary", Content: "x"})
	if err != nil {
		t.Fatalf("marshal section: %v", err)
	}
	if !strings.Contains(string(section), `"index":0`) {
		t.Fatalf("first section frame lost its index: %s", section)
	}

	done, err := json.Marshal(Event{Type: EventDone, TotalTimeMS: 0})
	if err != nil {
		t.Fatalf("marshal done: %v", err)
	}
	if !strings.Contains(string(done), `"total_time_ms":0`) {
		t.Fatalf("sub-millisecond done frame lost its timing: %s", done)
	}
}

func TestEmitterDeliversInOrder(t *testing.T) {
	sink := &collectSink{}
	em := NewEmitter(sink)
	for i := 0; i < 50; i++ {
		em.Emit(Event{Type: EventStatus, Index: i})
	}
	em.Close()

	events := sink.all()
	if len(events) != 50 {
		t.Fatalf("delivered %d events, want 50", len(events))
	}
	for i, ev := range events {
		if ev.Index != i {
			t.Fatalf("event %d has index %d, out of order", i, ev.Index)
		}
	}
}

func TestEmitterDoesNotBlockOnSlowSink(t *testing.T) {
	slow := SinkFunc(func(Event) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	em := NewEmitter(slow)

	start := time.Now()
	for i := 0; i < 10; i++ {
		em.Emit(Event{Type: EventStatus, Index: i})
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Fatalf("Emit blocked for %s", elapsed)
	}
	em.Close()
}

func TestEmitterCloseFlushesQueue(t *testing.T) {
	var delivered int
	var mu sync.Mutex
	sink := SinkFunc(func(Event) error {
		time.Sleep(time.Millisecond)
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	em := NewEmitter(sink)
	for i := 0; i < 20; i++ {
		em.Emit(Event{Type: EventStatus})
	}
	em.Close()

	mu.Lock()
	defer mu.Unlock()
	if delivered != 20 {
		t.Fatalf("delivered %d events before Close returned, want 20", delivered)
	}
}

func TestEmitterDeadSinkDoesNotHang(t *testing.T) {
	calls := 0
	sink := SinkFunc(func(Event) error {
		calls++
		return errors.New("client gone")
	})
	em := NewEmitter(sink)
	for i := 0; i < 100; i++ {
		em.Emit(Event{Type: EventStatus})
	}

	finished := make(chan struct{})
	go func() {
		em.Close()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung on a dead sink")
	}
	if calls == 0 {
		t.Fatal("sink was never tried")
	}
}

func TestEmitterConcurrentEmit(t *testing.T) {
	sink := &collectSink{}
	em := NewEmitter(sink)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				em.Emit(Event{Type: EventTool})
			}
		}()
	}
	wg.Wait()
	em.Close()

	if got := len(sink.all()); got != 200 {
		t.Fatalf("delivered %d events, want 200", got)
	}
}
