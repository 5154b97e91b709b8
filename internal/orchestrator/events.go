package orchestrator

import "sync"

// EventType is the discriminator of a progress event.
type EventType string

const (
	EventStatus   EventType = "status"
	EventTool     EventType = "tool"
	EventSection  EventType = "section"
	EventAnswer   EventType = "answer"
	EventArtifact EventType = "artifact"
	EventDone     EventType = "done"
)

// Event is one frame on the progress stream. Only the fields relevant
// to the event type are set.
type Event struct {
	Type EventType `json:"type"`

	// status
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`

	// tool
	Tool       string `json:"tool,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Detail     string `json:"detail,omitempty"`

	// section; Index has no omitempty so the first section keeps index 0
	// on the wire
	Index   int    `json:"index"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`

	// artifact
	ArtifactType string `json:"artifact_type,omitempty"`
	URL          string `json:"url,omitempty"`

	// done; TotalTimeMS has no omitempty so a sub-millisecond run still
	// reports its timing
	TotalTimeMS int64  `json:"total_time_ms"`
	Error       string `json:"error,omitempty"`
}

// EventSink receives events in order. Send may block (a slow client);
// the emitter shields the engine from that.
type EventSink interface {
	Send(Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event) error

func (f SinkFunc) Send(ev Event) error { return f(ev) }

// Emitter decouples the engine from the sink. Emit appends to an
// internal queue and returns immediately; a forwarder goroutine drains
// the queue to the sink in order. Once the sink errors (client gone),
// remaining events are consumed and discarded so Close never hangs.
type Emitter struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	closed   bool
	sinkDead bool
	done     chan struct{}
	sink     EventSink
}

func NewEmitter(sink EventSink) *Emitter {
	e := &Emitter{sink: sink, done: make(chan struct{})}
	e.cond = sync.NewCond(&e.mu)
	go e.forward()
	return e
}

// Emit enqueues an event. It never blocks on the sink and is safe for
// concurrent use. Events emitted after Close are dropped.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue = append(e.queue, ev)
	e.cond.Signal()
}

// Close marks the stream complete and waits until every queued event
// has been handed to the sink.
func (e *Emitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		e.cond.Signal()
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) forward() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		batch := e.queue
		e.queue = nil
		closed := e.closed
		e.mu.Unlock()

		for _, ev := range batch {
			if e.sinkDead {
				continue
			}
			if err := e.sink.Send(ev); err != nil {
				e.sinkDead = true
			}
		}
		if closed && len(batch) == 0 {
			return
		}
		if closed {
			// drain anything emitted between unlock and the sends
			e.mu.Lock()
			empty := len(e.queue) == 0
			e.mu.Unlock()
			if empty {
				return
			}
		}
	}
}
