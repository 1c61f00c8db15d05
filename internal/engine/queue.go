package engine

import (
	"sync"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/property"
)

// EventType distinguishes evaluator events.
type EventType int

const (
	// EventPropertyChanged records a property mutation. It carries the
	// property path and the value at the time of the change.
	EventPropertyChanged EventType = iota + 1

	// EventResourcesInvalidated marks a processor for InitializeResources.
	EventResourcesInvalidated

	// EventNetworkChanged reports a structural change or an unlock.
	EventNetworkChanged

	// EventEvaluate requests a pass. Reply, when set, receives the result.
	EventEvaluate
)

func (t EventType) String() string {
	switch t {
	case EventPropertyChanged:
		return "property_changed"
	case EventResourcesInvalidated:
		return "resources_invalidated"
	case EventNetworkChanged:
		return "network_changed"
	case EventEvaluate:
		return "evaluate"
	default:
		return "unknown"
	}
}

// Event is the unit of work of the evaluator loop.
type Event struct {
	Type      EventType
	Processor string
	Level     property.InvalidationLevel
	Path      string
	Value     ir.Value
	Reply     chan<- PassReply
}

// PassReply is delivered on Event.Reply.
type PassReply struct {
	Result PassResult
	Err    error
}

// eventQueue is an unbounded FIFO of events.
//
// Property notifications may arrive from any goroutine while the Run loop
// dequeues. The signal channel lets the loop wait on the queue and on ctx at
// the same time.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It returns false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	// A full buffer already holds a wake-up.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}
	e := q.events[0]
	// Drop the slot's references so the backing array does not retain values.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that receives when events may be available and is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
