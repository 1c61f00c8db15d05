package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(Event{Type: EventPropertyChanged, Processor: id}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, e.Processor)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(Event{Type: EventEvaluate})
	q.Enqueue(Event{Type: EventEvaluate})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("two enqueues should leave a single pending signal")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newEventQueue()

	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()
	q.Close()
	q.Close()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("close should wake waiters")
	}
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Event{Type: EventEvaluate}))
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const writers, each = 8, 50

	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				q.Enqueue(Event{Type: EventPropertyChanged})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, writers*each, q.Len())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "property_changed", EventPropertyChanged.String())
	assert.Equal(t, "evaluate", EventEvaluate.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
