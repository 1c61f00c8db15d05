package property

import (
	"slices"
	"sync"
)

// Observer is notified after a property value changed.
type Observer interface {
	OnChange(p Property)
}

// Callback adapts a function to Observer. Callbacks are compared by
// pointer, so keep the returned value to remove it later.
type Callback struct {
	fn func(Property)
}

// OnChange wraps fn as an Observer.
func OnChange(fn func(Property)) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) OnChange(p Property) { c.fn(p) }

// observerList is an ordered set of observers that tolerates mutation
// during dispatch.
type observerList[T comparable] struct {
	mu    sync.Mutex
	items []T
}

func (l *observerList[T]) add(o T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.items, o) {
		return
	}
	l.items = append(l.items, o)
}

func (l *observerList[T]) remove(o T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.items, o); i >= 0 {
		l.items = slices.Delete(l.items, i, i+1)
	}
}

func (l *observerList[T]) contains(o T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.items, o)
}

func (l *observerList[T]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// each calls fn for every observer in registration order, iterating over a
// snapshot. An observer removed by an earlier callback in the same round is
// skipped; one added during the round is not called until the next.
func (l *observerList[T]) each(fn func(T)) {
	l.mu.Lock()
	snapshot := slices.Clone(l.items)
	l.mu.Unlock()

	for _, o := range snapshot {
		if !l.contains(o) {
			continue
		}
		fn(o)
	}
}
