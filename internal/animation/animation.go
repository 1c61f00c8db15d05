package animation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/procnet/internal/property"
)

// PropertyTrack drives one property from a value sequence.
type PropertyTrack struct {
	prop property.Property
	seq  *ValueSequence
}

func NewPropertyTrack(p property.Property, seq *ValueSequence) *PropertyTrack {
	return &PropertyTrack{prop: p, seq: seq}
}

func (t *PropertyTrack) Property() property.Property { return t.prop }

func (t *PropertyTrack) Sequence() *ValueSequence { return t.seq }

// Apply sets the property to the sequence value at time at.
func (t *PropertyTrack) Apply(at Seconds) error {
	v, err := t.seq.At(at)
	if err != nil {
		return fmt.Errorf("track %s: %w", t.prop.Path(), err)
	}
	if err := t.prop.SetValue(v); err != nil {
		return fmt.Errorf("track %s: %w", t.prop.Path(), err)
	}
	return nil
}

// Animation is a set of control and property tracks evaluated together.
// Control tracks run first and may pause playback or move it; property
// tracks are then applied at the resulting time.
type Animation struct {
	mu       sync.Mutex
	controls []*ControlSequence
	tracks   []*PropertyTrack
	logger   *slog.Logger
}

// Option configures an Animation.
type Option func(*Animation)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Animation) { a.logger = l }
}

func New(opts ...Option) *Animation {
	a := &Animation{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Animation) AddControls(seq *ControlSequence) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.controls = append(a.controls, seq)
}

func (a *Animation) AddTrack(t *PropertyTrack) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracks = append(a.tracks, t)
}

// RemoveTracksFor drops every track driving p. Call it when p's owner
// is about to remove it.
func (a *Animation) RemoveTracksFor(p property.Property) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.tracks[:0]
	for _, t := range a.tracks {
		if t.prop != p {
			kept = append(kept, t)
		}
	}
	a.tracks = kept
}

func (a *Animation) Tracks() []*PropertyTrack {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*PropertyTrack(nil), a.tracks...)
}

// Span returns the earliest and latest keyframe time over all tracks.
func (a *Animation) Span() (first, last Seconds, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	extend := func(t Seconds) {
		if !ok {
			first, last, ok = t, t, true
			return
		}
		first, last = min(first, t), max(last, t)
	}
	for _, t := range a.tracks {
		if f, l, has := t.seq.Span(); has {
			extend(f)
			extend(l)
		}
	}
	for _, c := range a.controls {
		if c.Len() > 0 {
			extend(c.keys[0].time)
			extend(c.keys[len(c.keys)-1].time)
		}
	}
	return first, last, ok
}

// Evaluate runs the interval [from, to] including a control keyframe
// exactly at from.
func (a *Animation) Evaluate(from, to Seconds, state AnimationState) (AnimationTimeState, error) {
	return a.run(from, to, state, false)
}

// Advance runs a playback interval that continues the previous one.
func (a *Animation) Advance(from, to Seconds, state AnimationState) (AnimationTimeState, error) {
	return a.run(from, to, state, true)
}

// ApplyAt sets every property track to its value at t without running
// control keyframes.
func (a *Animation) ApplyAt(t Seconds) error {
	var errs []error
	for _, tr := range a.Tracks() {
		if err := tr.Apply(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Animation) run(from, to Seconds, state AnimationState, skipFrom bool) (AnimationTimeState, error) {
	a.mu.Lock()
	controls := append([]*ControlSequence(nil), a.controls...)
	a.mu.Unlock()

	res := AnimationTimeState{Time: to, State: state}
	for _, c := range controls {
		r := c.fold(travel(c.keys, from, to, skipFrom), from, to, state)
		if r.Time != to || r.State != state {
			a.logger.Debug("control keyframe", "from", float64(from), "to", float64(to), "result", r.String())
			res = r
			break
		}
	}
	return res, a.ApplyAt(res.Time)
}
