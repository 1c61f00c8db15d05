package animation

import (
	"fmt"
	"math"

	"github.com/roach88/procnet/internal/ir"
)

// Interpolation blends between neighbouring value keyframes.
type Interpolation int

const (
	// Constant holds the earlier keyframe's value until the next keyframe.
	Constant Interpolation = iota
	// Linear blends numbers, and arrays of numbers element by element.
	// Values that are not numeric fall back to Constant.
	Linear
)

func (i Interpolation) String() string {
	if i == Linear {
		return "linear"
	}
	return "constant"
}

// ParseInterpolation is the inverse of Interpolation.String. An empty
// string means Linear.
func ParseInterpolation(s string) (Interpolation, error) {
	switch s {
	case "", "linear":
		return Linear, nil
	case "constant":
		return Constant, nil
	}
	return 0, fmt.Errorf("unknown interpolation %q", s)
}

// ValueKeyframe is a property value at a time.
type ValueKeyframe struct {
	time  Seconds
	value ir.Value
}

func NewValueKeyframe(t Seconds, v ir.Value) *ValueKeyframe {
	return &ValueKeyframe{time: t, value: v}
}

func (k *ValueKeyframe) Time() Seconds   { return k.time }
func (k *ValueKeyframe) Value() ir.Value { return k.value }

// ValueSequence is a time-ordered list of value keyframes.
type ValueSequence struct {
	keys   []*ValueKeyframe
	interp Interpolation
}

func NewValueSequence(interp Interpolation, keys ...*ValueKeyframe) (*ValueSequence, error) {
	s := &ValueSequence{interp: interp}
	for _, k := range keys {
		if err := s.Add(k); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts k. Two keyframes may not share a time.
func (s *ValueSequence) Add(k *ValueKeyframe) error {
	keys, err := insertSorted(s.keys, k)
	if err != nil {
		return err
	}
	s.keys = keys
	return nil
}

func (s *ValueSequence) Keyframes() []*ValueKeyframe { return s.keys }

func (s *ValueSequence) Interpolation() Interpolation { return s.interp }

// Span returns the times of the first and last keyframe.
func (s *ValueSequence) Span() (first, last Seconds, ok bool) {
	if len(s.keys) == 0 {
		return 0, 0, false
	}
	return s.keys[0].time, s.keys[len(s.keys)-1].time, true
}

// At returns the value at t. Before the first keyframe the first value
// holds; after the last, the last value holds.
func (s *ValueSequence) At(t Seconds) (ir.Value, error) {
	n := len(s.keys)
	if n == 0 {
		return nil, ErrEmptySequence
	}
	if t <= s.keys[0].time {
		return s.keys[0].value, nil
	}
	if t >= s.keys[n-1].time {
		return s.keys[n-1].value, nil
	}
	_, hi := GetRange(s.keys, s.keys[0].time, t)
	a, b := s.keys[hi-1], s.keys[hi]
	if s.interp == Constant || t == a.time {
		return a.value, nil
	}
	f := float64((t - a.time) / (b.time - a.time))
	return lerp(a.value, b.value, f), nil
}

// lerp blends a toward b by f in [0, 1]. Integers round to nearest.
func lerp(a, b ir.Value, f float64) ir.Value {
	switch av := a.(type) {
	case ir.Int:
		if bv, ok := ir.AsFloat(b); ok {
			return ir.Int(int64(math.Round(float64(av) + (bv-float64(av))*f)))
		}
	case ir.Float:
		if bv, ok := ir.AsFloat(b); ok {
			return ir.Float(float64(av) + (bv-float64(av))*f)
		}
	case ir.Array:
		bv, ok := b.(ir.Array)
		if !ok || len(bv) != len(av) {
			return a
		}
		out := make(ir.Array, len(av))
		for i := range av {
			out[i] = lerp(av[i], bv[i], f)
		}
		return out
	}
	return a
}
