package animation

import "fmt"

// ControlAction is what a control keyframe does when reached.
type ControlAction int

const (
	// Pause stops playback at the keyframe.
	Pause ControlAction = iota
	// JumpTo moves playback to the keyframe's target time.
	JumpTo
	// Script runs the keyframe's callback and lets time continue.
	Script
)

func (a ControlAction) String() string {
	switch a {
	case Pause:
		return "pause"
	case JumpTo:
		return "jump_to"
	case Script:
		return "script"
	default:
		return fmt.Sprintf("ControlAction(%d)", int(a))
	}
}

// ParseControlAction is the inverse of ControlAction.String.
func ParseControlAction(s string) (ControlAction, error) {
	switch s {
	case "pause":
		return Pause, nil
	case "jump_to", "jump":
		return JumpTo, nil
	case "script":
		return Script, nil
	}
	return 0, fmt.Errorf("unknown control action %q", s)
}

// ControlKeyframe changes playback when the interval being evaluated
// reaches it.
type ControlKeyframe struct {
	time   Seconds
	action ControlAction
	target Seconds
	script func(from, to Seconds)
}

// NewPause creates a keyframe that pauses playback at t.
func NewPause(t Seconds) *ControlKeyframe {
	return &ControlKeyframe{time: t, action: Pause}
}

// NewJumpTo creates a keyframe at t that moves playback to target.
func NewJumpTo(t, target Seconds) *ControlKeyframe {
	return &ControlKeyframe{time: t, action: JumpTo, target: target}
}

// NewScript creates a keyframe at t that calls fn. fn may be nil, which
// makes the keyframe a marker.
func NewScript(t Seconds, fn func(from, to Seconds)) *ControlKeyframe {
	return &ControlKeyframe{time: t, action: Script, script: fn}
}

func (k *ControlKeyframe) Time() Seconds         { return k.time }
func (k *ControlKeyframe) Action() ControlAction { return k.action }
func (k *ControlKeyframe) Target() Seconds       { return k.target }

// Evaluate applies the keyframe to the interval [from, to].
func (k *ControlKeyframe) Evaluate(from, to Seconds, state AnimationState) AnimationTimeState {
	switch k.action {
	case Pause:
		return AnimationTimeState{Time: k.time, State: Paused}
	case JumpTo:
		return AnimationTimeState{Time: k.target, State: state}
	default:
		if k.script != nil {
			k.script(from, to)
		}
		return AnimationTimeState{Time: to, State: state}
	}
}

// ControlSequence is a time-ordered list of control keyframes.
type ControlSequence struct {
	keys []*ControlKeyframe

	// visit, when set, observes each keyframe the fold evaluates.
	visit func(*ControlKeyframe)
}

// NewControlSequence builds a sequence from keyframes in any order.
func NewControlSequence(keys ...*ControlKeyframe) (*ControlSequence, error) {
	s := &ControlSequence{}
	for _, k := range keys {
		if err := s.Add(k); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts k. Two keyframes may not share a time.
func (s *ControlSequence) Add(k *ControlKeyframe) error {
	keys, err := insertSorted(s.keys, k)
	if err != nil {
		return err
	}
	s.keys = keys
	return nil
}

func (s *ControlSequence) Keyframes() []*ControlKeyframe { return s.keys }

func (s *ControlSequence) Len() int { return len(s.keys) }

// Evaluate folds the keyframes in [from, to] in travel order.
func (s *ControlSequence) Evaluate(from, to Seconds, state AnimationState) AnimationTimeState {
	return s.fold(travel(s.keys, from, to, false), from, to, state)
}

// Advance is Evaluate for consecutive playback intervals: a keyframe
// exactly at from belongs to the previous interval and is not applied
// again.
func (s *ControlSequence) Advance(from, to Seconds, state AnimationState) AnimationTimeState {
	return s.fold(travel(s.keys, from, to, true), from, to, state)
}

func (s *ControlSequence) fold(keys []*ControlKeyframe, from, to Seconds, state AnimationState) AnimationTimeState {
	dir := DirectionOf(from, to)
	res := AnimationTimeState{Time: to, State: state}
	for _, k := range keys {
		if res.State == Paused {
			break
		}
		if behind(dir, k.Time(), from) {
			// A forward jump passed over this keyframe.
			continue
		}
		if s.visit != nil {
			s.visit(k)
		}
		res = k.Evaluate(from, to, res.State)
		if res.Time != to && wrongSide(dir, res.Time, k.Time()) {
			break
		}
		if res.Time != to {
			from = res.Time
		} else {
			from = k.Time()
		}
	}
	return res
}

// behind reports whether keyframe time kt was already passed at from.
func behind(dir PlaybackDirection, kt, from Seconds) bool {
	if dir == Forward {
		return kt < from
	}
	return kt > from
}

// wrongSide reports whether t lies at or behind keyframe time kt for the
// direction of travel.
func wrongSide(dir PlaybackDirection, t, kt Seconds) bool {
	if dir == Forward {
		return t <= kt
	}
	return t >= kt
}
