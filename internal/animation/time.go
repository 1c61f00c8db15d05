package animation

import "fmt"

// Seconds is animation time.
type Seconds float64

// PlaybackDirection is the direction time travels.
type PlaybackDirection int

const (
	Forward PlaybackDirection = iota
	Backward
)

func (d PlaybackDirection) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// DirectionOf returns Forward when from <= to.
func DirectionOf(from, to Seconds) PlaybackDirection {
	if from <= to {
		return Forward
	}
	return Backward
}

// AnimationState is whether playback is running.
type AnimationState int

const (
	Paused AnimationState = iota
	Playing
)

func (s AnimationState) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// AnimationTimeState is the result of evaluating an interval.
type AnimationTimeState struct {
	Time  Seconds
	State AnimationState
}

func (ts AnimationTimeState) String() string {
	return fmt.Sprintf("%gs %s", float64(ts.Time), ts.State)
}
