package animation

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrUnorderedKeyframes is returned when two keyframes share a time.
	ErrUnorderedKeyframes = errors.New("keyframes must have distinct times")

	// ErrEmptySequence is returned when evaluating a sequence with no keyframes.
	ErrEmptySequence = errors.New("empty keyframe sequence")
)

// Keyframe is a time-stamped sample.
type Keyframe interface {
	Time() Seconds
}

// GetRange returns the half-open index range [lo, hi) of the keyframes
// whose time lies in the closed interval between from and to. keys must be
// sorted by time. The order of from and to does not matter.
func GetRange[K Keyframe](keys []K, from, to Seconds) (lo, hi int) {
	low, high := min(from, to), max(from, to)
	lo = sort.Search(len(keys), func(i int) bool { return keys[i].Time() >= low })
	hi = lo + sort.Search(len(keys)-lo, func(i int) bool { return keys[lo+i].Time() > high })
	return lo, hi
}

// travel returns the keyframes in [from, to] in travel order. When
// skipFrom is set a keyframe exactly at from is left out: it was reached
// by the interval before this one.
func travel[K Keyframe](keys []K, from, to Seconds, skipFrom bool) []K {
	lo, hi := GetRange(keys, from, to)
	out := slices.Clone(keys[lo:hi])
	if DirectionOf(from, to) == Backward {
		slices.Reverse(out)
	}
	if skipFrom && len(out) > 0 && out[0].Time() == from {
		out = out[1:]
	}
	return out
}

// insertSorted adds k keeping keys ordered by time.
func insertSorted[K Keyframe](keys []K, k K) ([]K, error) {
	i, found := slices.BinarySearchFunc(keys, k.Time(), func(e K, t Seconds) int {
		switch {
		case e.Time() < t:
			return -1
		case e.Time() > t:
			return 1
		}
		return 0
	})
	if found {
		return keys, fmt.Errorf("keyframe at %gs: %w", float64(k.Time()), ErrUnorderedKeyframes)
	}
	return slices.Insert(keys, i, k), nil
}
