// Package animation drives properties from time-indexed keyframes.
//
// A track holds a sequence of keyframes strictly ordered by time. Value
// tracks interpolate a property between keyframes; control tracks pause
// playback or jump to another time. An Animation evaluates its tracks over
// a time interval [from, to], and a Controller advances that interval as
// playback time passes.
//
// Control sequences fold their keyframes across the interval in travel
// order (reverse order when to < from). Each keyframe returns a new time
// and state. The fold stops when the state becomes Paused, or when a
// keyframe returns a time on the wrong side of itself for the direction of
// travel: that is a jump, and folding further would apply keyframes past
// the jump target.
package animation
