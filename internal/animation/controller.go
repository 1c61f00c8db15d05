package animation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// LoopMode is what playback does at the end of the range.
type LoopMode int

const (
	// Once pauses at the end.
	Once LoopMode = iota
	// Loop wraps around to the other end.
	Loop
	// Swing reverses direction.
	Swing
)

func (m LoopMode) String() string {
	switch m {
	case Loop:
		return "loop"
	case Swing:
		return "swing"
	default:
		return "once"
	}
}

func ParseLoopMode(s string) (LoopMode, error) {
	switch s {
	case "", "once":
		return Once, nil
	case "loop":
		return Loop, nil
	case "swing":
		return Swing, nil
	}
	return 0, fmt.Errorf("unknown loop mode %q", s)
}

// Controller owns playback time for an Animation.
type Controller struct {
	anim   *Animation
	logger *slog.Logger

	mu         sync.Mutex
	time       Seconds
	state      AnimationState
	dir        PlaybackDirection
	mode       LoopMode
	start, end Seconds
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRange sets the playback range. The default is the animation's span.
func WithRange(start, end Seconds) ControllerOption {
	return func(c *Controller) { c.start, c.end = min(start, end), max(start, end) }
}

func WithLoopMode(m LoopMode) ControllerOption {
	return func(c *Controller) { c.mode = m }
}

func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

func NewController(anim *Animation, opts ...ControllerOption) *Controller {
	c := &Controller{anim: anim, logger: slog.Default()}
	if first, last, ok := anim.Span(); ok {
		c.start, c.end = first, last
	}
	for _, opt := range opts {
		opt(c)
	}
	c.time = c.start
	return c
}

func (c *Controller) Time() Seconds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *Controller) State() AnimationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Direction() PlaybackDirection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

func (c *Controller) SetDirection(d PlaybackDirection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = d
}

func (c *Controller) Range() (start, end Seconds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start, c.end
}

// Play starts playback. At the end of a Once range it restarts from the
// beginning, applying the keyframes there.
func (c *Controller) Play() error {
	c.mu.Lock()
	restart := c.mode == Once && c.atEndLocked()
	if restart {
		c.time = c.startForLocked()
	}
	c.state = Playing
	t := c.time
	c.mu.Unlock()

	if restart {
		_, err := c.anim.Evaluate(t, t, Playing)
		return err
	}
	return nil
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Paused
}

// Seek moves playback to t and applies property tracks there. Control
// keyframes are not run.
func (c *Controller) Seek(t Seconds) error {
	c.mu.Lock()
	c.time = min(max(t, c.start), c.end)
	t = c.time
	c.mu.Unlock()
	return c.anim.ApplyAt(t)
}

// Tick advances playback by dt in the current direction.
func (c *Controller) Tick(dt Seconds) (AnimationTimeState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing || dt <= 0 {
		return AnimationTimeState{Time: c.time, State: c.state}, nil
	}

	from := c.time
	step := dt
	if c.dir == Backward {
		step = -dt
	}
	to := from + step
	edge := c.end
	if c.dir == Backward {
		edge = c.start
	}

	if !c.pastLocked(to, edge) {
		return c.commitLocked(c.anim.Advance(from, to, Playing))
	}

	// Run up to the edge first; a control keyframe on the way wins.
	res, err := c.anim.Advance(from, edge, Playing)
	if err != nil || res.State != Playing || res.Time != edge {
		return c.commitLocked(res, err)
	}
	overflow := Seconds(math.Abs(float64(to - edge)))
	if span := c.end - c.start; span > 0 {
		overflow = Seconds(math.Mod(float64(overflow), float64(span)))
	}

	switch c.mode {
	case Loop:
		restart := c.startForLocked()
		next := restart + overflow
		if c.dir == Backward {
			next = restart - overflow
		}
		c.logger.Debug("animation loop", "restart", float64(restart))
		return c.commitLocked(c.anim.Evaluate(restart, next, Playing))
	case Swing:
		if c.dir == Forward {
			c.dir = Backward
		} else {
			c.dir = Forward
		}
		next := edge - overflow
		if c.dir == Forward {
			next = edge + overflow
		}
		return c.commitLocked(c.anim.Advance(edge, next, Playing))
	default:
		res.State = Paused
		return c.commitLocked(res, nil)
	}
}

// Run ticks at fps until ctx is done or playback pauses.
func (c *Controller) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}
	if err := c.Play(); err != nil {
		return err
	}
	dt := Seconds(1 / float64(fps))
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			res, err := c.Tick(dt)
			if err != nil {
				c.logger.Warn("animation tick", "time", float64(res.Time), "error", err)
			}
			if res.State == Paused {
				return nil
			}
		}
	}
}

func (c *Controller) commitLocked(res AnimationTimeState, err error) (AnimationTimeState, error) {
	c.time = min(max(res.Time, c.start), c.end)
	c.state = res.State
	return AnimationTimeState{Time: c.time, State: c.state}, err
}

func (c *Controller) pastLocked(t, edge Seconds) bool {
	if c.dir == Forward {
		return t >= edge
	}
	return t <= edge
}

func (c *Controller) atEndLocked() bool {
	if c.dir == Forward {
		return c.time >= c.end
	}
	return c.time <= c.start
}

func (c *Controller) startForLocked() Seconds {
	if c.dir == Forward {
		return c.start
	}
	return c.end
}
