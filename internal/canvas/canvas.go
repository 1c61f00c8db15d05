// Package canvas defines the rendering surface processors draw into.
//
// A processor with visual output asks its Provider for a Canvas by name and
// never learns what backs it: a window, an offscreen buffer, or a remote
// view fed through the bridge.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// ErrNotActive is returned by Render when Activate has not succeeded.
var ErrNotActive = errors.New("canvas context not active")

// Canvas is the rendering capability.
type Canvas interface {
	// Activate makes the canvas the current render target.
	Activate() error
	// Render presents img, scaled to the canvas size.
	Render(img image.Image) error
	// Resize changes the canvas dimensions.
	Resize(width, height int)
	Size() (width, height int)
	// ShowError replaces the displayed content with an error indicator
	// while keeping the last valid frame.
	ShowError(err error)
}

// Provider hands out canvases by name.
type Provider interface {
	Canvas(name string) Canvas
}

// Offscreen is an in-memory canvas. It keeps the last successfully
// rendered frame so that an upstream failure never blanks the view.
type Offscreen struct {
	mu     sync.Mutex
	width  int
	height int
	active bool
	frame  *image.RGBA
	frames int
	err    error
}

func NewOffscreen(width, height int) *Offscreen {
	return &Offscreen{width: width, height: height}
}

func (o *Offscreen) Activate() error {
	o.mu.Lock()
	o.active = true
	o.mu.Unlock()
	return nil
}

func (o *Offscreen) Render(img image.Image) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNotActive
	}
	if img == nil {
		return fmt.Errorf("render: nil image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, o.width, o.height))
	scaleNearest(dst, img)
	o.frame = dst
	o.frames++
	o.err = nil
	return nil
}

func (o *Offscreen) Resize(width, height int) {
	o.mu.Lock()
	o.width, o.height = width, height
	o.mu.Unlock()
}

func (o *Offscreen) Size() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.width, o.height
}

func (o *Offscreen) ShowError(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

// Frame returns the last valid frame, or nil.
func (o *Offscreen) Frame() *image.RGBA {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frame
}

// Frames counts successful renders.
func (o *Offscreen) Frames() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.frames
}

// Err returns the error currently indicated, or nil.
func (o *Offscreen) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func scaleNearest(dst *image.RGBA, src image.Image) {
	if src.Bounds().Empty() {
		return
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
}

// Registry is a Provider that creates offscreen canvases on first use.
type Registry struct {
	mu       sync.Mutex
	width    int
	height   int
	canvases map[string]*Offscreen
}

// NewRegistry returns a registry whose canvases start at 256x256.
func NewRegistry() *Registry {
	return &Registry{width: 256, height: 256, canvases: make(map[string]*Offscreen)}
}

func (r *Registry) Canvas(name string) Canvas {
	return r.Offscreen(name)
}

// Offscreen returns the concrete canvas for name, creating it if needed.
func (r *Registry) Offscreen(name string) *Offscreen {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.canvases[name]
	if !ok {
		c = NewOffscreen(r.width, r.height)
		r.canvases[name] = c
	}
	return c
}
