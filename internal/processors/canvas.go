package processors

import (
	"context"
	"image"
	"sync"

	"github.com/roach88/procnet/internal/canvas"
	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
)

var ImageCanvasInfo = processor.Info{
	ClassIdentifier: "procnet.ImageCanvas",
	DisplayName:     "Image Canvas",
	Category:        "Data Output",
	CodeState:       processor.Stable,
	Tags:            []string{"image", "sink"},
	SharedContext:   true,
}

// ImageCanvas presents its input on the canvas named by "canvas". When the
// input fails the canvas keeps its last valid frame and shows the error.
type ImageCanvas struct {
	processor.Base

	In     *port.Inport
	Name   *property.String
	Width  *property.Ordinal[int64]
	Height *property.Ordinal[int64]

	canvases canvas.Provider

	mu     sync.Mutex
	target canvas.Canvas
}

func NewImageCanvas(id string, nc *env.Context) (*ImageCanvas, error) {
	c := &ImageCanvas{
		In:       port.NewInport("image", port.Image),
		Name:     property.NewString("canvas", id, property.WithInvalidationLevel(property.InvalidResources)),
		Width:    property.NewInt("width", 256, 1, 8192),
		Height:   property.NewInt("height", 256, 1, 8192),
		canvases: nc.Canvases,
	}
	if err := c.Init(c, id, ImageCanvasInfo, processor.Shape{
		Ports:      []port.Port{c.In},
		Properties: []property.Property{c.Name, c.Width, c.Height},
	}); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ImageCanvas) InitializeResources(ctx context.Context) error {
	target := c.canvases.Canvas(c.Name.Get())
	if err := target.Activate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.target = target
	c.mu.Unlock()
	return c.Base.InitializeResources(ctx)
}

func (c *ImageCanvas) Process(context.Context) error {
	img, err := port.Get[image.Image](c.In)
	if err != nil {
		return err
	}
	target := c.Canvas()
	target.Resize(int(c.Width.Get()), int(c.Height.Get()))
	return target.Render(img)
}

// Canvas returns the current render target, or nil before the first pass.
func (c *ImageCanvas) Canvas() canvas.Canvas {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// IndicateError implements processor.ErrorIndicator.
func (c *ImageCanvas) IndicateError(err error) {
	if target := c.Canvas(); target != nil {
		target.ShowError(err)
	}
}
