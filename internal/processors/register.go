package processors

import (
	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/processor"
)

type class struct {
	info processor.Info
	ctor processor.Constructor
}

func classes() []class {
	return []class{
		{NumberSourceInfo, func(id string, _ *env.Context) (processor.Processor, error) { return NewNumberSource(id) }},
		{ScaleInfo, func(id string, _ *env.Context) (processor.Processor, error) { return NewScale(id) }},
		{SumInfo, func(id string, _ *env.Context) (processor.Processor, error) { return NewSum(id) }},
		{ElementSelectorInfo, func(id string, _ *env.Context) (processor.Processor, error) { return NewElementSelector(id) }},
		{GradientImageInfo, func(id string, _ *env.Context) (processor.Processor, error) { return NewGradientImage(id) }},
		{LayerRendererInfo, func(id string, nc *env.Context) (processor.Processor, error) { return NewLayerRenderer(id, nc) }},
		{ImageCanvasInfo, func(id string, nc *env.Context) (processor.Processor, error) { return NewImageCanvas(id, nc) }},
		{DataExportInfo, func(id string, nc *env.Context) (processor.Processor, error) { return NewDataExport(id, nc) }},
	}
}

// RegisterAll registers every built-in class with reg.
func RegisterAll(reg *processor.Registry) error {
	for _, c := range classes() {
		if err := reg.Register(c.info, c.ctor); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in classes.
func NewRegistry() (*processor.Registry, error) {
	reg := processor.NewRegistry()
	if err := RegisterAll(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
