package processor

import "context"

// Component is a strategy object composed into a processor. It contributes
// ports and properties to the processor's shape and takes part in
// resource initialization.
type Component interface {
	Name() string
	Shape() Shape
	InitializeResources(ctx context.Context) error
}

// ComponentOf returns the first component of type T held by p.
func ComponentOf[T Component](p Processor) (T, bool) {
	for _, c := range p.Core().Components() {
		if typed, ok := c.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}
