package processor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/property"
)

var (
	// ErrDuplicatePort is returned when a port identifier is reused.
	ErrDuplicatePort = errors.New("duplicate port identifier")

	// ErrNotInitialized is returned by processors used before Init.
	ErrNotInitialized = errors.New("processor not initialized")
)

// Processor is a node in the network.
//
// Implementations embed Base and call Init from their constructor.
type Processor interface {
	property.Owner

	Info() Info
	Inports() []port.In
	Outports() []*port.Outport

	// Process reads inports and properties and writes every outport.
	Process(ctx context.Context) error

	// InitializeResources rebuilds construction-time resources. It runs
	// before Process when a resource-level property changed, and once
	// before the first Process.
	InitializeResources(ctx context.Context) error

	Core() *Base
}

// ErrorIndicator is implemented by processors that keep showing their
// previous result when they, or something upstream, fail.
type ErrorIndicator interface {
	IndicateError(err error)
}

// ConfigChecker is implemented by processors whose settings can only be
// checked once the network around them is wired. serial.Build calls it
// after all connections exist.
type ConfigChecker interface {
	CheckConfiguration() error
}

// Shape lists the ports and properties a processor declares.
type Shape struct {
	Ports      []port.Port
	Properties []property.Property
}

// InvalidationHandler is called whenever a processor becomes invalid.
type InvalidationHandler func(p Processor, level property.InvalidationLevel)

// Base implements the bookkeeping shared by every processor.
type Base struct {
	property.OwnerBase

	identifier string
	info       Info
	self       Processor
	components []Component

	mu       sync.Mutex
	inports  []port.In
	outports []*port.Outport
	state    State
	pending  property.InvalidationLevel
	handler  InvalidationHandler
	lastErr  error
	position Position
}

// Position is where an editor placed the processor. It is carried through
// serialization and has no effect on evaluation.
type Position struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Init declares identity and shape. Components contribute their shapes after
// the processor's own. The shape is frozen when Init returns.
func (b *Base) Init(self Processor, identifier string, info Info, shape Shape, components ...Component) error {
	b.identifier = identifier
	b.info = info
	b.self = self
	b.components = components
	b.state = Invalid
	b.pending = property.InvalidResources
	b.InitOwner(self)

	shapes := []Shape{shape}
	for _, c := range components {
		shapes = append(shapes, c.Shape())
	}
	for _, s := range shapes {
		for _, p := range s.Ports {
			if err := b.addPort(p); err != nil {
				return fmt.Errorf("processor %s: %w", identifier, err)
			}
		}
		if err := b.AddProperties(s.Properties...); err != nil {
			return fmt.Errorf("processor %s: %w", identifier, err)
		}
	}
	b.Freeze()
	return nil
}

func (b *Base) addPort(p port.Port) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, in := range b.inports {
		if in.Identifier() == p.Identifier() {
			return fmt.Errorf("%q: %w", p.Identifier(), ErrDuplicatePort)
		}
	}
	for _, out := range b.outports {
		if out.Identifier() == p.Identifier() {
			return fmt.Errorf("%q: %w", p.Identifier(), ErrDuplicatePort)
		}
	}
	p.Bind(b.self)
	switch typed := p.(type) {
	case *port.Outport:
		b.outports = append(b.outports, typed)
	case port.In:
		b.inports = append(b.inports, typed)
	default:
		return fmt.Errorf("%q: unsupported port type %T", p.Identifier(), p)
	}
	return nil
}

func (b *Base) Core() *Base { return b }

// Identifier is unique within a network and fixed at construction.
func (b *Base) Identifier() string { return b.identifier }

// Path of a processor is its identifier; it is the root of property paths.
func (b *Base) Path() string { return b.identifier }

func (b *Base) Info() Info { return b.info }

func (b *Base) Components() []Component { return slices.Clone(b.components) }

func (b *Base) Inports() []port.In {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.inports)
}

func (b *Base) Outports() []*port.Outport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.outports)
}

// Inport returns the inport with the given identifier, or nil.
func (b *Base) Inport(identifier string) port.In {
	for _, in := range b.Inports() {
		if in.Identifier() == identifier {
			return in
		}
	}
	return nil
}

// Outport returns the outport with the given identifier, or nil.
func (b *Base) Outport(identifier string) *port.Outport {
	for _, out := range b.Outports() {
		if out.Identifier() == identifier {
			return out
		}
	}
	return nil
}

// IsReady reports whether every non-optional inport is ready.
func (b *Base) IsReady() bool {
	for _, in := range b.Inports() {
		if in.Optional() && !in.IsConnected() {
			continue
		}
		if !in.IsReady() {
			return false
		}
	}
	return true
}

// PropertyModified implements property.Owner. It invalidates the processor
// at the property's level.
func (b *Base) PropertyModified(p property.Property) {
	b.Invalidate(p.InvalidationLevel())
}

// Invalidate raises the pending invalidation level and notifies the handler.
// Valid is ignored.
func (b *Base) Invalidate(level property.InvalidationLevel) {
	if level == property.Valid {
		return
	}
	b.mu.Lock()
	if level > b.pending {
		b.pending = level
	}
	if b.state != Processing {
		b.state = Invalid
	}
	handler := b.handler
	b.mu.Unlock()

	if handler != nil {
		handler(b.self, level)
	}
}

// Pending returns the pending invalidation level.
func (b *Base) Pending() property.InvalidationLevel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// ClearPending resets the pending level after a successful run.
func (b *Base) ClearPending() {
	b.mu.Lock()
	b.pending = property.Valid
	b.mu.Unlock()
}

// SetInvalidationHandler installs the callback used by the network.
func (b *Base) SetInvalidationHandler(h InvalidationHandler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetState records the evaluation state. err is kept for Error and cleared
// otherwise.
func (b *Base) SetState(s State, err error) {
	b.mu.Lock()
	b.state = s
	if s == Error {
		b.lastErr = err
	} else {
		b.lastErr = nil
	}
	b.mu.Unlock()
}

// TryBeginProcessing moves the processor to Processing unless it is
// already there.
func (b *Base) TryBeginProcessing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Processing {
		return false
	}
	b.state = Processing
	return true
}

// Err returns the error recorded with the Error state.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// InitializeResources runs each component's resource setup in order.
// Processors with their own resources override it and call this too.
func (b *Base) InitializeResources(ctx context.Context) error {
	for _, c := range b.components {
		if err := c.InitializeResources(ctx); err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
	}
	return nil
}

// RestorePending raises the pending level without notifying the handler or
// touching the state. The evaluator uses it to retry a step that failed.
func (b *Base) RestorePending(level property.InvalidationLevel) {
	b.mu.Lock()
	if level > b.pending {
		b.pending = level
	}
	b.mu.Unlock()
}

func (b *Base) Position() Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.position
}

func (b *Base) SetPosition(p Position) {
	b.mu.Lock()
	b.position = p
	b.mu.Unlock()
}
