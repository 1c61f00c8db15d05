package property

import (
	"sync"

	"github.com/roach88/procnet/internal/ir"
)

// InvalidationLevel says how much work a change to a property causes for
// the processor that owns it.
type InvalidationLevel int

const (
	// Valid means the change does not invalidate the owner.
	Valid InvalidationLevel = iota

	// InvalidOutput re-runs Process on the next evaluation.
	InvalidOutput

	// InvalidResources calls InitializeResources before the next Process.
	InvalidResources
)

func (l InvalidationLevel) String() string {
	switch l {
	case Valid:
		return "valid"
	case InvalidOutput:
		return "invalid_output"
	case InvalidResources:
		return "invalid_resources"
	default:
		return "unknown"
	}
}

// maxRedispatch bounds follow-up notifications caused by sets made from
// inside an observer callback.
const maxRedispatch = 1

// Property is an observable, named unit of state.
//
// Concrete properties embed Base, which provides identity, observers, and
// owner bookkeeping. The unexported methods keep the set of implementations
// to types that embed Base.
type Property interface {
	Identifier() string
	DisplayName() string
	Path() string
	Owner() Owner
	Semantics() string
	InvalidationLevel() InvalidationLevel
	ReadOnly() bool
	Visible() bool

	// Value returns the current value as an ir.Value.
	Value() ir.Value
	// SetValue assigns from an ir.Value. A rejected value leaves the
	// property unchanged.
	SetValue(v ir.Value) error

	Modified() bool
	ResetModified()

	AddObserver(o Observer)
	RemoveObserver(o Observer)

	base() *Base
}

// Option configures a property at construction.
type Option func(*Base)

// WithDisplayName sets the human readable name.
func WithDisplayName(name string) Option {
	return func(b *Base) { b.displayName = name }
}

// WithInvalidationLevel sets the level a change triggers on the owner.
func WithInvalidationLevel(level InvalidationLevel) Option {
	return func(b *Base) { b.level = level }
}

// WithSemantics sets the presentation hint ("Default", "Text", "Color", ...).
func WithSemantics(s string) Option {
	return func(b *Base) { b.semantics = s }
}

// AsReadOnly rejects SetValue calls.
func AsReadOnly() Option {
	return func(b *Base) { b.readOnly = true }
}

// Hidden marks the property as not shown by UI consumers.
func Hidden() Option {
	return func(b *Base) { b.visible = false }
}

// Base implements the bookkeeping shared by every property.
type Base struct {
	identifier  string
	displayName string
	semantics   string
	level       InvalidationLevel
	readOnly    bool
	visible     bool

	mu        sync.Mutex
	owner     Owner
	modified  bool
	notifying bool
	pending   bool

	observers observerList[Observer]
}

func (b *Base) init(identifier string, opts []Option) {
	b.identifier = identifier
	b.displayName = identifier
	b.semantics = "Default"
	b.level = InvalidOutput
	b.visible = true
	for _, opt := range opts {
		opt(b)
	}
}

func (b *Base) base() *Base { return b }

// Identifier returns the identifier, unique among siblings and fixed for
// the lifetime of the property.
func (b *Base) Identifier() string { return b.identifier }

func (b *Base) DisplayName() string { return b.displayName }

func (b *Base) Semantics() string { return b.semantics }

func (b *Base) InvalidationLevel() InvalidationLevel { return b.level }

func (b *Base) ReadOnly() bool { return b.readOnly }

func (b *Base) Visible() bool { return b.visible }

// Owner returns the owner, or nil for a detached property.
func (b *Base) Owner() Owner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

// Path returns the dotted identifier path from the root owner.
func (b *Base) Path() string {
	owner := b.Owner()
	if owner == nil {
		return b.identifier
	}
	return owner.Path() + "." + b.identifier
}

func (b *Base) Modified() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modified
}

func (b *Base) ResetModified() {
	b.mu.Lock()
	b.modified = false
	b.mu.Unlock()
}

// AddObserver registers o. Adding an already registered observer is a no-op.
func (b *Base) AddObserver(o Observer) {
	b.observers.add(o)
}

// RemoveObserver unregisters o. Removing an unknown observer is a no-op.
func (b *Base) RemoveObserver(o Observer) {
	b.observers.remove(o)
}

func (b *Base) setOwner(o Owner) {
	b.mu.Lock()
	b.owner = o
	b.mu.Unlock()
}

// notifyChanged marks the property modified, then notifies observers and
// the owner.
//
// A set made while this property is already notifying does not dispatch
// recursively. It is recorded and delivered as one follow-up round after
// the current dispatch completes.
func (b *Base) notifyChanged(self Property) {
	b.mu.Lock()
	b.modified = true
	if b.notifying {
		b.pending = true
		b.mu.Unlock()
		return
	}
	b.notifying = true
	b.mu.Unlock()

	for round := 0; ; round++ {
		b.dispatch(self)

		b.mu.Lock()
		if !b.pending || round >= maxRedispatch {
			b.pending = false
			b.notifying = false
			b.mu.Unlock()
			return
		}
		b.pending = false
		b.mu.Unlock()
	}
}

func (b *Base) dispatch(self Property) {
	b.observers.each(func(o Observer) {
		o.OnChange(self)
	})
	if owner := b.Owner(); owner != nil {
		owner.PropertyModified(self)
	}
}

// Notifying reports whether the property is currently dispatching a change.
func (b *Base) Notifying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.notifying
}
