package processor

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/procnet/internal/env"
)

var (
	// ErrUnknownClass is returned when no constructor is registered.
	ErrUnknownClass = errors.New("unknown processor class")

	// ErrDuplicateClass is returned when registering a class twice.
	ErrDuplicateClass = errors.New("duplicate processor class")
)

// Constructor builds a processor with the given identifier. The network
// context is passed explicitly so processors never reach for globals.
type Constructor func(identifier string, nc *env.Context) (Processor, error)

type registration struct {
	info Info
	ctor Constructor
}

// Registry maps class identifiers to constructors. It is how serialized
// networks are rebuilt.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]registration)}
}

func (r *Registry) Register(info Info, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[info.ClassIdentifier]; ok {
		return fmt.Errorf("%s: %w", info.ClassIdentifier, ErrDuplicateClass)
	}
	r.classes[info.ClassIdentifier] = registration{info: info, ctor: ctor}
	return nil
}

// Create constructs a processor of the given class.
func (r *Registry) Create(class, identifier string, nc *env.Context) (Processor, error) {
	r.mu.RLock()
	reg, ok := r.classes[class]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", class, ErrUnknownClass)
	}
	p, err := reg.ctor(identifier, nc)
	if err != nil {
		return nil, fmt.Errorf("create %s %q: %w", class, identifier, err)
	}
	if p.Info().ClassIdentifier != class {
		return nil, fmt.Errorf("create %s %q: constructor returned class %s", class, identifier, p.Info().ClassIdentifier)
	}
	return p, nil
}

// Classes returns registered class infos sorted by identifier.
func (r *Registry) Classes() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.classes))
	for _, reg := range r.classes {
		out = append(out, reg.info)
	}
	slices.SortFunc(out, func(a, b Info) int {
		return strings.Compare(a.ClassIdentifier, b.ClassIdentifier)
	})
	return out
}

// Lookup returns the info registered for class.
func (r *Registry) Lookup(class string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.classes[class]
	return reg.info, ok
}
