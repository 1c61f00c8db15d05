// Package env provides the NetworkContext: the explicit bundle of
// collaborators (writers, resources, canvases, logging) handed to processors
// and network operations instead of process-wide singletons.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/roach88/procnet/internal/canvas"
	"github.com/roach88/procnet/internal/writer"
)

// ErrResourceNotFound is returned by resolvers for unknown names.
var ErrResourceNotFound = errors.New("resource not found")

// ResourceResolver loads named resources such as program sources.
type ResourceResolver interface {
	Resolve(name string) ([]byte, error)
}

// Context bundles the collaborators a network needs.
type Context struct {
	Writers   *writer.Factory
	Resources ResourceResolver
	Canvases  canvas.Provider
	Logger    *slog.Logger
}

// Option configures a Context.
type Option func(*Context)

func WithWriters(f *writer.Factory) Option {
	return func(c *Context) { c.Writers = f }
}

func WithResources(r ResourceResolver) Option {
	return func(c *Context) { c.Resources = r }
}

func WithCanvases(p canvas.Provider) Option {
	return func(c *Context) { c.Canvases = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.Logger = l }
}

// New returns a context with defaults for anything not configured: the
// default writer set, an empty resource map, offscreen canvases, and the
// default logger.
func New(opts ...Option) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	if c.Writers == nil {
		c.Writers = writer.NewDefaultFactory()
	}
	if c.Resources == nil {
		c.Resources = MapResolver{}
	}
	if c.Canvases == nil {
		c.Canvases = canvas.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// MapResolver serves resources from memory.
type MapResolver map[string][]byte

func (m MapResolver) Resolve(name string) ([]byte, error) {
	data, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrResourceNotFound)
	}
	return data, nil
}

// FSResolver serves resources from a file system, caching reads.
type FSResolver struct {
	FS fs.FS

	mu    sync.Mutex
	cache map[string][]byte
}

func (r *FSResolver) Resolve(name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.cache[name]; ok {
		return data, nil
	}
	data, err := fs.ReadFile(r.FS, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrResourceNotFound)
		}
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	if r.cache == nil {
		r.cache = make(map[string][]byte)
	}
	r.cache[name] = data
	return data, nil
}
