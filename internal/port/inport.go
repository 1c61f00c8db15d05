package port

import (
	"fmt"
	"sync"
)

// InportOption configures an inport.
type InportOption func(*inportConfig)

type inportConfig struct {
	optional bool
	limit    int
}

// Optional lets the processor run with the inport unconnected.
func Optional() InportOption {
	return func(c *inportConfig) { c.optional = true }
}

// Limit caps the number of sources of a MultiInport. Zero means unlimited.
func Limit(n int) InportOption {
	return func(c *inportConfig) { c.limit = n }
}

// Inport receives data from exactly one Outport.
type Inport struct {
	portBase
	optional bool

	mu     sync.RWMutex
	source *Outport
}

func NewInport(identifier string, dataType DataType, opts ...InportOption) *Inport {
	var cfg inportConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Inport{
		portBase: portBase{identifier: identifier, dataType: dataType},
		optional: cfg.optional,
	}
}

func (in *Inport) Optional() bool { return in.optional }

func (in *Inport) Multi() bool { return false }

func (in *Inport) Attach(out *Outport) error {
	if !Compatible(out.DataType(), in.dataType) {
		return fmt.Errorf("%s (%s) -> %s (%s): %w", out.Path(), out.DataType(), in.Path(), in.dataType, ErrIncompatible)
	}
	in.mu.Lock()
	if in.source != nil {
		in.mu.Unlock()
		return fmt.Errorf("%s: %w", in.Path(), ErrAlreadyConnected)
	}
	in.source = out
	in.mu.Unlock()
	out.addTarget(in)
	return nil
}

func (in *Inport) Detach(out *Outport) bool {
	in.mu.Lock()
	if in.source != out {
		in.mu.Unlock()
		return false
	}
	in.source = nil
	in.mu.Unlock()
	out.removeTarget(in)
	return true
}

func (in *Inport) IsConnected() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.source != nil
}

// IsReady reports whether the inport is connected and its source has
// committed data.
func (in *Inport) IsReady() bool {
	src := in.Source()
	return src != nil && src.IsReady()
}

// Source returns the connected outport, or nil.
func (in *Inport) Source() *Outport {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.source
}

func (in *Inport) ConnectedOutports() []*Outport {
	if src := in.Source(); src != nil {
		return []*Outport{src}
	}
	return nil
}

// Data returns the source's committed data, ErrNotConnected, or ErrNotReady.
func (in *Inport) Data() (any, error) {
	src := in.Source()
	if src == nil {
		return nil, fmt.Errorf("%s: %w", in.Path(), ErrNotConnected)
	}
	data, err := src.Data()
	if err != nil {
		return nil, fmt.Errorf("%s <- %s: %w", in.Path(), src.Path(), err)
	}
	return data, nil
}
