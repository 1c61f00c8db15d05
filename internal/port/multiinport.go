package port

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// MultiInport receives data from any number of outports, in connection order.
type MultiInport struct {
	portBase
	optional bool
	limit    int

	mu      sync.RWMutex
	sources []*Outport
}

func NewMultiInport(identifier string, dataType DataType, opts ...InportOption) *MultiInport {
	var cfg inportConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MultiInport{
		portBase: portBase{identifier: identifier, dataType: dataType},
		optional: cfg.optional,
		limit:    cfg.limit,
	}
}

func (m *MultiInport) Optional() bool { return m.optional }

func (m *MultiInport) Multi() bool { return true }

func (m *MultiInport) Attach(out *Outport) error {
	if !Compatible(out.DataType(), m.dataType) {
		return fmt.Errorf("%s (%s) -> %s (%s): %w", out.Path(), out.DataType(), m.Path(), m.dataType, ErrIncompatible)
	}
	m.mu.Lock()
	if slices.Contains(m.sources, out) {
		m.mu.Unlock()
		return fmt.Errorf("%s <- %s: %w", m.Path(), out.Path(), ErrAlreadyConnected)
	}
	if m.limit > 0 && len(m.sources) >= m.limit {
		m.mu.Unlock()
		return fmt.Errorf("%s: limit of %d sources: %w", m.Path(), m.limit, ErrAlreadyConnected)
	}
	m.sources = append(m.sources, out)
	m.mu.Unlock()
	out.addTarget(m)
	return nil
}

func (m *MultiInport) Detach(out *Outport) bool {
	m.mu.Lock()
	i := slices.Index(m.sources, out)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.sources = slices.Delete(m.sources, i, i+1)
	m.mu.Unlock()
	out.removeTarget(m)
	return true
}

func (m *MultiInport) IsConnected() bool {
	return m.Len() > 0
}

// IsReady reports whether at least one source is connected and every
// source has committed data.
func (m *MultiInport) IsReady() bool {
	srcs := m.ConnectedOutports()
	if len(srcs) == 0 {
		return false
	}
	for _, s := range srcs {
		if !s.IsReady() {
			return false
		}
	}
	return true
}

func (m *MultiInport) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

func (m *MultiInport) ConnectedOutports() []*Outport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sources)
}

// Sources yields connected outports with their index. Each call starts a
// fresh walk over the sources connected at that moment, and nothing is
// read until the caller ranges over it.
func (m *MultiInport) Sources() iter.Seq2[int, *Outport] {
	return func(yield func(int, *Outport) bool) {
		for i, src := range m.ConnectedOutports() {
			if !yield(i, src) {
				return
			}
		}
	}
}

// Data yields each source's data in connection order. A source without
// committed data yields ErrNotReady at its position.
func (m *MultiInport) Data() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, src := range m.Sources() {
			data, err := src.Data()
			if err != nil {
				err = fmt.Errorf("%s <- %s: %w", m.Path(), src.Path(), err)
			}
			if !yield(data, err) {
				return
			}
		}
	}
}

// At returns the data of the i-th source.
func (m *MultiInport) At(i int) (any, error) {
	srcs := m.ConnectedOutports()
	if i < 0 || i >= len(srcs) {
		return nil, fmt.Errorf("%s: index %d of %d: %w", m.Path(), i, len(srcs), ErrNotConnected)
	}
	return srcs[i].Data()
}
