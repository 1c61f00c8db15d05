package port

import (
	"slices"
	"sync"
)

// Outport publishes data produced by its processor.
type Outport struct {
	portBase

	mu        sync.RWMutex
	targets   []In
	data      any
	staged    any
	hasStaged bool
	valid     bool
	pass      int64
}

func NewOutport(identifier string, dataType DataType) *Outport {
	return &Outport{portBase: portBase{identifier: identifier, dataType: dataType}}
}

// SetData stages data. It becomes readable downstream after Commit.
// Calling SetData more than once before Commit keeps the last value.
func (o *Outport) SetData(data any) {
	o.mu.Lock()
	o.staged = data
	o.hasStaged = true
	o.mu.Unlock()
}

// Commit publishes the staged data for the given pass and reports whether
// anything had been staged. With nothing staged the port is left invalid.
func (o *Outport) Commit(pass int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.hasStaged {
		o.valid = false
		o.data = nil
		return false
	}
	o.data = o.staged
	o.staged = nil
	o.hasStaged = false
	o.valid = true
	o.pass = pass
	return true
}

// Invalidate drops the published and staged data. Downstream reads return
// ErrNotReady until the next Commit.
func (o *Outport) Invalidate() {
	o.mu.Lock()
	o.data = nil
	o.staged = nil
	o.hasStaged = false
	o.valid = false
	o.mu.Unlock()
}

// IsReady reports whether committed data is available.
func (o *Outport) IsReady() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.valid
}

// Data returns the committed data.
func (o *Outport) Data() (any, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if !o.valid {
		return nil, ErrNotReady
	}
	return o.data, nil
}

// Pass returns the pass sequence of the last commit.
func (o *Outport) Pass() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pass
}

func (o *Outport) IsConnected() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.targets) > 0
}

// ConnectedInports returns the inports fed by this outport.
func (o *Outport) ConnectedInports() []In {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.targets)
}

func (o *Outport) addTarget(in In) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !slices.Contains(o.targets, in) {
		o.targets = append(o.targets, in)
	}
}

func (o *Outport) removeTarget(in In) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i := slices.Index(o.targets, in); i >= 0 {
		o.targets = slices.Delete(o.targets, i, i+1)
	}
}
