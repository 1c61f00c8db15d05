package property

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// Bool is a boolean property.
type Bool struct {
	Base
	value bool
}

func NewBool(identifier string, value bool, opts ...Option) *Bool {
	p := &Bool{value: value}
	p.init(identifier, opts)
	return p
}

func (p *Bool) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set assigns v and reports whether the value changed.
func (p *Bool) Set(v bool) bool {
	p.mu.Lock()
	if p.value == v {
		p.mu.Unlock()
		return false
	}
	p.value = v
	p.mu.Unlock()

	p.notifyChanged(p)
	return true
}

func (p *Bool) Value() ir.Value { return ir.Bool(p.Get()) }

func (p *Bool) SetValue(v ir.Value) error {
	if p.readOnly {
		return fmt.Errorf("%s: %w", p.Path(), ErrReadOnly)
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return fmt.Errorf("%s: expected bool, got %T: %w", p.Path(), v, ErrTypeMismatch)
	}
	p.Set(bool(b))
	return nil
}

// String is a text property.
type String struct {
	Base
	value string
}

func NewString(identifier, value string, opts ...Option) *String {
	p := &String{value: value}
	p.init(identifier, opts)
	return p
}

func (p *String) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set assigns v and reports whether the value changed.
func (p *String) Set(v string) bool {
	p.mu.Lock()
	if p.value == v {
		p.mu.Unlock()
		return false
	}
	p.value = v
	p.mu.Unlock()

	p.notifyChanged(p)
	return true
}

func (p *String) Value() ir.Value { return ir.String(p.Get()) }

func (p *String) SetValue(v ir.Value) error {
	if p.readOnly {
		return fmt.Errorf("%s: %w", p.Path(), ErrReadOnly)
	}
	s, ok := v.(ir.String)
	if !ok {
		return fmt.Errorf("%s: expected string, got %T: %w", p.Path(), v, ErrTypeMismatch)
	}
	p.Set(string(s))
	return nil
}

// Button carries no value. Pressing it notifies observers and invalidates
// the owner.
type Button struct {
	Base
}

func NewButton(identifier string, opts ...Option) *Button {
	p := &Button{}
	p.init(identifier, opts)
	return p
}

func (p *Button) Press() { p.notifyChanged(p) }

func (p *Button) Value() ir.Value { return ir.Null{} }

// SetValue presses the button regardless of v.
func (p *Button) SetValue(ir.Value) error {
	if p.readOnly {
		return fmt.Errorf("%s: %w", p.Path(), ErrReadOnly)
	}
	p.Press()
	return nil
}
