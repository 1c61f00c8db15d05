package property

import (
	"fmt"
	"math"

	"github.com/roach88/procnet/internal/ir"
)

// Number is the set of value types an Ordinal can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Ordinal is a numeric property bounded by [Min, Max].
//
// Out-of-range values are clamped, never rejected. Values of the wrong kind
// (a string, a fractional number for an integer ordinal) and NaN are
// rejected and the prior value is kept.
type Ordinal[T Number] struct {
	Base

	value     T
	min       T
	max       T
	increment T
}

// NewOrdinal creates an ordinal. The initial value is clamped to the range.
func NewOrdinal[T Number](identifier string, value, min, max, increment T, opts ...Option) *Ordinal[T] {
	if max < min {
		min, max = max, min
	}
	p := &Ordinal[T]{min: min, max: max, increment: increment}
	p.init(identifier, opts)
	if isNaN(value) {
		value = min
	}
	p.value = p.clamp(value)
	return p
}

// NewInt creates an int64 ordinal.
func NewInt(identifier string, value, min, max int64, opts ...Option) *Ordinal[int64] {
	return NewOrdinal(identifier, value, min, max, 1, opts...)
}

// NewFloat creates a float64 ordinal.
func NewFloat(identifier string, value, min, max float64, opts ...Option) *Ordinal[float64] {
	return NewOrdinal(identifier, value, min, max, (max-min)/100, opts...)
}

func isNaN[T Number](v T) bool { return v != v }

func (p *Ordinal[T]) clamp(v T) T {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// Get returns the current value.
func (p *Ordinal[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set clamps v to the range and assigns it. It reports whether the
// stored value changed. NaN is ignored.
func (p *Ordinal[T]) Set(v T) bool {
	if isNaN(v) {
		return false
	}
	p.mu.Lock()
	v = p.clamp(v)
	if v == p.value {
		p.mu.Unlock()
		return false
	}
	p.value = v
	p.mu.Unlock()

	p.notifyChanged(p)
	return true
}

// Range returns the bounds.
func (p *Ordinal[T]) Range() (min, max T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min, p.max
}

func (p *Ordinal[T]) Increment() T { return p.increment }

// SetRange replaces the bounds and re-clamps the current value.
func (p *Ordinal[T]) SetRange(min, max T) {
	if max < min {
		min, max = max, min
	}
	p.mu.Lock()
	p.min, p.max = min, max
	clamped := p.clamp(p.value)
	changed := clamped != p.value
	p.value = clamped
	p.mu.Unlock()

	if changed {
		p.notifyChanged(p)
	}
}

// isIntegral reports whether T truncates, which holds for every integer
// type in Number and none of the float types.
func (p *Ordinal[T]) isIntegral() bool {
	return T(1)/T(2) == 0
}

func (p *Ordinal[T]) Value() ir.Value {
	v := p.Get()
	if p.isIntegral() {
		return ir.Int(int64(v))
	}
	return ir.Float(float64(v))
}

func (p *Ordinal[T]) SetValue(v ir.Value) error {
	if p.readOnly {
		return fmt.Errorf("%s: %w", p.Path(), ErrReadOnly)
	}
	if n, ok := v.(ir.Int); ok && p.isIntegral() {
		p.Set(p.clampInt(int64(n)))
		return nil
	}
	f, ok := ir.AsFloat(v)
	if !ok {
		return fmt.Errorf("%s: expected number, got %T: %w", p.Path(), v, ErrTypeMismatch)
	}
	if math.IsNaN(f) {
		return fmt.Errorf("%s: NaN: %w", p.Path(), ErrOutOfDomain)
	}
	if p.isIntegral() && (math.IsInf(f, 0) || f != math.Trunc(f)) {
		return fmt.Errorf("%s: expected integer, got %v: %w", p.Path(), f, ErrTypeMismatch)
	}
	p.Set(p.clampFloat(f))
	return nil
}

// clampInt and clampFloat bound v to Range before converting it to T.
func (p *Ordinal[T]) clampInt(v int64) T {
	lo, hi := p.Range()
	switch {
	case v < int64(lo):
		return lo
	case v > int64(hi):
		return hi
	}
	return T(v)
}

func (p *Ordinal[T]) clampFloat(v float64) T {
	lo, hi := p.Range()
	switch {
	case v < float64(lo):
		return lo
	case v > float64(hi):
		return hi
	}
	return T(v)
}
