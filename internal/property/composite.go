package property

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// Composite is a property that owns other properties.
// A change to any child is reported to the composite's observers and then
// forwarded to the composite's owner with the child as the changed property,
// so the child's invalidation level is what reaches the processor.
type Composite struct {
	Base
	OwnerBase
}

func NewComposite(identifier string, opts ...Option) *Composite {
	c := &Composite{}
	c.init(identifier, opts)
	c.InitOwner(c)
	return c
}

// Modified is the OR of the composite's own flag and its children.
func (c *Composite) Modified() bool {
	return c.Base.Modified() || c.AnyModified()
}

// ResetModified clears the flag here and in every child.
func (c *Composite) ResetModified() {
	c.Base.ResetModified()
	c.ResetAllModified()
}

func (c *Composite) PropertyModified(child Property) {
	c.mu.Lock()
	c.modified = true
	c.mu.Unlock()

	c.observers.each(func(o Observer) {
		o.OnChange(c)
	})
	if owner := c.Owner(); owner != nil {
		owner.PropertyModified(child)
	}
}

// Value returns an object mapping child identifiers to child values.
func (c *Composite) Value() ir.Value {
	obj := make(ir.Object)
	for _, p := range c.Properties() {
		obj[p.Identifier()] = p.Value()
	}
	return obj
}

// SetValue assigns child values from an object. Keys are checked before any
// child is touched; missing keys leave those children unchanged.
func (c *Composite) SetValue(v ir.Value) error {
	if c.readOnly {
		return fmt.Errorf("%s: %w", c.Path(), ErrReadOnly)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return fmt.Errorf("%s: expected object, got %T: %w", c.Path(), v, ErrTypeMismatch)
	}
	for _, k := range obj.SortedKeys() {
		if c.Property(k) == nil {
			return fmt.Errorf("%s.%s: %w", c.Path(), k, ErrNotFound)
		}
	}
	for _, k := range obj.SortedKeys() {
		if err := c.Property(k).SetValue(obj[k]); err != nil {
			return err
		}
	}
	return nil
}
