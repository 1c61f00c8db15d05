package property

import (
	"fmt"

	"github.com/roach88/procnet/internal/ir"
)

// walker is implemented by owners that embed OwnerBase.
type walker interface {
	Walk(fn func(Property))
}

// Snapshot returns the owner's property values keyed by identifier.
// Composites appear as nested objects. Buttons are omitted.
func Snapshot(o Owner) ir.Object {
	obj := make(ir.Object)
	for _, p := range o.Properties() {
		if _, ok := p.(*Button); ok {
			continue
		}
		obj[p.Identifier()] = p.Value()
	}
	return obj
}

// Restore assigns values produced by Snapshot. Unknown identifiers are an
// error; properties absent from state keep their current value.
func Restore(o Owner, state ir.Object) error {
	for _, k := range state.SortedKeys() {
		p := o.Property(k)
		if p == nil {
			return fmt.Errorf("restore %s.%s: %w", o.Path(), k, ErrNotFound)
		}
		if err := p.SetValue(state[k]); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	return nil
}

// Flatten returns leaf property values keyed by full path.
func Flatten(o Owner) ir.Object {
	out := make(ir.Object)
	w, ok := o.(walker)
	if !ok {
		for _, p := range o.Properties() {
			out[p.Path()] = p.Value()
		}
		return out
	}
	w.Walk(func(p Property) {
		switch p.(type) {
		case *Composite, *Button:
			return
		}
		out[p.Path()] = p.Value()
	})
	return out
}
