package property

import (
	"fmt"
	"slices"

	"github.com/roach88/procnet/internal/ir"
)

// Choice selects one of a fixed list of named options.
// Its serialized value is the selected option's identifier.
type Choice struct {
	Base
	options  []string
	selected int
}

// NewChoice creates a choice with the given options, selecting index selected.
func NewChoice(identifier string, options []string, selected int, opts ...Option) *Choice {
	p := &Choice{options: slices.Clone(options)}
	p.init(identifier, opts)
	if selected >= 0 && selected < len(options) {
		p.selected = selected
	}
	return p
}

func (p *Choice) Options() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.options)
}

// SelectedIndex returns the selected index, or -1 when there are no options.
func (p *Choice) SelectedIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.options) == 0 {
		return -1
	}
	return p.selected
}

// Selected returns the selected option identifier.
func (p *Choice) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.options) == 0 {
		return ""
	}
	return p.options[p.selected]
}

// SetSelectedIndex clamps i to the option range.
func (p *Choice) SetSelectedIndex(i int) bool {
	p.mu.Lock()
	if len(p.options) == 0 {
		p.mu.Unlock()
		return false
	}
	i = max(0, min(i, len(p.options)-1))
	if i == p.selected {
		p.mu.Unlock()
		return false
	}
	p.selected = i
	p.mu.Unlock()

	p.notifyChanged(p)
	return true
}

// SetSelected selects an option by identifier. Unknown options are
// rejected with ErrOutOfDomain and the selection is kept.
func (p *Choice) SetSelected(option string) error {
	i := slices.Index(p.Options(), option)
	if i < 0 {
		return fmt.Errorf("%s: option %q: %w", p.Path(), option, ErrOutOfDomain)
	}
	p.SetSelectedIndex(i)
	return nil
}

func (p *Choice) Value() ir.Value { return ir.String(p.Selected()) }

func (p *Choice) SetValue(v ir.Value) error {
	if p.readOnly {
		return fmt.Errorf("%s: %w", p.Path(), ErrReadOnly)
	}
	switch val := v.(type) {
	case ir.String:
		return p.SetSelected(string(val))
	case ir.Int:
		if int(val) < 0 || int(val) >= len(p.Options()) {
			return fmt.Errorf("%s: index %d: %w", p.Path(), val, ErrOutOfDomain)
		}
		p.SetSelectedIndex(int(val))
		return nil
	default:
		return fmt.Errorf("%s: expected option name, got %T: %w", p.Path(), v, ErrTypeMismatch)
	}
}
