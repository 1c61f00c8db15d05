package processors

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
)

// ErrIndexOutOfRange is returned by ElementSelector when the index does not
// address an element of its inputs.
var ErrIndexOutOfRange = errors.New("element index out of range")

var NumberSourceInfo = processor.Info{
	ClassIdentifier: "procnet.NumberSource",
	DisplayName:     "Number Source",
	Category:        "Data Input",
	CodeState:       processor.Stable,
	Tags:            []string{"number", "source"},
}

// NumberSource emits the value of its "value" property.
type NumberSource struct {
	processor.Base

	Out   *port.Outport
	Value *property.Ordinal[float64]
}

func NewNumberSource(id string) (*NumberSource, error) {
	n := &NumberSource{
		Out:   port.NewOutport("number", port.Number),
		Value: property.NewFloat("value", 0, -1e9, 1e9),
	}
	if err := n.Init(n, id, NumberSourceInfo, processor.Shape{
		Ports:      []port.Port{n.Out},
		Properties: []property.Property{n.Value},
	}); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *NumberSource) Process(context.Context) error {
	n.Out.SetData(n.Value.Get())
	return nil
}

var ScaleInfo = processor.Info{
	ClassIdentifier: "procnet.Scale",
	DisplayName:     "Scale",
	Category:        "Math",
	CodeState:       processor.Stable,
}

// Scale multiplies its input by "factor" and adds "offset".
type Scale struct {
	processor.Base

	In     *port.Inport
	Out    *port.Outport
	Factor *property.Ordinal[float64]
	Offset *property.Ordinal[float64]
}

func NewScale(id string) (*Scale, error) {
	s := &Scale{
		In:     port.NewInport("number", port.Number),
		Out:    port.NewOutport("result", port.Number),
		Factor: property.NewFloat("factor", 1, -1e6, 1e6),
		Offset: property.NewFloat("offset", 0, -1e9, 1e9),
	}
	if err := s.Init(s, id, ScaleInfo, processor.Shape{
		Ports:      []port.Port{s.In, s.Out},
		Properties: []property.Property{s.Factor, s.Offset},
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scale) Process(context.Context) error {
	v, err := port.Get[float64](s.In)
	if err != nil {
		return err
	}
	s.Out.SetData(v*s.Factor.Get() + s.Offset.Get())
	return nil
}

var SumInfo = processor.Info{
	ClassIdentifier: "procnet.Sum",
	DisplayName:     "Sum",
	Category:        "Math",
	CodeState:       processor.Stable,
}

// Sum adds every number connected to its multi-inport.
type Sum struct {
	processor.Base

	In  *port.MultiInport
	Out *port.Outport
}

func NewSum(id string) (*Sum, error) {
	s := &Sum{
		In:  port.NewMultiInport("numbers", port.Number),
		Out: port.NewOutport("sum", port.Number),
	}
	if err := s.Init(s, id, SumInfo, processor.Shape{
		Ports: []port.Port{s.In, s.Out},
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sum) Process(context.Context) error {
	var total float64
	for data, err := range s.In.Data() {
		if err != nil {
			return err
		}
		v, ok := data.(float64)
		if !ok {
			return fmt.Errorf("%s: got %T, want float64: %w", s.In.Path(), data, port.ErrTypeMismatch)
		}
		total += v
	}
	s.Out.SetData(total)
	return nil
}

var ElementSelectorInfo = processor.Info{
	ClassIdentifier: "procnet.ElementSelector",
	DisplayName:     "Element Selector",
	Category:        "Data Selection",
	CodeState:       processor.Experimental,
}

// ElementSelector concatenates its inputs into one sequence and emits the
// element at "index". Slice inputs contribute each of their elements,
// anything else contributes itself. The "size" outport carries the
// sequence length.
type ElementSelector struct {
	processor.Base

	In      *port.MultiInport
	Element *port.Outport
	Size    *port.Outport
	Index   *property.Ordinal[int64]
}

func NewElementSelector(id string) (*ElementSelector, error) {
	e := &ElementSelector{
		In:      port.NewMultiInport("inport", port.Any),
		Element: port.NewOutport("element", port.Any),
		Size:    port.NewOutport("size", port.Number),
		Index:   property.NewInt("index", 0, 0, 1<<20),
	}
	if err := e.Init(e, id, ElementSelectorInfo, processor.Shape{
		Ports:      []port.Port{e.In, e.Element, e.Size},
		Properties: []property.Property{e.Index},
	}); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ElementSelector) Process(context.Context) error {
	var seq []any
	for data, err := range e.In.Data() {
		if err != nil {
			return err
		}
		seq = appendElements(seq, data)
	}
	i := int(e.Index.Get())
	if i >= len(seq) {
		return fmt.Errorf("%s: index %d of %d: %w", e.Identifier(), i, len(seq), ErrIndexOutOfRange)
	}
	e.Element.SetData(seq[i])
	e.Size.SetData(float64(len(seq)))
	return nil
}

func appendElements(seq []any, data any) []any {
	switch v := data.(type) {
	case []any:
		return append(seq, v...)
	case []float64:
		for _, f := range v {
			seq = append(seq, f)
		}
		return seq
	default:
		return append(seq, data)
	}
}
