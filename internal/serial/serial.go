package serial

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
)

// Version is the document format version written by Snapshot.
const Version = "1"

// NetworkDoc is the persisted form of a network.
type NetworkDoc struct {
	Version     string          `yaml:"version" json:"version"`
	Processors  []ProcessorDoc  `yaml:"processors" json:"processors"`
	Connections []ConnectionDoc `yaml:"connections,omitempty" json:"connections,omitempty"`
	Links       []LinkDoc       `yaml:"links,omitempty" json:"links,omitempty"`
}

// ProcessorDoc is one processor. Property keys are paths relative to the
// processor ("value", "camera.fov").
type ProcessorDoc struct {
	ID         string              `yaml:"id" json:"id"`
	Class      string              `yaml:"class" json:"class"`
	Properties map[string]any      `yaml:"properties,omitempty" json:"properties,omitempty"`
	Position   *processor.Position `yaml:"position,omitempty" json:"position,omitempty"`
}

// ConnectionDoc is an edge between port paths ("source.outport").
type ConnectionDoc struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// LinkDoc is a property link between property paths.
type LinkDoc struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// Snapshot serializes net. Processors, connections and links keep the
// order in which they were added.
func Snapshot(net *network.Network) *NetworkDoc {
	doc := &NetworkDoc{Version: Version, Processors: []ProcessorDoc{}}
	for _, p := range net.Processors() {
		pd := ProcessorDoc{ID: p.Identifier(), Class: p.Info().ClassIdentifier}
		prefix := p.Identifier() + "."
		flat := property.Flatten(p)
		if len(flat) > 0 {
			pd.Properties = make(map[string]any, len(flat))
			for path, v := range flat {
				pd.Properties[strings.TrimPrefix(path, prefix)] = ir.ToAny(v)
			}
		}
		if pos := p.Core().Position(); pos != (processor.Position{}) {
			pd.Position = &pos
		}
		doc.Processors = append(doc.Processors, pd)
	}
	for _, c := range net.Connections() {
		doc.Connections = append(doc.Connections, ConnectionDoc{From: c.Out.Path(), To: c.In.Path()})
	}
	for _, l := range net.Links() {
		doc.Links = append(doc.Links, LinkDoc{Source: l.Source.Path(), Target: l.Target.Path()})
	}
	return doc
}

// Value converts the document to an ir.Value for canonical hashing.
func (d *NetworkDoc) Value() (ir.Value, error) {
	procs := make(ir.Array, 0, len(d.Processors))
	for _, p := range d.Processors {
		props := make(ir.Object, len(p.Properties))
		for _, k := range slices.Sorted(maps.Keys(p.Properties)) {
			v, err := ir.FromAny(p.Properties[k])
			if err != nil {
				return nil, fmt.Errorf("processor %s property %s: %w", p.ID, k, err)
			}
			props[k] = v
		}
		obj := ir.Object{
			"id":         ir.String(p.ID),
			"class":      ir.String(p.Class),
			"properties": props,
		}
		if p.Position != nil {
			obj["position"] = ir.Object{"x": ir.Int(p.Position.X), "y": ir.Int(p.Position.Y)}
		}
		procs = append(procs, obj)
	}
	conns := make(ir.Array, 0, len(d.Connections))
	for _, c := range d.Connections {
		conns = append(conns, ir.Object{"from": ir.String(c.From), "to": ir.String(c.To)})
	}
	links := make(ir.Array, 0, len(d.Links))
	for _, l := range d.Links {
		links = append(links, ir.Object{"source": ir.String(l.Source), "target": ir.String(l.Target)})
	}
	return ir.Object{
		"version":     ir.String(d.Version),
		"processors":  procs,
		"connections": conns,
		"links":       links,
	}, nil
}

// Hash returns the content hash of the document.
func (d *NetworkDoc) Hash() (string, error) {
	v, err := d.Value()
	if err != nil {
		return "", err
	}
	return ir.NetworkHash(v)
}

// Hash returns the content hash of net's current snapshot.
func Hash(net *network.Network) (string, error) {
	return Snapshot(net).Hash()
}

// Find returns the processor entry with the given identifier.
func (d *NetworkDoc) Find(id string) (*ProcessorDoc, bool) {
	for i := range d.Processors {
		if d.Processors[i].ID == id {
			return &d.Processors[i], true
		}
	}
	return nil, false
}
