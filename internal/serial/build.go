package serial

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/ir"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/processor"
)

// ErrUnsupportedVersion is returned for documents of an unknown version.
var ErrUnsupportedVersion = errors.New("unsupported network document version")

// Build reconstructs a network from doc.
//
// Processors are created through reg with the given context, their
// properties assigned, and then connections and links are made in document
// order. Any failure aborts the build; configuration problems are returned
// as network.ConfigError.
func Build(doc *NetworkDoc, reg *processor.Registry, nc *env.Context, opts ...network.Option) (*network.Network, error) {
	if doc.Version != "" && doc.Version != Version {
		return nil, fmt.Errorf("version %q: %w", doc.Version, ErrUnsupportedVersion)
	}
	net := network.New(opts...)
	for _, pd := range doc.Processors {
		p, err := reg.Create(pd.Class, pd.ID, nc)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", pd.ID, err)
		}
		if err := ApplyProperties(p, pd.Properties); err != nil {
			return nil, err
		}
		if pd.Position != nil {
			p.Core().SetPosition(*pd.Position)
		}
		if err := net.AddProcessor(p); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Connections {
		if err := net.ConnectPaths(c.From, c.To); err != nil {
			return nil, err
		}
	}
	for _, l := range doc.Links {
		if _, err := net.Link(l.Source, l.Target); err != nil {
			return nil, err
		}
	}
	for _, p := range net.Processors() {
		if c, ok := p.(processor.ConfigChecker); ok {
			if err := c.CheckConfiguration(); err != nil {
				return nil, err
			}
		}
	}
	return net, nil
}

// ApplyProperties assigns values keyed by paths relative to p, in sorted
// path order.
func ApplyProperties(p processor.Processor, values map[string]any) error {
	for _, path := range slices.Sorted(maps.Keys(values)) {
		prop, err := p.Core().PropertyByPath(path)
		if err != nil {
			return &network.ConfigError{
				Code:    network.CodeUnknownProperty,
				Path:    p.Identifier() + "." + path,
				Message: "no such property",
				Err:     err,
			}
		}
		v, err := ir.FromAny(values[path])
		if err != nil {
			return fmt.Errorf("%s: %w", prop.Path(), err)
		}
		if err := prop.SetValue(v); err != nil {
			return &network.ConfigError{
				Code:    network.CodeIncompatibleProperty,
				Path:    prop.Path(),
				Message: "value rejected",
				Err:     err,
			}
		}
	}
	return nil
}
