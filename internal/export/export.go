// Package export writes networks to files: YAML and JSON documents, DOT
// graphs, and SVG renderings of those graphs. The writers register into a
// writer.Factory under the "network" data type.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/serial"
	"github.com/roach88/procnet/internal/writer"
)

// TypeNetwork is the writer data type for networks. Writers accept either
// a *network.Network or a *serial.NetworkDoc.
const TypeNetwork = "network"

// Register adds the network writers to f.
func Register(f *writer.Factory) {
	f.Register(DocWriter{Format: serial.YAML})
	f.Register(DocWriter{Format: serial.JSON})
	f.Register(DOTWriter{})
	f.Register(SVGWriter{})
}

// NewFactory returns writer.NewDefaultFactory with the network writers
// added.
func NewFactory() *writer.Factory {
	f := writer.NewDefaultFactory()
	Register(f)
	return f
}

func asDoc(data any) (*serial.NetworkDoc, error) {
	switch d := data.(type) {
	case *serial.NetworkDoc:
		return d, nil
	case *network.Network:
		return serial.Snapshot(d), nil
	default:
		return nil, fmt.Errorf("expected *network.Network or *serial.NetworkDoc, got %T", data)
	}
}

// DocWriter writes the serialized network document.
type DocWriter struct {
	Format serial.Format
}

func (DocWriter) DataType() string { return TypeNetwork }

func (w DocWriter) Extensions() []string {
	if w.Format == serial.JSON {
		return []string{"json"}
	}
	return []string{"yaml", "yml"}
}

func (w DocWriter) Write(out io.Writer, data any) error {
	doc, err := asDoc(data)
	if err != nil {
		return fmt.Errorf("%s writer: %w", w.Format, err)
	}
	return serial.Encode(out, doc, w.Format)
}

// DOTWriter writes the processor graph in Graphviz DOT.
type DOTWriter struct{}

func (DOTWriter) DataType() string     { return TypeNetwork }
func (DOTWriter) Extensions() []string { return []string{"dot", "gv"} }

func (DOTWriter) Write(out io.Writer, data any) error {
	doc, err := asDoc(data)
	if err != nil {
		return fmt.Errorf("dot writer: %w", err)
	}
	_, err = io.WriteString(out, ToDOT(doc))
	return err
}

// SVGWriter renders the DOT graph to SVG with Graphviz.
type SVGWriter struct{}

func (SVGWriter) DataType() string     { return TypeNetwork }
func (SVGWriter) Extensions() []string { return []string{"svg"} }

func (SVGWriter) Write(out io.Writer, data any) error {
	doc, err := asDoc(data)
	if err != nil {
		return fmt.Errorf("svg writer: %w", err)
	}
	svg, err := RenderSVG(context.Background(), ToDOT(doc))
	if err != nil {
		return err
	}
	_, err = out.Write(svg)
	return err
}

// ToDOT converts a network document to DOT. Processors keep document
// order; each connection is an edge labelled with its port names and each
// property link a dashed edge.
func ToDOT(doc *serial.NetworkDoc) string {
	var buf bytes.Buffer
	buf.WriteString("digraph network {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\"];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("\n")

	for _, p := range doc.Processors {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", p.ID, p.ID+"\n"+p.Class)
	}

	if len(doc.Connections) > 0 {
		buf.WriteString("\n")
	}
	for _, c := range doc.Connections {
		from, outPort := splitPath(c.From)
		to, inPort := splitPath(c.To)
		fmt.Fprintf(&buf, "  %q -> %q [taillabel=%q, headlabel=%q];\n", from, to, outPort, inPort)
	}

	if len(doc.Links) > 0 {
		buf.WriteString("\n")
	}
	for _, l := range doc.Links {
		from, src := splitPath(l.Source)
		to, dst := splitPath(l.Target)
		fmt.Fprintf(&buf, "  %q -> %q [style=dashed, color=grey40, label=%q];\n", from, to, src+" -> "+dst)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func splitPath(path string) (owner, rest string) {
	owner, rest, _ = strings.Cut(path, ".")
	return owner, rest
}

// RenderSVG renders DOT source to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
