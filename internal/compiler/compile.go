// Package compiler turns CUE network descriptions into serial.NetworkDoc
// values and checks them before they are built.
//
// A network is written as
//
//	network: {
//		processors: {
//			source: {class: "procnet.NumberSource", properties: value: 2}
//			scale: {class: "procnet.Scale", position: {x: 0, y: 80}}
//		}
//		connections: ["source.number -> scale.number"]
//		links: [{source: "source.value", target: "scale.offset"}]
//	}
//
// Processors keep their declaration order. Connections and links are
// either "a -> b" strings or objects.
package compiler

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/serial"
)

// CompileNetwork parses the network struct v into a document.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	doc, err := CompileNetwork(v.LookupPath(cue.ParsePath("network")))
func CompileNetwork(v cue.Value) (*serial.NetworkDoc, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "network", Message: "network is required", Pos: v.Pos()}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &serial.NetworkDoc{Version: serial.Version, Processors: []serial.ProcessorDoc{}}

	if ver := v.LookupPath(cue.ParsePath("version")); ver.Exists() {
		s, err := ver.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.Version = s
	}

	procs := v.LookupPath(cue.ParsePath("processors"))
	if procs.Exists() {
		iter, err := procs.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			pd, err := parseProcessor(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			doc.Processors = append(doc.Processors, pd)
		}
	}

	var err error
	doc.Connections, err = parseEdges(v, "connections", "from", "to", func(from, to string) serial.ConnectionDoc {
		return serial.ConnectionDoc{From: from, To: to}
	})
	if err != nil {
		return nil, err
	}
	doc.Links, err = parseEdges(v, "links", "source", "target", func(src, dst string) serial.LinkDoc {
		return serial.LinkDoc{Source: src, Target: dst}
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func parseProcessor(id string, v cue.Value) (serial.ProcessorDoc, error) {
	pd := serial.ProcessorDoc{ID: id}

	classVal := v.LookupPath(cue.ParsePath("class"))
	if !classVal.Exists() {
		return pd, &CompileError{
			Field:   "processors." + id + ".class",
			Message: "class is required",
			Pos:     v.Pos(),
		}
	}
	class, err := classVal.String()
	if err != nil {
		return pd, formatCUEError(err)
	}
	pd.Class = class

	if props := v.LookupPath(cue.ParsePath("properties")); props.Exists() {
		values, err := toAny(props)
		if err != nil {
			return pd, err
		}
		m, ok := values.(map[string]any)
		if !ok {
			return pd, &CompileError{
				Field:   "processors." + id + ".properties",
				Message: "properties must be a struct",
				Pos:     props.Pos(),
			}
		}
		pd.Properties = flattenProperties(m)
	}

	if pos := v.LookupPath(cue.ParsePath("position")); pos.Exists() {
		var p processor.Position
		if err := pos.Decode(&p); err != nil {
			return pd, formatCUEError(err)
		}
		pd.Position = &p
	}
	return pd, nil
}

// flattenProperties turns nested structs into dotted paths so composite
// properties can be written either way.
func flattenProperties(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if nested, ok := v.(map[string]any); ok {
				walk(prefix+k+".", nested)
				continue
			}
			out[prefix+k] = v
		}
	}
	walk("", m)
	return out
}

func parseEdges[T any](v cue.Value, field, fromKey, toKey string, mk func(from, to string) T) ([]T, error) {
	list := v.LookupPath(cue.ParsePath(field))
	if !list.Exists() {
		return nil, nil
	}
	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []T
	for i := 0; iter.Next(); i++ {
		elem := iter.Value()
		name := fmt.Sprintf("%s[%d]", field, i)

		if s, err := elem.String(); err == nil {
			from, to, ok := strings.Cut(s, "->")
			if !ok {
				return nil, &CompileError{
					Field:   name,
					Message: fmt.Sprintf("expected %q, got %q", "a.x -> b.y", s),
					Pos:     elem.Pos(),
				}
			}
			out = append(out, mk(strings.TrimSpace(from), strings.TrimSpace(to)))
			continue
		}

		from, err := requiredString(elem, name, fromKey)
		if err != nil {
			return nil, err
		}
		to, err := requiredString(elem, name, toKey)
		if err != nil {
			return nil, err
		}
		out = append(out, mk(from, to))
	}
	return out, nil
}

func requiredString(v cue.Value, parent, key string) (string, error) {
	f := v.LookupPath(cue.ParsePath(key))
	if !f.Exists() {
		return "", &CompileError{Field: parent + "." + key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// toAny converts a concrete CUE value to plain Go data. Integers stay
// int64 so they round-trip as integers.
func toAny(v cue.Value) (any, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	if !v.IsConcrete() {
		return nil, &CompileError{
			Field:   v.Path().String(),
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return n, formatCUEError(err)
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return f, formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			elem, err := toAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := toAny(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   v.Path().String(),
			Message: fmt.Sprintf("unsupported kind %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileSource compiles CUE source holding a top-level network field.
func CompileSource(filename string, src []byte) (*serial.NetworkDoc, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileNetwork(v.LookupPath(cue.ParsePath("network")))
}

// CompileFile compiles a single .cue file.
func CompileFile(path string) (*serial.NetworkDoc, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return CompileSource(path, src)
}

// CompileDir loads the CUE package in dir, unifying all of its files, and
// compiles the network it defines.
func CompileDir(dir string) (*serial.NetworkDoc, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("%s: no CUE instances loaded", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileNetwork(v.LookupPath(cue.ParsePath("network")))
}

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
