package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/serial"
)

func TestCompileNetworkBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		network: {
			processors: {
				source: {
					class: "procnet.NumberSource"
					properties: value: 2.5
					position: {x: 10, y: 20}
				}
				scale: {
					class: "procnet.Scale"
					properties: {factor: 3, offset: -1}
				}
				sum: class: "procnet.Sum"
			}
			connections: [
				"source.number -> scale.number",
				{from: "scale.result", to: "sum.numbers"},
			]
			links: [{source: "source.value", target: "scale.offset"}]
		}
	`)
	require.NoError(t, v.Err())

	doc, err := CompileNetwork(v.LookupPath(cue.ParsePath("network")))
	require.NoError(t, err)

	assert.Equal(t, serial.Version, doc.Version)
	require.Len(t, doc.Processors, 3)
	assert.Equal(t, "source", doc.Processors[0].ID)
	assert.Equal(t, "scale", doc.Processors[1].ID)
	assert.Equal(t, "sum", doc.Processors[2].ID)
	assert.Equal(t, "procnet.NumberSource", doc.Processors[0].Class)
	assert.Equal(t, map[string]any{"value": 2.5}, doc.Processors[0].Properties)
	assert.Equal(t, &processor.Position{X: 10, Y: 20}, doc.Processors[0].Position)
	assert.Equal(t, map[string]any{"factor": int64(3), "offset": int64(-1)}, doc.Processors[1].Properties)
	assert.Nil(t, doc.Processors[2].Properties)

	assert.Equal(t, []serial.ConnectionDoc{
		{From: "source.number", To: "scale.number"},
		{From: "scale.result", To: "sum.numbers"},
	}, doc.Connections)
	assert.Equal(t, []serial.LinkDoc{{Source: "source.value", Target: "scale.offset"}}, doc.Links)
}

func TestCompileNetworkUnification(t *testing.T) {
	// Defaults declared once apply to every processor of the pattern.
	doc, err := CompileSource("net.cue", []byte(`
		network: processors: [ID=_]: properties: value: *1.5 | number
		network: processors: {
			a: class: "procnet.NumberSource"
			b: {class: "procnet.NumberSource", properties: value: 4.0}
		}
	`))
	require.NoError(t, err)
	require.Len(t, doc.Processors, 2)
	assert.Equal(t, 1.5, doc.Processors[0].Properties["value"])
	assert.Equal(t, 4.0, doc.Processors[1].Properties["value"])
}

func TestCompileNetworkNestedProperties(t *testing.T) {
	doc, err := CompileSource("net.cue", []byte(`
		network: processors: view: {
			class: "procnet.Renderer"
			properties: {
				camera: {fov: 45, lookFrom: [0, 0, 1]}
				name: "main"
			}
		}
	`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"camera.fov":      int64(45),
		"camera.lookFrom": []any{int64(0), int64(0), int64(1)},
		"name":            "main",
	}, doc.Processors[0].Properties)
}

func TestCompileNetworkMissingClass(t *testing.T) {
	_, err := CompileSource("net.cue", []byte(`
		network: processors: broken: properties: value: 1
	`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processors.broken.class")
	assert.Contains(t, err.Error(), "required")
}

func TestCompileNetworkBadEdge(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"string without arrow", `network: connections: ["a.out b.in"]`, "connections[0]"},
		{"object missing to", `network: connections: [{from: "a.out"}]`, "connections[0].to"},
		{"link missing source", `network: links: [{target: "a.value"}]`, "links[0].source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("net.cue", []byte(tt.src))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.want, ce.Field)
		})
	}
}

func TestCompileNetworkIncomplete(t *testing.T) {
	_, err := CompileSource("net.cue", []byte(`
		network: processors: a: {
			class: "procnet.NumberSource"
			properties: value: number
		}
	`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concrete")
}

func TestCompileNetworkSyntaxError(t *testing.T) {
	_, err := CompileSource("broken.cue", []byte(`network: {`))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "broken.cue", ce.Pos.Filename())
}

func TestCompileNetworkMissing(t *testing.T) {
	_, err := CompileSource("net.cue", []byte(`other: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network is required")
}

func TestCompileDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "procs.cue"), []byte(`
package net

network: processors: {
	a: class: "procnet.NumberSource"
	b: class: "procnet.Scale"
}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wiring.cue"), []byte(`
package net

network: connections: ["a.number -> b.number"]
`), 0o644))

	doc, err := CompileDir(dir)
	require.NoError(t, err)
	assert.Len(t, doc.Processors, 2)
	assert.Equal(t, []serial.ConnectionDoc{{From: "a.number", To: "b.number"}}, doc.Connections)
}

func TestCompileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.cue")
	require.NoError(t, os.WriteFile(path, []byte(`network: {version: "1", processors: a: class: "procnet.Sum"}`), 0o644))

	doc, err := CompileFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Version)
	assert.Equal(t, "a", doc.Processors[0].ID)

	_, err = CompileFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
