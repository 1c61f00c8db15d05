package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/serial"
)

const (
	// LevelError marks a connection cycle. The network cannot be built.
	LevelError = "error"
	// LevelInfo marks a link cycle. Links stop propagating once values
	// agree, so these are allowed.
	LevelInfo = "info"
)

// CycleWarning describes one cycle among processors.
type CycleWarning struct {
	Path    []string `json:"path"` // ["a", "b", "a"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// AnalyzeCycles finds cycles formed by connections and, separately, by
// property links. Each strongly connected component with more than one
// processor, or a processor feeding itself, yields one entry.
//
// Connection cycles come before link cycles; within each kind, cycles are
// ordered by their smallest processor id.
func AnalyzeCycles(doc *serial.NetworkDoc) []CycleWarning {
	conn := make(network.Graph)
	for _, c := range doc.Connections {
		addEdge(conn, ownerOf(c.From), ownerOf(c.To))
	}
	links := make(network.Graph)
	for _, l := range doc.Links {
		addEdge(links, ownerOf(l.Source), ownerOf(l.Target))
	}

	var warnings []CycleWarning
	for _, g := range []struct {
		graph network.Graph
		level string
		kind  string
	}{{conn, LevelError, "connection"}, {links, LevelInfo, "link"}} {
		for _, c := range network.FindCycles(g.graph) {
			warnings = append(warnings, cycleWarning(c.Path, g.level, g.kind))
		}
	}
	return warnings
}

func addEdge(g network.Graph, from, to string) {
	if !slices.Contains(g[from], to) {
		g[from] = append(g[from], to)
	}
	if _, ok := g[to]; !ok {
		g[to] = nil
	}
}

func cycleWarning(path []string, level, kind string) CycleWarning {
	if len(path) == 2 && path[0] == path[1] {
		return CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("%s feeds itself through a %s", path[0], kind),
			Level:   level,
		}
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("%s cycle: %s", kind, strings.Join(path, " -> ")),
		Level:   level,
	}
}
