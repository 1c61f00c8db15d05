package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/procnet/internal/env"
	"github.com/roach88/procnet/internal/network"
	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
	"github.com/stretchr/testify/require"
)

// NodeInfo is the class of Node.
var NodeInfo = processor.Info{
	ClassIdentifier: "test.node",
	DisplayName:     "Test Node",
	Category:        "Testing",
	CodeState:       processor.Experimental,
}

// Log records processor activity across a network in call order.
type Log struct {
	mu      sync.Mutex
	entries []string
}

func (l *Log) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Processed returns the identifiers from "process:<id>" entries, in order.
func (l *Log) Processed() []string {
	var out []string
	for _, e := range l.Entries() {
		if id, ok := strings.CutPrefix(e, "process:"); ok {
			out = append(out, id)
		}
	}
	return out
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Node is a counting test processor. Its output is the sum of its inputs
// plus its "value" property. It can be told to fail or panic.
type Node struct {
	processor.Base

	In     *port.MultiInport
	Out    *port.Outport
	Value  *property.Ordinal[float64]
	Detail *property.Bool

	// OnProcess, when set, runs at the start of Process.
	OnProcess func(ctx context.Context, n *Node)

	log *Log

	mu        sync.Mutex
	processes int
	inits     int
	failWith  error
	panicWith any
}

// NewNode creates a Node. log may be nil.
func NewNode(id string, log *Log) (*Node, error) {
	return NewNodeWithInfo(id, log, NodeInfo)
}

// NewNodeWithInfo creates a Node reporting a different class, e.g. one
// that declares SharedContext.
func NewNodeWithInfo(id string, log *Log, info processor.Info) (*Node, error) {
	n := &Node{
		In:     port.NewMultiInport("inport", port.Number, port.Optional()),
		Out:    port.NewOutport("outport", port.Number),
		Value:  property.NewFloat("value", 0, -1e6, 1e6),
		Detail: property.NewBool("detail", false, property.WithInvalidationLevel(property.InvalidResources)),
		log:    log,
	}
	err := n.Init(n, id, info, processor.Shape{
		Ports:      []port.Port{n.In, n.Out},
		Properties: []property.Property{n.Value, n.Detail},
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NodeConstructor adapts NewNode to processor.Constructor.
func NodeConstructor(log *Log) processor.Constructor {
	return func(id string, _ *env.Context) (processor.Processor, error) {
		return NewNode(id, log)
	}
}

func (n *Node) Process(ctx context.Context) error {
	if n.log != nil {
		n.log.Add("process:" + n.Identifier())
	}
	n.mu.Lock()
	n.processes++
	failWith, panicWith := n.failWith, n.panicWith
	n.mu.Unlock()

	if n.OnProcess != nil {
		n.OnProcess(ctx, n)
	}
	if panicWith != nil {
		panic(panicWith)
	}
	if failWith != nil {
		return failWith
	}

	sum := n.Value.Get()
	for data, err := range n.In.Data() {
		if err != nil {
			return err
		}
		v, ok := data.(float64)
		if !ok {
			return fmt.Errorf("%s: unexpected input %T", n.Identifier(), data)
		}
		sum += v
	}
	n.Out.SetData(sum)
	return nil
}

func (n *Node) InitializeResources(context.Context) error {
	if n.log != nil {
		n.log.Add("init:" + n.Identifier())
	}
	n.mu.Lock()
	n.inits++
	n.mu.Unlock()
	return nil
}

// FailWith makes subsequent Process calls return err. nil clears it.
func (n *Node) FailWith(err error) {
	n.mu.Lock()
	n.failWith = err
	n.mu.Unlock()
}

// PanicWith makes subsequent Process calls panic with v. nil clears it.
func (n *Node) PanicWith(v any) {
	n.mu.Lock()
	n.panicWith = v
	n.mu.Unlock()
}

func (n *Node) ProcessCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.processes
}

func (n *Node) InitCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inits
}

// Output returns the committed output value.
func (n *Node) Output() (float64, error) {
	data, err := n.Out.Data()
	if err != nil {
		return 0, err
	}
	return data.(float64), nil
}

// BuildNetwork adds one Node per identifier and connects them along edges
// given as "from->to" strings.
func BuildNetwork(t testing.TB, log *Log, ids []string, edges ...string) (*network.Network, map[string]*Node) {
	t.Helper()
	net := network.New()
	nodes := make(map[string]*Node, len(ids))
	for _, id := range ids {
		n, err := NewNode(id, log)
		require.NoError(t, err)
		require.NoError(t, net.AddProcessor(n))
		nodes[id] = n
	}
	for _, e := range edges {
		from, to, ok := strings.Cut(e, "->")
		require.True(t, ok, "edge %q", e)
		require.NoError(t, net.Connect(nodes[from].Out, nodes[to].In), "edge %q", e)
	}
	return net, nodes
}
