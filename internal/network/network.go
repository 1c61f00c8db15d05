package network

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/procnet/internal/port"
	"github.com/roach88/procnet/internal/processor"
	"github.com/roach88/procnet/internal/property"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Connection is a data edge from an outport to an inport.
type Connection struct {
	Out *port.Outport
	In  port.In
}

func (c Connection) String() string {
	return c.Out.Path() + " -> " + c.In.Path()
}

// From returns the identifier of the producing processor.
func (c Connection) From() string { return c.Out.Owner().Identifier() }

// To returns the identifier of the consuming processor.
func (c Connection) To() string { return c.In.Owner().Identifier() }

// InvalidationListener receives every processor invalidation, including
// those caused by connection changes.
type InvalidationListener func(p processor.Processor, level property.InvalidationLevel)

// Option configures a Network.
type Option func(*Network)

// WithLogger sets the logger used for link propagation failures.
func WithLogger(l *slog.Logger) Option {
	return func(n *Network) { n.logger = l }
}

// Network is the processor graph. It owns processors, the connections
// between their ports, and property links.
//
// The connection graph is kept acyclic: Connect refuses an edge that would
// close a cycle. All methods are safe for concurrent use.
type Network struct {
	mu          sync.RWMutex
	processors  map[string]processor.Processor
	order       []string
	connections []Connection
	links       []*Link
	observers   []Observer
	listener    InvalidationListener
	logger      *slog.Logger

	lockMu     sync.Mutex
	lockDepth  int
	onUnlocked []func()
}

func New(opts ...Option) *Network {
	n := &Network{
		processors: make(map[string]processor.Processor),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SetInvalidationListener installs the callback that receives processor
// invalidations. The evaluator uses it to schedule work.
func (n *Network) SetInvalidationListener(l InvalidationListener) {
	n.mu.Lock()
	n.listener = l
	n.mu.Unlock()
}

func (n *Network) invalidated(p processor.Processor, level property.InvalidationLevel) {
	n.mu.RLock()
	l := n.listener
	n.mu.RUnlock()
	if l != nil {
		l(p, level)
	}
}

// AddProcessor adds p. Its identifier must be valid and unused.
func (n *Network) AddProcessor(p processor.Processor) error {
	id := p.Identifier()
	if !identifierRe.MatchString(id) {
		return configErr(CodeInvalidIdentifier, id, "invalid processor identifier %q", id)
	}

	n.mu.Lock()
	if _, exists := n.processors[id]; exists {
		n.mu.Unlock()
		return configErr(CodeDuplicateProcessor, id, "processor %q already exists", id)
	}
	n.processors[id] = p
	n.order = append(n.order, id)
	n.mu.Unlock()

	p.Core().SetInvalidationHandler(n.invalidated)
	n.notify(func(o Observer) { o.OnProcessorAdded(p) })
	n.invalidated(p, p.Core().Pending())
	return nil
}

// RemoveProcessor disconnects and removes a processor. Observers are told
// before anything is detached, then the processor's properties are disposed,
// which fires OnWillRemoveProperty for each of them.
func (n *Network) RemoveProcessor(id string) error {
	p := n.Processor(id)
	if p == nil {
		return configErr(CodeUnknownProcessor, id, "no processor %q", id)
	}
	n.notify(func(o Observer) { o.OnWillRemoveProcessor(p) })

	for _, c := range n.Connections() {
		if c.From() == id || c.To() == id {
			if err := n.Disconnect(c.Out, c.In); err != nil {
				return err
			}
		}
	}
	for _, l := range n.Links() {
		if l.SourceProcessor() == id || l.TargetProcessor() == id {
			n.removeLink(l)
		}
	}

	n.mu.Lock()
	delete(n.processors, id)
	n.order = slices.DeleteFunc(n.order, func(s string) bool { return s == id })
	n.mu.Unlock()

	p.Core().SetInvalidationHandler(nil)
	p.Core().Dispose()
	return nil
}

// Processor returns the processor with the given identifier, or nil.
func (n *Network) Processor(id string) processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.processors[id]
}

// Processors returns all processors in insertion order.
func (n *Network) Processors() []processor.Processor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]processor.Processor, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.processors[id])
	}
	return out
}

// Identifiers returns processor identifiers in insertion order.
func (n *Network) Identifiers() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.order)
}

// Connections returns the connections in the order they were made.
func (n *Network) Connections() []Connection {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return slices.Clone(n.connections)
}

// Connect adds an edge from out to in.
//
// It fails with a ConfigError when either port is not part of the network,
// the data types are incompatible, a single inport is already connected, or
// the edge would make the processor graph cyclic.
func (n *Network) Connect(out *port.Outport, in port.In) error {
	path := out.Path() + " -> " + in.Path()
	if err := n.checkMember(out); err != nil {
		return err
	}
	if err := n.checkMember(in); err != nil {
		return err
	}
	if !port.Compatible(out.DataType(), in.DataType()) {
		return configErr(CodeIncompatiblePorts, path, "cannot feed %s data into %s inport", out.DataType(), in.DataType())
	}

	from := out.Owner().Identifier()
	to := in.Owner().Identifier()

	n.mu.Lock()
	if from == to || reaches(n.graphLocked(), to, from) {
		n.mu.Unlock()
		return configErr(CodeCyclicConnection, path, "connection would create a cycle through %s", from)
	}
	if err := in.Attach(out); err != nil {
		n.mu.Unlock()
		return &ConfigError{Code: CodeAlreadyConnected, Path: path, Message: "inport cannot accept another source", Err: err}
	}
	c := Connection{Out: out, In: in}
	n.connections = append(n.connections, c)
	target := n.processors[to]
	n.mu.Unlock()

	n.notify(func(o Observer) { o.OnConnectionAdded(c) })
	target.Core().Invalidate(property.InvalidOutput)
	return nil
}

// ConnectPaths connects "processor.outport" to "processor.inport".
func (n *Network) ConnectPaths(outPath, inPath string) error {
	out, in, err := n.resolvePorts(outPath, inPath)
	if err != nil {
		return err
	}
	return n.Connect(out, in)
}

// Disconnect removes the edge from out to in.
func (n *Network) Disconnect(out *port.Outport, in port.In) error {
	n.mu.Lock()
	i := slices.IndexFunc(n.connections, func(c Connection) bool {
		return c.Out == out && c.In == in
	})
	if i < 0 {
		n.mu.Unlock()
		return configErr(CodeNotConnected, out.Path()+" -> "+in.Path(), "ports are not connected")
	}
	c := n.connections[i]
	n.connections = slices.Delete(n.connections, i, i+1)
	in.Detach(out)
	target := n.processors[c.To()]
	n.mu.Unlock()

	n.notify(func(o Observer) { o.OnConnectionRemoved(c) })
	if target != nil {
		target.Core().Invalidate(property.InvalidOutput)
	}
	return nil
}

// DisconnectPaths is Disconnect by port path.
func (n *Network) DisconnectPaths(outPath, inPath string) error {
	out, in, err := n.resolvePorts(outPath, inPath)
	if err != nil {
		return err
	}
	return n.Disconnect(out, in)
}

func (n *Network) resolvePorts(outPath, inPath string) (*port.Outport, port.In, error) {
	outProc, outID, ok := strings.Cut(outPath, ".")
	if !ok {
		return nil, nil, configErr(CodeUnknownPort, outPath, "port path must be processor.port")
	}
	inProc, inID, ok := strings.Cut(inPath, ".")
	if !ok {
		return nil, nil, configErr(CodeUnknownPort, inPath, "port path must be processor.port")
	}
	op := n.Processor(outProc)
	if op == nil {
		return nil, nil, configErr(CodeUnknownProcessor, outPath, "no processor %q", outProc)
	}
	ip := n.Processor(inProc)
	if ip == nil {
		return nil, nil, configErr(CodeUnknownProcessor, inPath, "no processor %q", inProc)
	}
	out := op.Core().Outport(outID)
	if out == nil {
		return nil, nil, configErr(CodeUnknownPort, outPath, "no outport %q on %s", outID, outProc)
	}
	in := ip.Core().Inport(inID)
	if in == nil {
		return nil, nil, configErr(CodeUnknownPort, inPath, "no inport %q on %s", inID, inProc)
	}
	return out, in, nil
}

func (n *Network) checkMember(p port.Port) error {
	owner := p.Owner()
	if owner == nil {
		return configErr(CodeUnknownPort, p.Path(), "port has no processor")
	}
	member := n.Processor(owner.Identifier())
	if member == nil || port.Owner(member) != owner {
		return configErr(CodeUnknownProcessor, p.Path(), "processor %q is not in the network", owner.Identifier())
	}
	return nil
}

// Graph returns the processor-level adjacency of the connections.
func (n *Network) Graph() Graph {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphLocked()
}

func (n *Network) graphLocked() Graph {
	g := make(Graph, len(n.order))
	for _, id := range n.order {
		g[id] = nil
	}
	for _, c := range n.connections {
		from, to := c.From(), c.To()
		if !slices.Contains(g[from], to) {
			g[from] = append(g[from], to)
		}
	}
	return g
}

// Successors returns processors fed directly by id, in connection order.
func (n *Network) Successors(id string) []string {
	return n.Graph()[id]
}

// Predecessors returns processors feeding id directly, in connection order.
func (n *Network) Predecessors(id string) []string {
	var out []string
	for _, c := range n.Connections() {
		if c.To() == id && !slices.Contains(out, c.From()) {
			out = append(out, c.From())
		}
	}
	return out
}

// Sources returns processors without incoming connections.
func (n *Network) Sources() []string {
	var out []string
	for _, id := range n.Identifiers() {
		if len(n.Predecessors(id)) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Sinks returns processors without outgoing connections.
func (n *Network) Sinks() []string {
	g := n.Graph()
	var out []string
	for _, id := range n.Identifiers() {
		if len(g[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// ForwardClosure returns the given processors and every processor reachable
// from them along connections, in insertion order.
func (n *Network) ForwardClosure(ids ...string) []string {
	g := n.Graph()
	seen := make(map[string]bool)
	queue := slices.Clone(ids)
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if seen[v] {
			continue
		}
		if _, ok := g[v]; !ok {
			continue
		}
		seen[v] = true
		queue = append(queue, g[v]...)
	}
	var out []string
	for _, id := range n.Identifiers() {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// TopologicalOrder orders the subset ids so every processor comes after
// the processors in the subset that feed it. Ties keep insertion order.
func (n *Network) TopologicalOrder(ids []string) ([]string, error) {
	levels, err := n.Levels(ids)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}

// Levels groups the subset ids into waves. Processors within one wave do not
// depend on each other and may run concurrently; every wave depends only on
// earlier waves.
func (n *Network) Levels(ids []string) ([][]string, error) {
	g := n.Graph()
	insertion := n.Identifiers()
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := g[id]; !ok {
			return nil, configErr(CodeUnknownProcessor, id, "no processor %q", id)
		}
		inSet[id] = true
	}

	indegree := make(map[string]int, len(inSet))
	for id := range inSet {
		indegree[id] += 0
		for _, w := range g[id] {
			if inSet[w] {
				indegree[w]++
			}
		}
	}

	var levels [][]string
	remaining := len(inSet)
	for remaining > 0 {
		var wave []string
		for _, id := range insertion {
			if inSet[id] && indegree[id] == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			return nil, configErr(CodeCyclicConnection, "", "subset contains a cycle")
		}
		for _, id := range wave {
			indegree[id] = -1
			remaining--
			for _, w := range g[id] {
				if inSet[w] {
					indegree[w]--
				}
			}
		}
		levels = append(levels, wave)
	}
	return levels, nil
}

// Property resolves "processor.path.to.property".
func (n *Network) Property(path string) (property.Property, error) {
	procID, rest, ok := strings.Cut(path, ".")
	if !ok {
		return nil, configErr(CodeUnknownProperty, path, "property path must start with a processor")
	}
	p := n.Processor(procID)
	if p == nil {
		return nil, configErr(CodeUnknownProcessor, path, "no processor %q", procID)
	}
	prop, err := p.Core().PropertyByPath(rest)
	if err != nil {
		return nil, &ConfigError{Code: CodeUnknownProperty, Path: path, Message: "no such property", Err: err}
	}
	return prop, nil
}

// Lock suspends evaluation until the matching Unlock. Locks nest.
func (n *Network) Lock() {
	n.lockMu.Lock()
	n.lockDepth++
	n.lockMu.Unlock()
}

// Unlock releases one Lock. Releasing the outermost lock runs the
// registered unlock callbacks.
func (n *Network) Unlock() {
	n.lockMu.Lock()
	if n.lockDepth == 0 {
		n.lockMu.Unlock()
		return
	}
	n.lockDepth--
	var callbacks []func()
	if n.lockDepth == 0 {
		callbacks = slices.Clone(n.onUnlocked)
	}
	n.lockMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// IsLocked reports whether evaluation is suspended.
func (n *Network) IsLocked() bool {
	n.lockMu.Lock()
	defer n.lockMu.Unlock()
	return n.lockDepth > 0
}

// OnUnlocked registers fn to run whenever the outermost lock is released.
func (n *Network) OnUnlocked(fn func()) {
	n.lockMu.Lock()
	n.onUnlocked = append(n.onUnlocked, fn)
	n.lockMu.Unlock()
}

// String summarizes the network for logs.
func (n *Network) String() string {
	return fmt.Sprintf("network(%d processors, %d connections, %d links)",
		len(n.Identifiers()), len(n.Connections()), len(n.Links()))
}
